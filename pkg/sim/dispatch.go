// pkg/sim/dispatch.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmp/airdispatch/pkg/math"
)

// runDispatcher pairs each of an airport's flight requests with one of
// the planes parked there and sends it on its way.
func (s *Sim) runDispatcher(ctx context.Context, airport int) error {
	lg := s.lg.With(slog.Int("airport", airport))
	q := s.queues[airport]

	for {
		dest, err := q.requests.Take(ctx)
		if err != nil {
			return nil
		}

		id, err := q.available.Take(ctx)
		if err != nil {
			// The request is dropped; requests don't outlive the run.
			return nil
		}

		if id < 0 || id >= len(s.planes) {
			lg.Error("dispatch skipped", slog.Int("plane", id), slog.Any("error", ErrUnknownPlane))
			q.requests.Enqueue(dest)
			continue
		}

		p := s.planes[id]
		ok, err := s.dispatch(ctx, p, airport, dest)
		if err != nil {
			lg.Error("dispatch skipped", slog.Int("plane", id), slog.Int("dest", dest), slog.Any("error", err))
			if errors.Is(err, ErrUnknownAirport) {
				// Bad request; the plane is fine.
				q.available.Enqueue(id)
			} else {
				// The plane didn't belong in this pool.
				q.requests.Enqueue(dest)
			}
			continue
		}
		if !ok {
			// Cancelled after the plane was taken; put it back so that
			// it isn't lost.
			q.available.Enqueue(id)
			return nil
		}
	}
}

// dispatch starts a flight for p from origin to dest. It returns false
// without changing the plane if ctx has been cancelled and an error if
// the plane isn't parked at origin.
func (s *Sim) dispatch(ctx context.Context, p *Plane, origin, dest int) (bool, error) {
	if dest < 0 || dest >= len(s.airports) {
		return false, ErrUnknownAirport
	}

	from, to := s.airports[origin].Position, s.airports[dest].Position

	p.mu.Lock(s.lg)
	if ctx.Err() != nil {
		p.mu.Unlock(s.lg)
		return false, nil
	}
	if p.state != OnGround || p.currentAirport != origin {
		p.mu.Unlock(s.lg)
		return false, ErrWrongAirport
	}

	p.state = InFlight
	p.origin, p.dest = origin, dest
	p.start, p.end = from, to
	p.distance = math.Distance2(from, to)
	p.duration = time.Duration(p.distance / s.config.Speed * float64(time.Second))
	p.departTime = s.now()
	p.position = from
	s.inFlight.Add(1)

	ev := Event{
		Type:     DepartedEvent,
		Time:     p.departTime,
		Plane:    p.Id,
		Airport:  -1,
		Origin:   origin,
		Dest:     dest,
		Distance: p.distance,
		Duration: p.duration,
	}
	// Post while still holding the lock so that the departure precedes
	// the landing in the event feed.
	s.eventStream.Post(ev)
	p.mu.Unlock(s.lg)

	s.lg.Info(ev.String(), slog.Any("event", ev))

	return true, nil
}
