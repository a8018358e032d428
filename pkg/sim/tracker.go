// pkg/sim/tracker.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmp/airdispatch/pkg/math"
)

func (s *Sim) runTracker(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Tick advances every plane in flight to its position at the given time
// and lands those that have reached their destination, handing them off
// for servicing. Each flight lands exactly once no matter how often Tick
// is called or how many goroutines call it concurrently. Tick does
// nothing unless the simulation is running.
func (s *Sim) Tick(now time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Running {
		return
	}

	for _, p := range s.planes {
		if ev, landed := s.advance(p, now); landed {
			s.lg.Info(ev.String(), slog.Any("event", ev))
			s.eventStream.Post(ev)
			// Submitted under s.mu so that nothing reaches the pool once
			// End has run. The pool has a slot per plane, so Submit only
			// waits on a task whose plane was already requeued; those
			// tasks take no locks and are about to return.
			s.service.Submit(ev.Airport, ev.Plane)
		}
	}
}

// advance updates p's position and performs the InFlight to Servicing
// transition if the flight is complete. The state check and the
// transition happen under p.mu so only one caller can land a given
// flight.
func (s *Sim) advance(p *Plane, now time.Time) (Event, bool) {
	p.mu.Lock(s.lg)
	defer p.mu.Unlock(s.lg)

	if p.state != InFlight {
		return Event{}, false
	}

	t := p.progress(now)
	p.position = math.Lerp2(t, p.start, p.end)
	if t < 1 {
		return Event{}, false
	}

	dest := p.dest
	p.state = Servicing
	p.currentAirport = dest
	p.position = p.end
	s.inFlight.Add(-1)
	s.servicing.Add(1)
	s.completed.Add(1)

	return Event{
		Type:    LandedEvent,
		Time:    now,
		Plane:   p.Id,
		Airport: dest,
		Origin:  p.origin,
		Dest:    dest,
	}, true
}
