// pkg/traffic/traffic.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package traffic provides the standard generators that drive a
// simulation: a flight request source per airport and the plane servicing
// routine. Both wait for a random time between MinWait and MaxWait.
package traffic

import (
	"context"
	"sync"
	"time"

	"github.com/mmp/airdispatch/pkg/log"
	"github.com/mmp/airdispatch/pkg/rand"
)

const (
	MinWait = 1000 * time.Millisecond
	MaxWait = 5000 * time.Millisecond
)

// sleep waits for d or until ctx is cancelled, returning ctx.Err() in the
// latter case.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////
// Requests

// Requests generates flight requests from one airport to uniformly chosen
// other airports. The first request is available immediately and each
// later one follows the previous after a random wait.
type Requests struct {
	airport, numAirports int
	r                    *rand.Rand
	wait                 time.Duration
	stopOnce             sync.Once
	lg                   *log.Logger
}

func NewRequests(airport, numAirports int, lg *log.Logger) *Requests {
	return &Requests{
		airport:     airport,
		numAirports: numAirports,
		r:           rand.Make(),
		lg:          lg,
	}
}

// Next returns the destination of the next flight request. It is not
// safe to call concurrently; each airport's requests are consumed by a
// single goroutine.
func (q *Requests) Next(ctx context.Context) (int, error) {
	if err := sleep(ctx, q.wait); err != nil {
		q.stopOnce.Do(func() {
			q.lg.Infof("Flight requests from airport %d stopped", q.airport)
		})
		return -1, err
	}

	dest := q.r.IntnExcept(q.numAirports, q.airport)
	q.wait = q.r.Duration(MinWait, MaxWait)
	return dest, nil
}

///////////////////////////////////////////////////////////////////////////
// Servicing

// Servicing models the turnaround of a plane after it lands.
type Servicing struct {
	mu sync.Mutex
	r  *rand.Rand
	lg *log.Logger
}

func NewServicing(lg *log.Logger) *Servicing {
	return &Servicing{r: rand.Make(), lg: lg}
}

func (s *Servicing) duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Duration(MinWait, MaxWait)
}

// Service waits for a random servicing time; it may be called
// concurrently for different planes.
func (s *Servicing) Service(ctx context.Context, airport, plane int) error {
	d := s.duration()
	ms := d.Milliseconds()
	s.lg.Infof("Begin servicing plane #%d at airport #%d...", plane, airport)

	if err := sleep(ctx, d); err != nil {
		s.lg.Warnf("Plane servicing INTERRUPTED (plane #%d at airport #%d, in %d ms)", plane, airport, ms)
		return err
	}

	s.lg.Infof("Plane servicing complete (plane #%d at airport #%d, in %d ms)", plane, airport, ms)
	return nil
}
