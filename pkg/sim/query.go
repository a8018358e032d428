// pkg/sim/query.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mmp/airdispatch/pkg/math"

	"github.com/brunoga/deep"
)

// Counters are the simulation-wide flight statistics. The three values
// are read individually, so a set may straddle a transition.
type Counters struct {
	InFlight  int64 `json:"in_flight"`
	Servicing int64 `json:"servicing"`
	Completed int64 `json:"completed"`
}

func (c Counters) String() string {
	return fmt.Sprintf("In-Flight: %d | Servicing: %d | Completed: %d", c.InFlight, c.Servicing, c.Completed)
}

func (c Counters) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("in_flight", c.InFlight),
		slog.Int64("servicing", c.Servicing),
		slog.Int64("completed", c.Completed))
}

func (s *Sim) Counters() Counters {
	return Counters{
		InFlight:  s.inFlight.Load(),
		Servicing: s.servicing.Load(),
		Completed: s.completed.Load(),
	}
}

func (s *Sim) NumPlanes() int {
	return len(s.planes)
}

// Airports returns a copy of the simulation's airports.
func (s *Sim) Airports() []Airport {
	return deep.MustCopy(s.airports)
}

func (s *Sim) plane(id int) (*Plane, error) {
	if id < 0 || id >= len(s.planes) {
		return nil, fmt.Errorf("%d: %w", id, ErrUnknownPlane)
	}
	return s.planes[id], nil
}

// PlaneStatus returns the state of the given plane as of the provided
// time.
func (s *Sim) PlaneStatus(id int, now time.Time) (PlaneStatus, error) {
	p, err := s.plane(id)
	if err != nil {
		return PlaneStatus{}, err
	}

	p.mu.Lock(s.lg)
	defer p.mu.Unlock(s.lg)
	return p.status(now, s.airports), nil
}

// CurrentPosition returns where the plane is at the given time: along its
// route if it is in flight and otherwise at its airport.
func (s *Sim) CurrentPosition(id int, now time.Time) (math.Point2, error) {
	ps, err := s.PlaneStatus(id, now)
	return ps.Position, err
}

// IsVisible reports whether the plane should be drawn; only planes in
// flight are.
func (s *Sim) IsVisible(id int) bool {
	p, err := s.plane(id)
	if err != nil {
		return false
	}

	p.mu.Lock(s.lg)
	defer p.mu.Unlock(s.lg)
	return p.state == InFlight
}

// LastPosition returns the plane's position as of the most recent tick.
func (s *Sim) LastPosition(id int) (math.Point2, error) {
	p, err := s.plane(id)
	if err != nil {
		return math.Point2{}, err
	}

	p.mu.Lock(s.lg)
	defer p.mu.Unlock(s.lg)
	return p.position, nil
}

// QueueDepth reports the number of waiting requests and parked planes at
// an airport.
type QueueDepth struct {
	Airport   int `json:"airport"`
	Requests  int `json:"requests"`
	Available int `json:"available"`
}

func (s *Sim) QueueDepths() []QueueDepth {
	depths := make([]QueueDepth, len(s.queues))
	for a, q := range s.queues {
		depths[a] = QueueDepth{Airport: a, Requests: q.requests.Len(), Available: q.available.Len()}
	}
	return depths
}

// AvailablePlanes returns the ids of the planes currently parked in the
// given airport's pool, in the order they will be dispatched.
func (s *Sim) AvailablePlanes(airport int) ([]int, error) {
	if airport < 0 || airport >= len(s.queues) {
		return nil, fmt.Errorf("%d: %w", airport, ErrUnknownAirport)
	}
	return s.queues[airport].available.Items(), nil
}

// Snapshot is a self-contained copy of the simulation state that
// renderers and status reporters can use without further locking.
type Snapshot struct {
	Time     time.Time      `json:"time"`
	State    LifecycleState `json:"state"`
	Uptime   time.Duration  `json:"uptime"`
	Config   Config         `json:"config"`
	Counters Counters       `json:"counters"`
	Airports []Airport      `json:"airports"`
	Planes   []PlaneStatus  `json:"planes"`
	Queues   []QueueDepth   `json:"queues"`
}

// Uptime returns how long the simulation had been running at the given
// time, or zero if it was never started.
func (s *Sim) Uptime(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return now.Sub(s.startTime)
}

func (s *Sim) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Time:     now,
		State:    s.State(),
		Uptime:   s.Uptime(now),
		Config:   s.Config(),
		Counters: s.Counters(),
		Airports: s.Airports(),
		Queues:   s.QueueDepths(),
	}
	for _, p := range s.planes {
		p.mu.Lock(s.lg)
		snap.Planes = append(snap.Planes, p.status(now, s.airports))
		p.mu.Unlock(s.lg)
	}

	return snap
}
