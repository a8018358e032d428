// pkg/sim/plane.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mmp/airdispatch/pkg/math"
	"github.com/mmp/airdispatch/pkg/util"
)

type Airport struct {
	Id       int         `json:"id" msgpack:"id"`
	Label    string      `json:"label" msgpack:"label"`
	Position math.Point2 `json:"position" msgpack:"position"`
}

func (ap Airport) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("id", ap.Id), slog.Any("position", ap.Position))
}

type PlaneState int

const (
	OnGround PlaneState = iota
	InFlight
	Servicing
)

func (s PlaneState) String() string {
	switch s {
	case OnGround:
		return "OnGround"
	case InFlight:
		return "InFlight"
	case Servicing:
		return "Servicing"
	default:
		return fmt.Sprintf("PlaneState(%d)", int(s))
	}
}

func (s PlaneState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PlaneState) UnmarshalText(b []byte) error {
	for _, st := range []PlaneState{OnGround, InFlight, Servicing} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("%q: unknown plane state", string(b))
}

// Plane holds the mutable state of one aircraft. All fields other than
// Id are protected by mu; a state transition updates them together while
// holding it.
type Plane struct {
	Id    int
	Label string

	mu             util.LoggingMutex
	state          PlaneState
	currentAirport int

	// Flight fields; only meaningful while state == InFlight.
	origin, dest int
	start, end   math.Point2
	departTime   time.Time
	duration     time.Duration
	distance     float64

	// Most recent position computed by the progress tracker.
	position math.Point2
}

func newPlane(id, airport int, pos math.Point2) *Plane {
	return &Plane{
		Id:             id,
		Label:          fmt.Sprintf("PL %d", id),
		mu:             util.LoggingMutex{Name: fmt.Sprintf("plane %d", id)},
		state:          OnGround,
		currentAirport: airport,
		origin:         -1,
		dest:           -1,
		position:       pos,
	}
}

// clearFlight resets the flight fields when the plane is back on the
// ground at the given position.
func (p *Plane) clearFlight(pos math.Point2) {
	p.origin, p.dest = -1, -1
	p.start, p.end = math.Point2{}, math.Point2{}
	p.departTime = time.Time{}
	p.duration = 0
	p.distance = 0
	p.position = pos
}

// progress returns the fraction of the flight completed at the given
// time, in [0,1]. The caller must hold p.mu and p must be in flight.
func (p *Plane) progress(now time.Time) float64 {
	if p.duration <= 0 {
		return 1
	}
	return math.Clamp(float64(now.Sub(p.departTime))/float64(p.duration), 0, 1)
}

// LogValue doesn't take the plane's mutex; it's only used when logging
// from code that already holds it.
func (p *Plane) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("id", p.Id),
		slog.String("state", p.state.String()),
		slog.Int("airport", p.currentAirport),
	}
	if p.state == InFlight {
		attrs = append(attrs,
			slog.Int("origin", p.origin),
			slog.Int("dest", p.dest),
			slog.Time("depart", p.departTime),
			slog.Duration("duration", p.duration),
			slog.Float64("distance", p.distance))
	}
	return slog.GroupValue(attrs...)
}

// PlaneStatus is a point-in-time copy of a plane's state for observers.
type PlaneStatus struct {
	Id       int         `json:"id"`
	Label    string      `json:"label"`
	State    PlaneState  `json:"state"`
	Airport  int         `json:"airport"`
	Visible  bool        `json:"visible"`
	Position math.Point2 `json:"position"`
	// Flight details; Origin and Dest are -1 once the plane is back on
	// the ground.
	Origin     int           `json:"origin"`
	Dest       int           `json:"dest"`
	Heading    float64       `json:"heading,omitempty"`
	DepartTime time.Time     `json:"depart_time,omitzero"`
	Duration   time.Duration `json:"duration,omitempty"`
	Distance   float64       `json:"distance,omitempty"`
	Progress   float64       `json:"progress,omitempty"`
}

// status returns the plane's status at the given time; the caller must
// hold p.mu.
func (p *Plane) status(now time.Time, airports []Airport) PlaneStatus {
	ps := PlaneStatus{
		Id:      p.Id,
		Label:   p.Label,
		State:   p.state,
		Airport: p.currentAirport,
		Visible: p.state == InFlight,
		Origin:  p.origin,
		Dest:    p.dest,
	}

	if p.state == InFlight {
		ps.Airport = -1
		ps.Progress = p.progress(now)
		ps.Position = math.Lerp2(ps.Progress, p.start, p.end)
		ps.Heading = math.Heading(p.start, p.end)
		ps.DepartTime = p.departTime
		ps.Duration = p.duration
		ps.Distance = p.distance
	} else if p.currentAirport >= 0 && p.currentAirport < len(airports) {
		ps.Position = airports[p.currentAirport].Position
	}

	return ps
}
