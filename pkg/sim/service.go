// pkg/sim/service.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmp/airdispatch/pkg/log"

	"golang.org/x/sync/errgroup"
)

// servicePool runs one task per landed plane and has a slot per plane. A
// task releases its slot just after requeueing its plane, so Submit can
// briefly wait for that task to return if the same plane lands again
// first.
type servicePool struct {
	ctx context.Context
	eg  errgroup.Group
	sim *Sim
}

func newServicePool(ctx context.Context, s *Sim, limit int) *servicePool {
	sp := &servicePool{ctx: ctx, sim: s}
	sp.eg.SetLimit(limit)
	return sp
}

func (sp *servicePool) Submit(airport, plane int) {
	sp.eg.Go(func() error {
		sp.service(airport, plane)
		return nil
	})
}

func (sp *servicePool) Wait() error {
	return sp.eg.Wait()
}

// service runs the servicing routine for a plane and then returns it to
// the available pool at the airport where it landed. If the simulation
// ends first, the plane is abandoned in the Servicing state.
func (sp *servicePool) service(airport, id int) {
	s := sp.sim
	lg := s.lg.With(slog.Int("airport", airport), slog.Int("plane", id))

	if id < 0 || id >= len(s.planes) {
		lg.Error("service skipped", slog.Any("error", ErrUnknownPlane))
		return
	}
	if airport < 0 || airport >= len(s.airports) {
		lg.Error("service skipped", slog.Any("error", ErrUnknownAirport))
		return
	}

	p := s.planes[id]
	if err := sp.runServicer(airport, id); err != nil {
		sp.abandon(lg, p, airport, err)
		return
	}

	p.mu.Lock(s.lg)
	if err := sp.ctx.Err(); err != nil {
		// The servicer finished but the simulation has ended; treat it
		// the same as an interrupted servicing.
		p.mu.Unlock(s.lg)
		sp.abandon(lg, p, airport, err)
		return
	}
	if p.state != Servicing || p.currentAirport != airport {
		lg.Error("serviced plane in unexpected state", slog.Any("plane", p))
		p.mu.Unlock(s.lg)
		return
	}
	p.state = OnGround
	p.currentAirport = airport
	p.clearFlight(s.airports[airport].Position)
	s.servicing.Add(-1)
	p.mu.Unlock(s.lg)

	ev := Event{Type: ServicedEvent, Time: s.now(), Plane: id, Airport: airport, Origin: -1, Dest: -1}
	s.lg.Debug(ev.String(), slog.Any("event", ev))
	s.eventStream.Post(ev)

	s.queues[airport].available.Enqueue(id)
}

// abandon leaves p in the Servicing state after its servicing was
// interrupted or failed.
func (sp *servicePool) abandon(lg *log.Logger, p *Plane, airport int, err error) {
	s := sp.sim
	if errors.Is(err, context.Canceled) && sp.ctx.Err() != nil {
		lg.Debug("servicing abandoned at shutdown")
		s.eventStream.Post(Event{Type: ServiceAbandonedEvent, Time: s.now(), Plane: p.Id,
			Airport: airport, Origin: -1, Dest: -1})
	} else {
		lg.Error("servicing failed; plane left in Servicing", slog.Any("error", err))
	}
}

// runServicer calls the Servicer, converting a panic into an error.
func (sp *servicePool) runServicer(airport, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("servicer panic: %v", r)
		}
	}()
	return sp.sim.servicer.Service(sp.ctx, airport, id)
}
