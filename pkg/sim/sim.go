// pkg/sim/sim.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmp/airdispatch/pkg/log"
	"github.com/mmp/airdispatch/pkg/math"
	"github.com/mmp/airdispatch/pkg/rand"
	"github.com/mmp/airdispatch/pkg/traffic"
	"github.com/mmp/airdispatch/pkg/util"

	"github.com/brunoga/deep"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTickInterval gives 20 progress updates a second.
	DefaultTickInterval = 50 * time.Millisecond
	// ShutdownTimeout bounds how long End waits for workers to exit.
	ShutdownTimeout = 1500 * time.Millisecond
)

type LifecycleState int32

const (
	Idle LifecycleState = iota
	Running
	Stopped
)

func (s LifecycleState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
}

func (s LifecycleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LifecycleState) UnmarshalText(b []byte) error {
	for _, st := range []LifecycleState{Idle, Running, Stopped} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("%q: unknown lifecycle state", string(b))
}

// Options provides the collaborators a Sim runs with; zero values select
// the standard request generator and servicing routine and a 50ms tick.
type Options struct {
	Requests     RequestSourceFactory
	Servicer     Servicer
	TickInterval time.Duration
	// Now returns the current time; it defaults to time.Now.
	Now func() time.Time
}

// airportQueues are the two work queues owned by each airport.
type airportQueues struct {
	requests  *util.Queue[int] // destination airport ids
	available *util.Queue[int] // ids of planes parked and ready to go
}

type Sim struct {
	config   Config
	airports []Airport
	planes   []*Plane
	queues   []airportQueues

	requests     RequestSourceFactory
	servicer     Servicer
	tickInterval time.Duration
	now          func() time.Time

	inFlight, servicing, completed atomic.Int64

	// mu protects the lifecycle fields below. Tick holds it for reading
	// for its whole evaluation so that End can't race with a submission
	// to the service pool.
	mu        sync.RWMutex
	state     LifecycleState
	cancel    context.CancelFunc
	workers   *errgroup.Group
	service   *servicePool
	startTime time.Time

	eventStream *EventStream
	lg          *log.Logger
}

// NewSim creates a simulation with airports placed on the grid and every
// plane parked at its home airport. It returns an error wrapping
// ErrInvalidConfig if the configuration is unusable.
func NewSim(config Config, opts Options, lg *log.Logger) (*Sim, error) {
	if err := config.Validate(); err != nil {
		lg.Error("invalid configuration", slog.Any("error", err))
		return nil, err
	}

	s := &Sim{
		config:       deep.MustCopy(config),
		requests:     opts.Requests,
		servicer:     opts.Servicer,
		tickInterval: opts.TickInterval,
		now:          opts.Now,
		eventStream:  NewEventStream(lg),
		lg:           lg,
	}
	if s.requests == nil {
		s.requests = func(airport, n int) RequestSource {
			return traffic.NewRequests(airport, n, lg)
		}
	}
	if s.servicer == nil {
		s.servicer = traffic.NewServicing(lg)
	}
	if s.tickInterval <= 0 {
		s.tickInterval = DefaultTickInterval
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := rand.Make()
	if config.Seed != 0 {
		r.Seed(config.Seed)
	}
	for a := range config.NumAirports {
		var pos math.Point2
		if len(config.AirportPositions) > 0 {
			pos = config.AirportPositions[a]
		} else {
			pos = math.Point2{r.Float64() * (config.Width - 1), r.Float64() * (config.Height - 1)}
		}
		s.airports = append(s.airports, Airport{Id: a, Label: fmt.Sprintf("AP %d", a), Position: pos})
		s.queues = append(s.queues, airportQueues{
			requests:  util.NewQueue[int](),
			available: util.NewQueue[int](),
		})
	}

	for a, ap := range s.airports {
		for range config.PlanesPerAirport {
			p := newPlane(len(s.planes), a, ap.Position)
			s.planes = append(s.planes, p)
			s.queues[a].available.Enqueue(p.Id)
		}
	}

	lg.Info("Ready.", slog.Any("config", config), slog.Int("planes", len(s.planes)))

	return s, nil
}

func (s *Sim) Config() Config {
	return deep.MustCopy(s.config)
}

func (s *Sim) EventStream() *EventStream {
	return s.eventStream
}

func (s *Sim) State() LifecycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start launches the request generators, dispatchers, and progress
// tracker. It does nothing if the simulation is already running and
// returns ErrSimStopped if it has already ended.
func (s *Sim) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Running:
		s.lg.Debug("Start called while running")
		return nil
	case Stopped:
		return ErrSimStopped
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.workers = &errgroup.Group{}
	s.service = newServicePool(ctx, s, s.config.TotalPlanes())
	s.state = Running
	s.startTime = s.now()

	for a := range s.airports {
		src := s.requests(a, len(s.airports))
		s.workers.Go(func() error { return s.runRequests(ctx, a, src) })
		s.workers.Go(func() error { return s.runDispatcher(ctx, a) })
	}
	s.workers.Go(func() error { return s.runTracker(ctx) })

	s.postStatus("Simulation started.")
	return nil
}

// End stops the simulation. Every worker is signalled to exit; End waits
// up to ShutdownTimeout for them to do so. Planes that are being serviced
// are left in the Servicing state. Calling End before Start or after a
// previous End does nothing.
func (s *Sim) End() {
	s.mu.Lock()
	if s.state != Running {
		s.lg.Debug("End called while not running", slog.String("state", s.state.String()))
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	cancel, workers, service := s.cancel, s.workers, s.service
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		_ = workers.Wait()
		_ = service.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.lg.Warn("workers still running after shutdown timeout", slog.Duration("timeout", ShutdownTimeout))
	}

	s.postStatus("Simulation ended.")
	s.lg.Info("final counters", slog.Any("counters", s.Counters()))
}

// Close ends the simulation if it is running and releases the event
// stream.
func (s *Sim) Close() {
	s.End()
	s.eventStream.Destroy()
}

func (s *Sim) postStatus(msg string) {
	s.lg.Info(msg)
	s.eventStream.Post(Event{Type: StatusMessageEvent, Time: s.now(), Message: msg,
		Plane: -1, Airport: -1, Origin: -1, Dest: -1})
}

// runRequests feeds destinations from the airport's request source into
// its request queue.
func (s *Sim) runRequests(ctx context.Context, airport int, src RequestSource) error {
	lg := s.lg.With(slog.Int("airport", airport))
	defer func() {
		if r := recover(); r != nil {
			lg.Error("request source panicked", slog.Any("panic", r))
		}
	}()

	for {
		dest, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				lg.Error("request source failed; no further requests from this airport",
					slog.Any("error", err))
			}
			return nil
		}

		if dest < 0 || dest >= len(s.airports) || dest == airport {
			lg.Error("request for invalid destination", slog.Int("dest", dest),
				slog.Any("error", ErrUnknownAirport))
			continue
		}
		s.queues[airport].requests.Enqueue(dest)
	}
}
