// pkg/sim/eventstream.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/mmp/airdispatch/pkg/log"
)

// EventStream provides a basic pub/sub event interface that allows any
// part of the system to post an event to the stream and other parts to
// subscribe and receive messages from the stream. Each subscriber sees an
// append-only feed of the events posted after it subscribed.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	subscriptions map[*EventsSubscription]any
	lastPost      time.Time
	warnedLong    bool
	done          chan struct{}
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is offset in the EventStream stream array up to which the
	// subscriber has consumed events so far.
	offset      int
	source      string
	lastGet     time.Time
	warnedNoGet bool
}

func (e *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("offset", e.offset),
		slog.String("source", e.source),
		slog.Time("last_get", e.lastGet))
}

func NewEventStream(lg *log.Logger) *EventStream {
	es := &EventStream{
		subscriptions: make(map[*EventsSubscription]any),
		lastPost:      time.Now(),
		done:          make(chan struct{}),
		lg:            lg,
	}
	go es.monitor()
	return es
}

// Subscribe registers a new subscriber to the stream and returns an
// EventsSubscription that is then used to fetch events.
func (e *EventStream) Subscribe() *EventsSubscription {
	// Record the subscriber's callsite, so that we can more easily debug
	// subscribers that aren't consuming events.
	_, fn, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", fn, line)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{
		stream:  e,
		offset:  len(e.events),
		source:  source,
		lastGet: time.Now(),
	}
	e.subscriptions[sub] = nil
	return sub
}

func (e *EventStream) monitor() {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-tick.C:
		}

		e.mu.Lock()

		e.compact()

		if len(e.events) > 1000 && !e.warnedLong {
			// It's likely that one of the subscribers is out to lunch if
			// the stream has grown this long.
			e.lg.Warn("Long EventStream", slog.Int("length", len(e.events)),
				log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(e.subscriptions))))
			e.warnedLong = true
		}

		// Check if any of the subscribers haven't been consuming events,
		// though only if events are being posted to the stream so we don't
		// complain when the sim is stopped.
		if time.Since(e.lastPost) < 5*time.Second {
			for sub := range e.subscriptions {
				if d := time.Since(sub.lastGet); d > 10*time.Second && !sub.warnedNoGet {
					e.lg.Warn("Subscriber has not called Get() recently",
						slog.Duration("duration", d), slog.Any("subscriber", sub))
					sub.warnedNoGet = true
				}
			}
		}

		e.mu.Unlock()
	}
}

// Unsubscribe removes a subscriber from the subscriber list
func (e *EventsSubscription) Unsubscribe() {
	if e.stream == nil {
		return
	}

	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to unsubscribe invalid subscription: %+v", e)
	}
	delete(e.stream.subscriptions, e)
	e.stream = nil
}

// Post adds an event to the event stream.
func (e *EventStream) Post(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debug("posted event", slog.Any("event", event))

	// Ignore the event if no one's paying attention.
	if len(e.subscriptions) > 0 {
		e.lastPost = time.Now()
		e.events = append(e.events, event)
	}
}

// Get returns all of the events from the stream since the last time Get
// was called with the given subscription. Note that events before the
// subscription was created with Subscribe are never reported for it.
func (e *EventsSubscription) Get() []Event {
	if e.stream == nil {
		return nil
	}

	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to get with unregistered subscription: %+v", e)
		return nil
	}

	events := slices.Clone(e.stream.events[e.offset:])
	e.offset = len(e.stream.events)
	e.lastGet = time.Now()
	e.warnedNoGet = false

	return events
}

func (e *EventStream) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.done:
		// Already destroyed.
		return
	default:
	}

	close(e.done)
	clear(e.subscriptions)
}

// compact reclaims storage for events that all subscribers have seen; it
// is called periodically so that EventStream memory usage doesn't grow
// without bound.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		if sub.offset < minOffset {
			minOffset = sub.offset
		}
	}

	if minOffset > cap(e.events)/2 {
		n := len(e.events) - minOffset

		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]

		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}

		e.warnedLong = false // reset this after a successful compact.
	}
}

// implements slog.LogValuer
func (e *EventStream) LogValue() slog.Value {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := []slog.Attr{slog.Int("len", len(e.events)), slog.Int("cap", cap(e.events))}
	if len(e.events) > 0 {
		items = append(items, slog.Any("last_element", e.events[len(e.events)-1]))
	}
	items = append(items, log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(e.subscriptions))))
	return slog.GroupValue(items...)
}

///////////////////////////////////////////////////////////////////////////

type EventType int

const (
	StatusMessageEvent EventType = iota
	DepartedEvent
	LandedEvent
	ServicedEvent
	ServiceAbandonedEvent
	NumEventTypes
)

func (t EventType) String() string {
	return []string{"StatusMessage", "Departed", "Landed", "Serviced", "ServiceAbandoned"}[t]
}

func (t EventType) MarshalText() ([]byte, error) {
	if t < 0 || t >= NumEventTypes {
		return nil, fmt.Errorf("%d: invalid event type", int(t))
	}
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	for et := range NumEventTypes {
		if et.String() == string(b) {
			*t = et
			return nil
		}
	}
	return fmt.Errorf("%q: unknown event type", string(b))
}

// Event is one entry in the simulation's feed. Which fields are set
// depends on the Type: Departed carries Origin, Dest, Distance and
// Duration; Landed and Serviced carry Airport; StatusMessage carries only
// Message.
type Event struct {
	Type     EventType     `json:"type" msgpack:"type"`
	Time     time.Time     `json:"time" msgpack:"time"`
	Plane    int           `json:"plane" msgpack:"plane"`
	Airport  int           `json:"airport" msgpack:"airport"`
	Origin   int           `json:"origin" msgpack:"origin"`
	Dest     int           `json:"dest" msgpack:"dest"`
	Distance float64       `json:"distance,omitempty" msgpack:"distance,omitempty"`
	Duration time.Duration `json:"duration,omitempty" msgpack:"duration,omitempty"`
	Message  string        `json:"message,omitempty" msgpack:"message,omitempty"`
}

func (e Event) String() string {
	switch e.Type {
	case DepartedEvent:
		return fmt.Sprintf("DEPART: Plane %d from AP %d -> AP %d", e.Plane, e.Origin, e.Dest)
	case LandedEvent:
		return fmt.Sprintf("LAND: Plane %d at AP %d", e.Plane, e.Airport)
	case ServicedEvent:
		return fmt.Sprintf("SERVICED: Plane %d at AP %d", e.Plane, e.Airport)
	case ServiceAbandonedEvent:
		return fmt.Sprintf("ABANDONED: Plane %d servicing at AP %d", e.Plane, e.Airport)
	default:
		return e.Message
	}
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", e.Type.String()), slog.Time("time", e.Time)}
	switch e.Type {
	case DepartedEvent:
		attrs = append(attrs, slog.Int("plane", e.Plane), slog.Int("origin", e.Origin),
			slog.Int("dest", e.Dest), slog.Float64("distance", e.Distance),
			slog.Duration("duration", e.Duration))
	case LandedEvent, ServicedEvent, ServiceAbandonedEvent:
		attrs = append(attrs, slog.Int("plane", e.Plane), slog.Int("airport", e.Airport))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("message", e.Message))
	}
	return slog.GroupValue(attrs...)
}
