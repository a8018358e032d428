// pkg/sim/eventstream_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mmp/airdispatch/pkg/rand"

	"github.com/vmihailenco/msgpack/v5"
)

func TestEventStream(t *testing.T) {
	es := NewEventStream(testLogger())
	defer es.Destroy()

	es.Post(Event{})
	sub := es.Subscribe()
	if len(sub.Get()) != 0 {
		t.Errorf("Returned non-empty slice")
	}

	es.Post(Event{Type: DepartedEvent})
	es.Post(Event{Type: LandedEvent})
	s := sub.Get()
	if len(s) != 2 {
		t.Fatalf("didn't return 2 item slice")
	}

	if s[0].Type != DepartedEvent {
		t.Errorf("Expected Departed, got %v", s[0].Type)
	}
	if s[1].Type != LandedEvent {
		t.Errorf("Expected Landed, got %v", s[1].Type)
	}

	if len(sub.Get()) != 0 {
		t.Errorf("Returned non-empty slice")
	}

	sub.Unsubscribe()
	if sub.Get() != nil {
		t.Errorf("expected nil from an unsubscribed subscription")
	}
	// Unsubscribing twice is harmless.
	sub.Unsubscribe()
}

func TestEventStreamUnobserved(t *testing.T) {
	es := NewEventStream(testLogger())
	defer es.Destroy()

	for range 100 {
		es.Post(Event{Type: StatusMessageEvent, Message: "nobody listening"})
	}
	es.mu.Lock()
	n := len(es.events)
	es.mu.Unlock()
	if n != 0 {
		t.Errorf("expected events without subscribers to be dropped, have %d", n)
	}
}

func TestEventStreamCompact(t *testing.T) {
	es := NewEventStream(testLogger())
	defer es.Destroy()

	// multiple consumers, at different offsets
	subs := [4]*EventsSubscription{es.Subscribe(), es.Subscribe(), es.Subscribe(), es.Subscribe()}
	// consume probability
	p := [4]float64{1, 0.75, 0.05, 0.5}
	// next value we expect to get from the stream
	var idx [4]int

	i, iter := 0, 0
	for i < 65536 {
		// Add a bunch of consecutive numbers to the stream
		n := rand.Intn(255)
		for j := 0; j < n; j++ {
			es.Post(Event{Type: DepartedEvent, Plane: i + j})
		}
		i += n

		if iter == 1 {
			subs[1].Unsubscribe()
		}

		for c, prob := range p {
			if rand.Float64() > prob || (iter > 0 && c == 1) /* unsubscribed */ {
				continue
			}
			for _, ev := range subs[c].Get() {
				if idx[c] != ev.Plane {
					t.Errorf("expected %d, got %d for consumer %d", idx[c], ev.Plane, c)
				}
				idx[c]++
			}
		}

		es.mu.Lock()
		es.compact()
		es.mu.Unlock()
		iter++
	}

	if cap(es.events) > i/2 {
		t.Errorf("is compaction not happening? len %d cap %d", len(es.events), cap(es.events))
	}
}

func TestEventStreamDestroy(t *testing.T) {
	es := NewEventStream(testLogger())
	sub := es.Subscribe()
	es.Destroy()
	es.Destroy()

	es.Post(Event{Type: LandedEvent})
	if ev := sub.Get(); len(ev) != 0 {
		t.Errorf("expected no events after Destroy, got %v", ev)
	}
}

func TestEventString(t *testing.T) {
	for _, test := range []struct {
		ev       Event
		expected string
	}{
		{Event{Type: DepartedEvent, Plane: 3, Origin: 1, Dest: 4}, "DEPART: Plane 3 from AP 1 -> AP 4"},
		{Event{Type: LandedEvent, Plane: 3, Airport: 4}, "LAND: Plane 3 at AP 4"},
		{Event{Type: ServicedEvent, Plane: 7, Airport: 0}, "SERVICED: Plane 7 at AP 0"},
		{Event{Type: ServiceAbandonedEvent, Plane: 7, Airport: 2}, "ABANDONED: Plane 7 servicing at AP 2"},
		{Event{Type: StatusMessageEvent, Message: "Simulation started."}, "Simulation started."},
	} {
		if s := test.ev.String(); s != test.expected {
			t.Errorf("expected %q, got %q", test.expected, s)
		}
	}
}

func TestEventEncoding(t *testing.T) {
	ev := Event{
		Type:     DepartedEvent,
		Time:     time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC),
		Plane:    12,
		Airport:  -1,
		Origin:   2,
		Dest:     5,
		Distance: 3.5,
		Duration: 2916 * time.Millisecond,
	}

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("json: %v", err)
	}
	if m["type"] != "Departed" {
		t.Errorf("expected event type to be encoded by name, got %v", m["type"])
	}

	b, err = msgpack.Marshal(ev)
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	var back Event
	if err := msgpack.Unmarshal(b, &back); err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if !back.Time.Equal(ev.Time) {
		t.Errorf("expected time %s, got %s", ev.Time, back.Time)
	}
	back.Time = ev.Time
	if back != ev {
		t.Errorf("expected %+v, got %+v", ev, back)
	}

	var et EventType
	if err := et.UnmarshalText([]byte("Bogus")); err == nil {
		t.Errorf("expected error for unknown event type")
	}
}
