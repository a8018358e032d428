// pkg/sim/journal_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"bytes"
	"context"
	"slices"
	"testing"
	"time"

	"github.com/mmp/airdispatch/pkg/math"

	"github.com/google/uuid"
)

func TestJournalRoundTrip(t *testing.T) {
	config := DefaultConfig()
	config.NumAirports, config.PlanesPerAirport = 3, 2
	config.AirportPositions = []math.Point2{{1, 1}, {5, 1}, {5, 4}}
	s := newTestSim(t, config, Options{})

	var buf bytes.Buffer
	j, err := NewJournal(&buf, s, testLogger())
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	if _, err := uuid.Parse(j.RunId()); err != nil {
		t.Errorf("run id %q is not a UUID: %v", j.RunId(), err)
	}

	ctx := context.Background()
	if ok, err := s.dispatch(ctx, s.planes[0], 0, 1); !ok || err != nil {
		t.Fatalf("dispatch: %v %v", ok, err)
	}
	if err := j.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if ok, err := s.dispatch(ctx, s.planes[4], 2, 0); !ok || err != nil {
		t.Fatalf("dispatch: %v %v", ok, err)
	}
	s.postStatus("checkpoint")

	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Closing again does nothing.
	if err := j.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	hdr, events, err := ReadJournal(&buf)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if hdr.RunId != j.RunId() {
		t.Errorf("expected run id %s, got %s", j.RunId(), hdr.RunId)
	}
	if hdr.Config.NumAirports != 3 || !slices.Equal(hdr.Config.AirportPositions, config.AirportPositions) {
		t.Errorf("unexpected config in header: %+v", hdr.Config)
	}
	if !slices.Equal(hdr.Airports, s.Airports()) {
		t.Errorf("expected airports %v, got %v", s.Airports(), hdr.Airports)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0].Type != DepartedEvent || events[0].Plane != 0 || events[0].Dest != 1 || events[0].Distance != 4 {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if expected := time.Duration(4 / config.Speed * float64(time.Second)); events[0].Duration != expected {
		t.Errorf("expected duration %s, got %s", expected, events[0].Duration)
	}
	if events[1].Type != DepartedEvent || events[1].Plane != 4 || events[1].Origin != 2 || events[1].Distance != 5 {
		t.Errorf("unexpected second event %+v", events[1])
	}
	if events[2].Type != StatusMessageEvent || events[2].Message != "checkpoint" {
		t.Errorf("unexpected third event %+v", events[2])
	}
}

func TestJournalRun(t *testing.T) {
	config := DefaultConfig()
	config.NumAirports, config.PlanesPerAirport = 2, 1
	s := newTestSim(t, config, Options{})

	var buf bytes.Buffer
	j, err := NewJournal(&buf, s, testLogger())
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- j.Run(ctx, 5*time.Millisecond) }()

	s.postStatus("one")
	time.Sleep(20 * time.Millisecond)
	s.postStatus("two")
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, events, err := ReadJournal(&buf)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	var msgs []string
	for _, ev := range events {
		msgs = append(msgs, ev.Message)
	}
	if !slices.Equal(msgs, []string{"one", "two"}) {
		t.Errorf("expected messages [one two], got %v", msgs)
	}
}

func TestReadJournalGarbage(t *testing.T) {
	if _, _, err := ReadJournal(bytes.NewReader([]byte("not a journal"))); err == nil {
		t.Errorf("expected error reading garbage")
	}
}
