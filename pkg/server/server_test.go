// pkg/server/server_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmp/airdispatch/pkg/log"
	"github.com/mmp/airdispatch/pkg/math"
	"github.com/mmp/airdispatch/pkg/sim"

	"github.com/gorilla/websocket"
)

func idleSources(airport, n int) sim.RequestSource {
	return sim.RequestSourceFunc(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return -1, ctx.Err()
	})
}

func newTestServer(t *testing.T) (*sim.Sim, *httptest.Server) {
	t.Helper()

	lg := log.NewWriter(io.Discard, "info")
	config := sim.DefaultConfig()
	config.NumAirports, config.PlanesPerAirport = 3, 2
	config.AirportPositions = []math.Point2{{1, 1}, {4, 5}, {8, 2}}

	s, err := sim.NewSim(config, sim.Options{
		Requests: idleSources,
		Servicer: sim.ServicerFunc(func(ctx context.Context, airport, plane int) error { return nil }),
	}, lg)
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	t.Cleanup(s.Close)

	ts := httptest.NewServer(New(s, lg).Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp.StatusCode, string(b)
}

func TestCounters(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/counters")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var c sim.Counters
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		t.Fatalf("%s: %v", body, err)
	}
	if c != (sim.Counters{}) {
		t.Errorf("expected zero counters, got %s", c)
	}
}

func TestPlane(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/planes/3")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var ps sim.PlaneStatus
	if err := json.Unmarshal([]byte(body), &ps); err != nil {
		t.Fatalf("%s: %v", body, err)
	}
	if ps.Id != 3 || ps.State != sim.OnGround || ps.Airport != 1 || ps.Position != (math.Point2{4, 5}) {
		t.Errorf("unexpected plane status %+v", ps)
	}

	for _, test := range []struct {
		path string
		code int
	}{
		{"/planes/17", http.StatusNotFound},
		{"/planes/-1", http.StatusNotFound},
		{"/planes/abc", http.StatusBadRequest},
		{"/nowhere", http.StatusNotFound},
	} {
		if code, body := get(t, ts.URL+test.path); code != test.code {
			t.Errorf("%s: expected %d, got %d: %s", test.path, test.code, code, body)
		}
	}
}

func TestQueues(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/queues")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	// Airports are reported in order.
	i0, i1, i2 := strings.Index(body, `"AP 0"`), strings.Index(body, `"AP 1"`), strings.Index(body, `"AP 2"`)
	if i0 < 0 || i1 < i0 || i2 < i1 {
		t.Errorf("airports missing or out of order: %s", body)
	}

	var queues map[string]sim.QueueDepth
	if err := json.Unmarshal([]byte(body), &queues); err != nil {
		t.Fatalf("%s: %v", body, err)
	}
	if q := queues["AP 2"]; q.Airport != 2 || q.Available != 2 || q.Requests != 0 {
		t.Errorf("unexpected queue depth %+v", q)
	}
}

func TestSnapshotCached(t *testing.T) {
	s, ts := newTestServer(t)

	var first, second sim.Snapshot
	_, body := get(t, ts.URL+"/status.json")
	if err := json.Unmarshal([]byte(body), &first); err != nil {
		t.Fatalf("%s: %v", body, err)
	}
	if first.State != sim.Idle || len(first.Planes) != 6 || len(first.Airports) != 3 {
		t.Errorf("unexpected snapshot %+v", first)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Within the TTL, the cached snapshot is returned.
	_, body = get(t, ts.URL+"/status.json")
	if err := json.Unmarshal([]byte(body), &second); err != nil {
		t.Fatalf("%s: %v", body, err)
	}
	if !second.Time.Equal(first.Time) {
		t.Skip("request took longer than the snapshot TTL")
	}

	time.Sleep(SnapshotTTL + 50*time.Millisecond)
	_, body = get(t, ts.URL+"/status.json")
	if err := json.Unmarshal([]byte(body), &second); err != nil {
		t.Fatalf("%s: %v", body, err)
	}
	if second.State != sim.Running {
		t.Errorf("expected a fresh snapshot after the TTL, got state %s", second.State)
	}
}

func TestStatusPage(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := get(t, ts.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, s := range []string{"Simulation Status", "In-Flight: 0 | Servicing: 0 | Completed: 0", "AP 2", "(8.00, 2.00)"} {
		if !strings.Contains(body, s) {
			t.Errorf("expected status page to contain %q", s)
		}
	}
}

func TestEvents(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev sim.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != sim.StatusMessageEvent || ev.Message != "Simulation started." {
		t.Errorf("unexpected event %+v", ev)
	}
}
