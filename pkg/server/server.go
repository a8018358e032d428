// pkg/server/server.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package server provides HTTP endpoints for watching a running
// simulation: a status page, JSON snapshots and counters, per-plane
// queries, and a websocket feed of simulation events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mmp/airdispatch/pkg/log"
	"github.com/mmp/airdispatch/pkg/sim"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/iancoleman/orderedmap"
)

const (
	// SnapshotTTL is how long a simulation snapshot is reused for
	// /status.json requests.
	SnapshotTTL = 250 * time.Millisecond

	shutdownGrace = 2 * time.Second
)

type Server struct {
	sim       *sim.Sim
	startTime time.Time
	snapshots *expirable.LRU[string, sim.Snapshot]
	router    chi.Router
	lg        *log.Logger
}

func New(s *sim.Sim, lg *log.Logger) *Server {
	srv := &Server{
		sim:       s,
		startTime: time.Now(),
		snapshots: expirable.NewLRU[string, sim.Snapshot](1, nil, SnapshotTTL),
		lg:        lg,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(srv.logRequests)

	r.Get("/", srv.statusHandler)
	r.Get("/status.json", srv.snapshotHandler)
	r.Get("/counters", srv.countersHandler)
	r.Get("/queues", srv.queuesHandler)
	r.Get("/planes/{id}", srv.planeHandler)
	r.Get("/events", srv.eventsHandler)
	r.Mount("/debug", middleware.Profiler())

	srv.router = r
	return srv
}

func (srv *Server) Handler() http.Handler {
	return srv.router
}

// ListenAndServe serves HTTP on addr until ctx is cancelled, at which
// point the server is shut down.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv.lg.Infof("Launching HTTP server on %s", listener.Addr())

	hs := &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errch := make(chan error, 1)
	go func() { errch <- hs.Serve(listener) }()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			srv.lg.Warn("HTTP server shutdown", slog.Any("error", err))
		}
		if err := <-errch; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (srv *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		srv.lg.Debug("served request", slog.String("method", r.Method),
			slog.String("path", r.URL.Path), slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)))
	})
}

func (srv *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.lg.Warn("unable to encode response", slog.Any("error", err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// snapshot returns a recent snapshot of the simulation, taking a new one
// if the cached one has expired.
func (srv *Server) snapshot() sim.Snapshot {
	if snap, ok := srv.snapshots.Get("snapshot"); ok {
		return snap
	}
	snap := srv.sim.Snapshot(time.Now())
	srv.snapshots.Add("snapshot", snap)
	return snap
}

func (srv *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, srv.snapshot())
}

func (srv *Server) countersHandler(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, srv.sim.Counters())
}

// queuesHandler reports each airport's queue depths keyed by airport
// label, in airport order.
func (srv *Server) queuesHandler(w http.ResponseWriter, r *http.Request) {
	airports := srv.sim.Airports()
	om := orderedmap.New()
	for _, q := range srv.sim.QueueDepths() {
		om.Set(airports[q.Airport].Label, q)
	}
	srv.writeJSON(w, om)
}

func (srv *Server) planeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid plane id")
		return
	}

	ps, err := srv.sim.PlaneStatus(id, time.Now())
	if errors.Is(err, sim.ErrUnknownPlane) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	srv.writeJSON(w, ps)
}
