// pkg/server/events.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventPollInterval = 100 * time.Millisecond
	writeTimeout      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventsHandler streams the simulation's events to a websocket client as
// JSON messages, one per event, until the client goes away or the server
// shuts down.
func (srv *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	// Subscribe first so that nothing posted once the client is
	// connected is missed.
	sub := srv.sim.EventStream().Subscribe()
	defer sub.Unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.lg.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	lg := srv.lg.With(slog.String("remote", r.RemoteAddr))
	lg.Info("event stream client connected")

	// The client doesn't send us anything, but reading is how we find out
	// that it has closed the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeTimeout))
			return
		case <-closed:
			lg.Info("event stream client disconnected")
			return
		case <-ticker.C:
			for _, ev := range sub.Get() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					lg.Info("event stream write failed", slog.Any("error", err))
					return
				}
			}
		}
	}
}
