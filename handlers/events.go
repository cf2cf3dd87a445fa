// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/metrics"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/realtime"
	"github.com/gorilla/websocket"
)

var feedTables = map[string]bool{
	realtime.TableSessions:     true,
	realtime.TableParticipants: true,
	realtime.TableTickets:      true,
}

type EventsHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewEventsHandler(conn *sql.DB, cfg cliparse.Config, hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{
		db:  conn,
		cfg: cfg,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect. The token is never a cookie, so access
			// rests on it and on session membership.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe handles GET /sessions/{id}/events
// The connection is upgraded to a websocket that streams change events for
// the session until the client disconnects.
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	tables, err := parseTables(r.URL.Query().Get("tables"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := r.PathValue("id")
	session, err := loadSession(r.Context(), h.db, sessionID)
	if err == sql.ErrNoRows {
		middleware.ErrorRedirect(w, http.StatusNotFound, "Session not found", "/")
		return
	}
	if err != nil {
		slog.Error("failed to query session", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if session.CreatedBy != user.UserID {
		if _, err := findParticipant(r.Context(), h.db, sessionID, user.UserID); err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusForbidden, "Join the session to follow its changes")
			return
		} else if err != nil {
			slog.Error("failed to query participant", "error", err, "session_id", sessionID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("websocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}

	client := realtime.NewClient(conn, slog.Default())
	h.hub.Register(sessionID, client, tables...)
	metrics.ClientConnected()
	slog.Info("change feed subscribed", "session_id", sessionID, "user_id", user.UserID, "tables", tables)

	client.WaitClosed()

	h.hub.Unregister(sessionID, client)
	client.Close()
	metrics.ClientDisconnected()
	slog.Info("change feed closed", "session_id", sessionID, "user_id", user.UserID)
}

// parseTables reads a comma-separated table filter. Empty means every table.
func parseTables(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var tables []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !feedTables[t] {
			return nil, fmt.Errorf("unknown table %q", t)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
