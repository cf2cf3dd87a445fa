// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
	"github.com/dustin/go-humanize"
)

type SessionHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	pub realtime.Publisher
}

func NewSessionHandler(conn *sql.DB, cfg cliparse.Config, pub realtime.Publisher) *SessionHandler {
	return &SessionHandler{db: conn, cfg: cfg, pub: pub}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	sessionID := auth.NewID()
	participantID := auth.NewID()
	ts := now()

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(r.Context(), `
		INSERT INTO sessions (id, name, created_by, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, name, user.UserID, true, ts, ts)
	if err != nil {
		slog.Error("failed to insert session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	// The creator is a participant too, so they can vote in their own session.
	_, err = tx.ExecContext(r.Context(), `
		INSERT INTO participants (id, session_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
	`, participantID, sessionID, user.UserID, ts)
	if err != nil {
		slog.Error("failed to insert creator participant", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	slog.Info("session created", "session_id", sessionID, "created_by", user.UserID)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Redirect:      "/session/" + sessionID + "/vote",
	})
}

// ListSessions handles GET /sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, name, created_at FROM sessions
		WHERE is_active = $1
		ORDER BY created_at DESC
	`, true)
	if err != nil {
		slog.Error("failed to query sessions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	sessions := []models.ActiveSession{}
	for rows.Next() {
		var s models.ActiveSession
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			slog.Error("failed to scan session", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		s.CreatedAgo = humanize.Time(s.CreatedAt)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate sessions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListSessionsResponse{Sessions: sessions})
}

// GetSession handles GET /sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
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

	middleware.JSONResponse(w, http.StatusOK, models.SessionDetailResponse{
		Session:   session,
		IsCreator: session.CreatedBy == user.UserID,
	})
}

// EndSession handles POST /sessions/{id}/end
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.EndSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !req.Confirm {
		middleware.ErrorResponse(w, http.StatusBadRequest, "confirm must be true to end the session")
		return
	}

	sessionID := r.PathValue("id")
	session, ok := sessionForCreator(w, r, h.db, sessionID, user.UserID)
	if !ok {
		return
	}

	if !session.IsActive {
		middleware.JSONResponse(w, http.StatusOK, session)
		return
	}

	ts := now()
	_, err := h.db.ExecContext(r.Context(), `
		UPDATE sessions SET is_active = $1, updated_at = $2 WHERE id = $3
	`, false, ts, sessionID)
	if err != nil {
		slog.Error("failed to end session", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to end session")
		return
	}
	session.IsActive = false
	session.UpdatedAt = ts

	slog.Info("session ended", "session_id", sessionID)

	publish(r.Context(), h.pub, realtime.Event{
		Table:     realtime.TableSessions,
		Type:      realtime.EventUpdate,
		SessionID: sessionID,
		RecordID:  sessionID,
		Record:    session,
	})

	middleware.JSONResponse(w, http.StatusOK, session)
}
