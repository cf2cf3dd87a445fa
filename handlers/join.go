// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/db"
	"github.com/danielhkuo/agile-poker/metrics"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
	"golang.org/x/sync/singleflight"
)

// Join flow stages, logged as the request moves through them
const (
	stageStart             = "start"
	stageValidatingSession = "validating_session"
	stageCheckingExisting  = "checking_existing_participant"
	stageReusing           = "reusing"
	stageCreating          = "creating_participant"
	stageRedirected        = "redirected"
)

type joinResult struct {
	participantID string
	reused        bool
	outcome       string
}

type JoinHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	pub realtime.Publisher

	// inflight collapses concurrent joins of one user to one session
	inflight singleflight.Group
}

func NewJoinHandler(conn *sql.DB, cfg cliparse.Config, pub realtime.Publisher) *JoinHandler {
	return &JoinHandler{db: conn, cfg: cfg, pub: pub}
}

// JoinSession handles POST /sessions/{id}/join
func (h *JoinHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "session_id is required")
		return
	}

	// The shared call must outlive whichever request started it.
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := h.inflight.Do(sessionID+"/"+user.UserID, func() (any, error) {
		return h.join(ctx, sessionID, user)
	})

	if errors.Is(err, errSessionInactive) {
		metrics.Join(metrics.JoinRejected)
		middleware.ErrorRedirect(w, http.StatusNotFound, "Session not found or inactive", "/")
		return
	}
	if err != nil {
		slog.Error("failed to join session", "error", err, "session_id", sessionID, "user_id", user.UserID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to join session")
		return
	}

	res := v.(joinResult)
	metrics.Join(res.outcome)
	logStage(sessionID, user.UserID, stageRedirected)

	status := http.StatusOK
	if !res.reused {
		status = http.StatusCreated
	}
	middleware.JSONResponse(w, status, models.JoinSessionResponse{
		SessionID:     sessionID,
		ParticipantID: res.participantID,
		Reused:        res.reused,
		Redirect:      "/session/" + sessionID + "/vote",
	})
}

func (h *JoinHandler) join(ctx context.Context, sessionID string, user models.Identity) (joinResult, error) {
	logStage(sessionID, user.UserID, stageStart)

	logStage(sessionID, user.UserID, stageValidatingSession)
	var active bool
	err := h.db.QueryRowContext(ctx, `SELECT is_active FROM sessions WHERE id = $1`, sessionID).Scan(&active)
	if err == sql.ErrNoRows || (err == nil && !active) {
		return joinResult{}, errSessionInactive
	}
	if err != nil {
		return joinResult{}, err
	}

	logStage(sessionID, user.UserID, stageCheckingExisting)
	participantID, err := findParticipant(ctx, h.db, sessionID, user.UserID)
	if err == nil {
		logStage(sessionID, user.UserID, stageReusing)
		return joinResult{participantID: participantID, reused: true, outcome: metrics.JoinReused}, nil
	}
	if err != sql.ErrNoRows {
		return joinResult{}, err
	}

	logStage(sessionID, user.UserID, stageCreating)
	newID := auth.NewID()
	joinedAt := now()

	// A conflicting insert from another server returns the existing row's id.
	err = h.db.QueryRowContext(ctx, `
		INSERT INTO participants (id, session_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, user_id) DO UPDATE SET session_id = EXCLUDED.session_id
		RETURNING id
	`, newID, sessionID, user.UserID, joinedAt).Scan(&participantID)
	if db.IsUniqueViolation(err) {
		participantID, err = findParticipant(ctx, h.db, sessionID, user.UserID)
		if err != nil {
			return joinResult{}, err
		}
		slog.Warn("join recovered from duplicate participant", "session_id", sessionID, "user_id", user.UserID)
		return joinResult{participantID: participantID, reused: true, outcome: metrics.JoinRecovered}, nil
	}
	if err != nil {
		return joinResult{}, err
	}

	if participantID != newID {
		return joinResult{participantID: participantID, reused: true, outcome: metrics.JoinRecovered}, nil
	}

	slog.Info("participant joined", "session_id", sessionID, "participant_id", participantID)

	publish(ctx, h.pub, realtime.Event{
		Table:     realtime.TableParticipants,
		Type:      realtime.EventInsert,
		SessionID: sessionID,
		RecordID:  participantID,
		Record: models.Participant{
			ID:        participantID,
			SessionID: sessionID,
			UserID:    user.UserID,
			UserName:  user.Name,
			JoinedAt:  joinedAt,
		},
	})

	return joinResult{participantID: participantID, outcome: metrics.JoinCreated}, nil
}

func logStage(sessionID, userID, stage string) {
	slog.Debug("join stage", "stage", stage, "session_id", sessionID, "user_id", userID)
}
