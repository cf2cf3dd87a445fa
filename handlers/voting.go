// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/metrics"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
)

var errInvalidEstimate = errors.New("value must be one of 0, 0.5, 1, 2, 3, 5, 8 or ?")

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	pub realtime.Publisher
}

func NewVotingHandler(conn *sql.DB, cfg cliparse.Config, pub realtime.Publisher) *VotingHandler {
	return &VotingHandler{db: conn, cfg: cfg, pub: pub}
}

// SubmitVote handles POST /tickets/{id}/votes
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	value, unknown, err := parseEstimate(req.Value)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ticketID := r.PathValue("id")
	ticket, err := loadTicket(r.Context(), h.db, ticketID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Ticket not found")
		return
	}
	if err != nil {
		slog.Error("failed to query ticket", "error", err, "ticket_id", ticketID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	participantID, err := h.activeParticipant(r.Context(), ticket.SessionID, user.UserID)
	if errors.Is(err, errSessionInactive) {
		middleware.ErrorRedirect(w, http.StatusConflict, "Session has ended", "/")
		return
	}
	if errors.Is(err, errNotParticipant) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Join the session before voting")
		return
	}
	if err != nil {
		slog.Error("failed to query participant", "error", err, "ticket_id", ticketID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.SubmitVoteResponse{
		TicketID:       ticket.ID,
		TotalVotes:     ticket.TotalVotes,
		AdvanceAfterMs: models.AutoAdvanceDelay.Milliseconds(),
	}
	status := http.StatusAccepted

	if unknown {
		// "?" only moves the participant along; nothing is stored.
		metrics.Vote(metrics.VoteSkipped)
		slog.Info("vote skipped", "ticket_id", ticket.ID, "participant_id", participantID)
	} else {
		total, median, err := h.recordVote(r.Context(), ticket.ID, participantID, value)
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted after it was loaded
			middleware.ErrorResponse(w, http.StatusNotFound, "Ticket not found")
			return
		}
		if err != nil {
			slog.Error("failed to record vote", "error", err, "ticket_id", ticket.ID, "participant_id", participantID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit vote")
			return
		}
		metrics.Vote(metrics.VotePersisted)
		slog.Info("vote recorded", "ticket_id", ticket.ID, "participant_id", participantID, "total_votes", total)

		ticket.TotalVotes = total
		ticket.MedianValue = median
		publish(r.Context(), h.pub, realtime.Event{
			Table:     realtime.TableTickets,
			Type:      realtime.EventUpdate,
			SessionID: ticket.SessionID,
			RecordID:  ticket.ID,
			Record:    ticket.ForVoter(),
		})

		resp.Value = &value
		resp.Persisted = true
		resp.TotalVotes = total
		status = http.StatusOK
	}

	next, err := h.nextUnvotedTicket(r.Context(), ticket, participantID)
	if err != nil {
		// The vote itself succeeded; the client can still advance manually.
		slog.Warn("failed to find next ticket", "error", err, "ticket_id", ticket.ID)
	}
	resp.NextTicketID = next

	middleware.JSONResponse(w, status, resp)
}

// MyVotes handles GET /sessions/{id}/my-votes
func (h *VotingHandler) MyVotes(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessionID := r.PathValue("id")
	votes := make(map[string]float64)

	participantID, err := findParticipant(r.Context(), h.db, sessionID, user.UserID)
	if err == sql.ErrNoRows {
		middleware.JSONResponse(w, http.StatusOK, models.MyVotesResponse{Votes: votes})
		return
	}
	if err != nil {
		slog.Error("failed to query participant", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT v.ticket_id, v.value
		FROM votes v
		JOIN tickets t ON t.id = v.ticket_id
		WHERE t.session_id = $1 AND v.participant_id = $2
	`, sessionID, participantID)
	if err != nil {
		slog.Error("failed to query votes", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var ticketID string
		var value float64
		if err := rows.Scan(&ticketID, &value); err != nil {
			slog.Error("failed to scan vote", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		votes[ticketID] = value
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MyVotesResponse{Votes: votes})
}

// activeParticipant returns the caller's participant id in an active session
func (h *VotingHandler) activeParticipant(ctx context.Context, sessionID, userID string) (string, error) {
	var active bool
	err := h.db.QueryRowContext(ctx, `SELECT is_active FROM sessions WHERE id = $1`, sessionID).Scan(&active)
	if err == sql.ErrNoRows || (err == nil && !active) {
		return "", errSessionInactive
	}
	if err != nil {
		return "", err
	}

	participantID, err := findParticipant(ctx, h.db, sessionID, userID)
	if err == sql.ErrNoRows {
		return "", errNotParticipant
	}
	return participantID, err
}

// recordVote upserts the vote and refreshes the ticket's counters in one
// transaction. Touching the ticket first serializes concurrent voters.
func (h *VotingHandler) recordVote(ctx context.Context, ticketID, participantID string, value float64) (int, float64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	res, err := tx.ExecContext(ctx, `UPDATE tickets SET updated_at = $1 WHERE id = $2`, ts, ticketID)
	if err != nil {
		return 0, 0, fmt.Errorf("lock ticket: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("lock ticket: %w", err)
	} else if n == 0 {
		return 0, 0, sql.ErrNoRows
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (id, ticket_id, participant_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticket_id, participant_id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, auth.NewID(), ticketID, participantID, value, ts, ts)
	if err != nil {
		return 0, 0, fmt.Errorf("upsert vote: %w", err)
	}

	values, err := voteValues(ctx, tx, ticketID)
	if err != nil {
		return 0, 0, fmt.Errorf("load votes: %w", err)
	}
	median := Median(values)

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets SET total_votes = $1, median_value = $2, updated_at = $3 WHERE id = $4
	`, len(values), median, ts, ticketID)
	if err != nil {
		return 0, 0, fmt.Errorf("update ticket counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return len(values), median, nil
}

func voteValues(ctx context.Context, q queryer, ticketID string) ([]float64, error) {
	rows, err := q.QueryContext(ctx, `SELECT value FROM votes WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// nextUnvotedTicket finds the first ticket after current, in session order,
// that the participant has not voted on. It returns nil when there is none.
func (h *VotingHandler) nextUnvotedTicket(ctx context.Context, current models.Ticket, participantID string) (*string, error) {
	tickets, err := loadTickets(ctx, h.db, current.SessionID)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT v.ticket_id
		FROM votes v
		JOIN tickets t ON t.id = v.ticket_id
		WHERE t.session_id = $1 AND v.participant_id = $2
	`, current.SessionID, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	voted := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		voted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(tickets, func(t models.Ticket) bool { return t.ID == current.ID })
	if idx < 0 {
		return nil, nil
	}
	for _, t := range tickets[idx+1:] {
		if !voted[t.ID] {
			id := t.ID
			return &id, nil
		}
	}
	return nil, nil
}

// parseEstimate accepts a number from models.EstimateOptions or the string "?".
// unknown is true for "?".
func parseEstimate(raw json.RawMessage) (value float64, unknown bool, err error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == models.EstimateUnknown {
			return 0, true, nil
		}
		return 0, false, errInvalidEstimate
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false, errInvalidEstimate
	}
	if !slices.Contains(models.EstimateOptions, value) {
		return 0, false, errInvalidEstimate
	}
	return value, false, nil
}
