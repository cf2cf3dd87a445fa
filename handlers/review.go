// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
)

type ReviewHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewReviewHandler(conn *sql.DB, cfg cliparse.Config) *ReviewHandler {
	return &ReviewHandler{db: conn, cfg: cfg}
}

// GetReview handles GET /sessions/{id}/review
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessionID := r.PathValue("id")
	session, ok := sessionForCreator(w, r, h.db, sessionID, user.UserID)
	if !ok {
		return
	}

	tickets, err := loadTickets(r.Context(), h.db, sessionID)
	if err != nil {
		slog.Error("failed to query tickets", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	participants, err := loadParticipants(r.Context(), h.db, sessionID)
	if err != nil {
		slog.Error("failed to query participants", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	votesByTicket, err := loadSessionVotes(r.Context(), h.db, sessionID)
	if err != nil {
		slog.Error("failed to query votes", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := models.ReviewResponse{
		Session:      session,
		Tickets:      make([]models.ReviewTicket, 0, len(tickets)),
		Participants: participants,
	}

	for _, t := range tickets {
		votes := votesByTicket[t.ID]
		if votes == nil {
			votes = []models.Vote{}
		}

		values := make([]float64, len(votes))
		for i, v := range votes {
			values[i] = v.Value
		}

		// Counters come from the loaded votes, not the cached columns.
		median := Median(values)
		t.TotalVotes = len(votes)
		t.MedianValue = median
		resp.Tickets = append(resp.Tickets, models.ReviewTicket{
			Ticket: t,
			Votes:  votes,
			Median: median,
		})

		resp.Stats.VoteCount += len(votes)
		if len(votes) > 0 {
			resp.Stats.VotedTicketCount++
		}
	}
	resp.Stats.TicketCount = len(tickets)
	resp.Stats.ParticipantCount = len(participants)

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// loadSessionVotes returns every vote on the session's tickets, keyed by ticket id
func loadSessionVotes(ctx context.Context, q queryer, sessionID string) (map[string][]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT v.id, v.ticket_id, v.participant_id, u.name, v.value, v.updated_at
		FROM votes v
		JOIN tickets t ON t.id = v.ticket_id
		JOIN participants p ON p.id = v.participant_id
		JOIN users u ON u.id = p.user_id
		WHERE t.session_id = $1
		ORDER BY v.updated_at ASC, v.id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := make(map[string][]models.Vote)
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.TicketID, &v.ParticipantID, &v.ParticipantName, &v.Value, &v.UpdatedAt); err != nil {
			return nil, err
		}
		votes[v.TicketID] = append(votes[v.TicketID], v)
	}
	return votes, rows.Err()
}
