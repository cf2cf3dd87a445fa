// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
)

var (
	errSessionInactive = errors.New("session not found or inactive")
	errNotParticipant  = errors.New("not a participant of this session")
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() time.Time {
	return time.Now().UTC()
}

// currentUser returns the caller or writes a 401
func currentUser(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.ErrorRedirect(w, http.StatusUnauthorized, "Sign in required", "/auth")
	}
	return id, ok
}

func loadSession(ctx context.Context, q queryer, sessionID string) (models.Session, error) {
	var s models.Session
	err := q.QueryRowContext(ctx, `
		SELECT id, name, created_by, is_active, created_at, updated_at
		FROM sessions WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.Name, &s.CreatedBy, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// sessionForCreator loads the session and checks that the caller created it.
// It writes the error response itself and reports whether to continue.
func sessionForCreator(w http.ResponseWriter, r *http.Request, q queryer, sessionID, userID string) (models.Session, bool) {
	session, err := loadSession(r.Context(), q, sessionID)
	if err == sql.ErrNoRows {
		middleware.ErrorRedirect(w, http.StatusNotFound, "Session not found", "/")
		return session, false
	}
	if err != nil {
		slog.Error("failed to query session", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return session, false
	}
	if session.CreatedBy != userID {
		middleware.ErrorRedirect(w, http.StatusForbidden, "Only the session creator can do that", "/session/"+sessionID+"/vote")
		return session, false
	}
	return session, true
}

const ticketColumns = `id, session_id, ticket_number, title, jira_link, total_votes, median_value, final_value, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (models.Ticket, error) {
	var t models.Ticket
	var link sql.NullString
	err := row.Scan(&t.ID, &t.SessionID, &t.TicketNumber, &t.Title, &link,
		&t.TotalVotes, &t.MedianValue, &t.FinalValue, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if link.Valid {
		t.JiraLink = &link.String
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func loadTicket(ctx context.Context, q queryer, ticketID string) (models.Ticket, error) {
	return scanTicket(q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID))
}

// loadTickets returns the session's tickets in creation order
func loadTickets(ctx context.Context, q queryer, sessionID string) ([]models.Ticket, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func loadParticipants(ctx context.Context, q queryer, sessionID string) ([]models.Participant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.session_id, p.user_id, u.name, p.joined_at
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.session_id = $1
		ORDER BY p.joined_at ASC, p.id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.UserName, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// findParticipant returns the participant id of user in session, or sql.ErrNoRows
func findParticipant(ctx context.Context, q queryer, sessionID, userID string) (string, error) {
	var participantID string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM participants WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID).Scan(&participantID)
	return participantID, err
}

// publish hands the event to the change feed. Delivery failures are logged
// and never fail the request that caused the change.
func publish(ctx context.Context, pub realtime.Publisher, ev realtime.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish change event", "error", err, "table", ev.Table, "session_id", ev.SessionID)
	}
}
