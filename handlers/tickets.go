// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
)

type TicketHandler struct {
	db  *sql.DB
	cfg cliparse.Config
	pub realtime.Publisher
}

func NewTicketHandler(conn *sql.DB, cfg cliparse.Config, pub realtime.Publisher) *TicketHandler {
	return &TicketHandler{db: conn, cfg: cfg, pub: pub}
}

// AddTicket handles POST /sessions/{id}/tickets
func (h *TicketHandler) AddTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessionID := r.PathValue("id")
	if _, ok := sessionForCreator(w, r, h.db, sessionID, user.UserID); !ok {
		return
	}

	var req models.AddTicketRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	number := strings.TrimSpace(req.TicketNumber)
	title := strings.TrimSpace(req.Title)
	if number == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "ticket_number is required")
		return
	}
	if title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	ts := now()
	ticket := models.Ticket{
		ID:           auth.NewID(),
		SessionID:    sessionID,
		TicketNumber: number,
		Title:        title,
		JiraLink:     normalizeLink(req.JiraLink),
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	_, err := h.db.ExecContext(r.Context(), `
		INSERT INTO tickets (id, session_id, ticket_number, title, jira_link, total_votes, median_value, final_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, $6, $7)
	`, ticket.ID, ticket.SessionID, ticket.TicketNumber, ticket.Title, nullString(ticket.JiraLink), ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		slog.Error("failed to insert ticket", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add ticket")
		return
	}

	slog.Info("ticket added", "session_id", sessionID, "ticket_id", ticket.ID, "ticket_number", number)

	publish(r.Context(), h.pub, realtime.Event{
		Table:     realtime.TableTickets,
		Type:      realtime.EventInsert,
		SessionID: sessionID,
		RecordID:  ticket.ID,
		Record:    ticket.ForVoter(),
	})

	middleware.JSONResponse(w, http.StatusCreated, ticket)
}

// ListTickets handles GET /sessions/{id}/tickets
// The creator sees every column; participants get the voter projection.
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
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

	isCreator := session.CreatedBy == user.UserID
	if !isCreator {
		_, err := findParticipant(r.Context(), h.db, sessionID, user.UserID)
		if err == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusForbidden, "Join the session to see its tickets")
			return
		}
		if err != nil {
			slog.Error("failed to query participant", "error", err, "session_id", sessionID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	tickets, err := loadTickets(r.Context(), h.db, sessionID)
	if err != nil {
		slog.Error("failed to query tickets", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if isCreator {
		middleware.JSONResponse(w, http.StatusOK, models.TicketsResponse{Tickets: tickets})
		return
	}

	voterTickets := make([]models.VoterTicket, 0, len(tickets))
	for _, t := range tickets {
		voterTickets = append(voterTickets, t.ForVoter())
	}
	middleware.JSONResponse(w, http.StatusOK, models.TicketsResponse{Tickets: voterTickets})
}

// ListParticipants handles GET /sessions/{id}/participants
func (h *TicketHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	sessionID := r.PathValue("id")
	if _, err := loadSession(r.Context(), h.db, sessionID); err == sql.ErrNoRows {
		middleware.ErrorRedirect(w, http.StatusNotFound, "Session not found", "/")
		return
	} else if err != nil {
		slog.Error("failed to query session", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	participants, err := loadParticipants(r.Context(), h.db, sessionID)
	if err != nil {
		slog.Error("failed to query participants", "error", err, "session_id", sessionID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ParticipantsResponse{Participants: participants})
}

// UpdateFinalValue handles PUT /tickets/{id}/final-value
func (h *TicketHandler) UpdateFinalValue(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ticket, ok := h.ticketForCreator(w, r, user.UserID)
	if !ok {
		return
	}

	var req models.UpdateFinalValueRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ticket.FinalValue = parseFinalValue(req.Value)
	ticket.UpdatedAt = now()

	_, err := h.db.ExecContext(r.Context(), `
		UPDATE tickets SET final_value = $1, updated_at = $2 WHERE id = $3
	`, ticket.FinalValue, ticket.UpdatedAt, ticket.ID)
	if err != nil {
		slog.Error("failed to update final value", "error", err, "ticket_id", ticket.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update final value")
		return
	}

	slog.Info("final value set", "ticket_id", ticket.ID, "final_value", ticket.FinalValue)

	publish(r.Context(), h.pub, realtime.Event{
		Table:     realtime.TableTickets,
		Type:      realtime.EventUpdate,
		SessionID: ticket.SessionID,
		RecordID:  ticket.ID,
		Record:    ticket.ForVoter(),
	})

	middleware.JSONResponse(w, http.StatusOK, ticket)
}

// DeleteTicket handles DELETE /tickets/{id}?confirm=true
func (h *TicketHandler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("confirm") != "true" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "confirm=true is required to delete a ticket")
		return
	}

	ticket, ok := h.ticketForCreator(w, r, user.UserID)
	if !ok {
		return
	}

	tx, err := h.db.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(r.Context(), `DELETE FROM votes WHERE ticket_id = $1`, ticket.ID); err != nil {
		slog.Error("failed to delete votes", "error", err, "ticket_id", ticket.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ticket")
		return
	}
	if _, err := tx.ExecContext(r.Context(), `DELETE FROM tickets WHERE id = $1`, ticket.ID); err != nil {
		slog.Error("failed to delete ticket", "error", err, "ticket_id", ticket.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ticket")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete ticket")
		return
	}

	slog.Info("ticket deleted", "ticket_id", ticket.ID, "session_id", ticket.SessionID)

	publish(r.Context(), h.pub, realtime.Event{
		Table:     realtime.TableTickets,
		Type:      realtime.EventDelete,
		SessionID: ticket.SessionID,
		RecordID:  ticket.ID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// ticketForCreator loads the ticket in the path and checks that the caller
// created its session
func (h *TicketHandler) ticketForCreator(w http.ResponseWriter, r *http.Request, userID string) (models.Ticket, bool) {
	ticketID := r.PathValue("id")
	ticket, err := loadTicket(r.Context(), h.db, ticketID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Ticket not found")
		return ticket, false
	}
	if err != nil {
		slog.Error("failed to query ticket", "error", err, "ticket_id", ticketID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return ticket, false
	}

	if _, ok := sessionForCreator(w, r, h.db, ticket.SessionID, userID); !ok {
		return ticket, false
	}
	return ticket, true
}

// normalizeLink makes a pasted Jira link absolute. Empty input means no link.
func normalizeLink(raw string) *string {
	link := strings.TrimSpace(raw)
	if link == "" {
		return nil
	}
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		link = "https://" + link
	}
	return &link
}

// parseFinalValue accepts a JSON number or a numeric string.
// Anything else, including non-finite values, becomes 0.
func parseFinalValue(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
