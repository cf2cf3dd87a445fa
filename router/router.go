// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/handlers"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/realtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint. pub receives change events from mutating
// handlers; hub serves the websocket feed. With a single instance pub is
// usually hub itself.
func NewRouter(db *sql.DB, cfg cliparse.Config, pub realtime.Publisher, hub *realtime.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(db, cfg)
	sessionHandler := handlers.NewSessionHandler(db, cfg, pub)
	joinHandler := handlers.NewJoinHandler(db, cfg, pub)
	ticketHandler := handlers.NewTicketHandler(db, cfg, pub)
	votingHandler := handlers.NewVotingHandler(db, cfg, pub)
	reviewHandler := handlers.NewReviewHandler(db, cfg)
	eventsHandler := handlers.NewEventsHandler(db, cfg, hub)

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithMetrics(middleware.WithLogging(h))
	}
	signedIn := func(h http.HandlerFunc) http.HandlerFunc {
		return public(middleware.RequireUser(cfg.JWTSecret, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Identity
	mux.HandleFunc("POST /auth/sign-in", public(userHandler.SignIn))
	mux.HandleFunc("GET /auth/me", signedIn(userHandler.Me))

	// Session lifecycle
	mux.HandleFunc("POST /sessions", signedIn(sessionHandler.CreateSession))
	mux.HandleFunc("GET /sessions", signedIn(sessionHandler.ListSessions))
	mux.HandleFunc("GET /sessions/{id}", signedIn(sessionHandler.GetSession))
	mux.HandleFunc("POST /sessions/{id}/end", signedIn(sessionHandler.EndSession))
	mux.HandleFunc("POST /sessions/{id}/join", signedIn(joinHandler.JoinSession))
	mux.HandleFunc("GET /sessions/{id}/participants", signedIn(ticketHandler.ListParticipants))

	// Tickets (creator operations)
	mux.HandleFunc("GET /sessions/{id}/tickets", signedIn(ticketHandler.ListTickets))
	mux.HandleFunc("POST /sessions/{id}/tickets", signedIn(ticketHandler.AddTicket))
	mux.HandleFunc("PUT /tickets/{id}/final-value", signedIn(ticketHandler.UpdateFinalValue))
	mux.HandleFunc("DELETE /tickets/{id}", signedIn(ticketHandler.DeleteTicket))

	// Voting
	mux.HandleFunc("POST /tickets/{id}/votes", signedIn(votingHandler.SubmitVote))
	mux.HandleFunc("GET /sessions/{id}/my-votes", signedIn(votingHandler.MyVotes))

	// Review (creator only)
	mux.HandleFunc("GET /sessions/{id}/review", signedIn(reviewHandler.GetReview))

	// Change feed
	mux.HandleFunc("GET /sessions/{id}/events", signedIn(eventsHandler.Subscribe))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("agile-poker API v1"))
	})

	return mux
}
