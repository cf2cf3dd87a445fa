// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Agile Poker API.

# Handler Types

Each handler is a struct with database, config and (where it mutates data)
change-feed dependencies:

  - UserHandler: sign-in and the current identity
  - SessionHandler: session create, list, detail and end
  - JoinHandler: the participant join flow
  - TicketHandler: tickets, final values and the participant list
  - VotingHandler: vote submission and the caller's own votes
  - ReviewHandler: the creator's aggregated review
  - EventsHandler: the websocket change feed

	sessions := handlers.NewSessionHandler(db, cfg, hub)

Every handler except UserHandler.SignIn expects middleware.RequireUser to
have placed the caller's identity on the request context.

# Session Lifecycle

	POST /sessions            → CreateSession (creator becomes a participant)
	GET  /sessions            → ListSessions (active only, newest first)
	POST /sessions/{id}/end   → EndSession (creator only, {"confirm": true})
	POST /sessions/{id}/join  → JoinSession

Joining reuses an existing participant row for the same user. Concurrent
joins are collapsed per (session, user) and the insert is an upsert, so a
user is never a participant twice.

# Voting

	POST /tickets/{id}/votes  → SubmitVote

Accepted values are 0, 0.5, 1, 2, 3, 5, 8 and "?". The "?" card is never
stored. Numeric votes replace the participant's previous vote on the ticket,
and the ticket's total_votes and median_value are recomputed in the same
transaction. The response names the next ticket the participant has not
voted on yet.

# Review

	GET /sessions/{id}/review → GetReview (creator only)

Medians are recomputed from the loaded votes:

	Median([]float64{1, 2, 3, 5, 8}) // 3
	Median([]float64{3, 5})          // 4
	Median(nil)                      // 0

# Change Feed

Mutations publish realtime.Event values (sessions, participants, tickets)
through a realtime.Publisher. GET /sessions/{id}/events streams them to
websocket clients, optionally filtered with ?tables=.
*/
package handlers
