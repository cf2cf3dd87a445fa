// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Agile Poker API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	hub := realtime.NewHub(logger)
	mux := router.NewRouter(db, cfg, hub, hub)

The publisher and the hub are separate arguments so a multi-instance
deployment can publish through realtime.RedisRelay while each instance
still serves its own websocket clients from the local hub.

# Endpoints

Operational:

	GET /health  - Liveness
	GET /metrics - Prometheus collectors

Identity:

	POST /auth/sign-in - Exchange email + name for a token
	GET  /auth/me      - Current identity

Sessions (token required):

	POST /sessions                   - Create session
	GET  /sessions                   - Active sessions, newest first
	GET  /sessions/{id}              - Session detail
	POST /sessions/{id}/end          - End session (creator)
	POST /sessions/{id}/join         - Join as participant
	GET  /sessions/{id}/participants - Participant list
	GET  /sessions/{id}/events       - Websocket change feed

Tickets and votes (token required):

	GET    /sessions/{id}/tickets  - Tickets (voter view for participants)
	POST   /sessions/{id}/tickets  - Add ticket (creator)
	PUT    /tickets/{id}/final-value - Set agreed value (creator)
	DELETE /tickets/{id}?confirm=true - Delete ticket (creator)
	POST   /tickets/{id}/votes     - Cast vote
	GET    /sessions/{id}/my-votes - Caller's votes by ticket
	GET    /sessions/{id}/review   - Creator review with medians

# Middleware

Every API route is wrapped in middleware.WithMetrics and
middleware.WithLogging. Routes other than sign-in also pass through
middleware.RequireUser, which accepts the token as a Bearer header or an
access_token query parameter (browsers cannot set headers on websocket
upgrades).
*/
package router
