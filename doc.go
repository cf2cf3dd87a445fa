// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Agile Poker API server.

Agile Poker is a planning-poker service: a creator opens a session, adds
tickets, teammates join and vote with estimate cards (0, 0.5, 1, 2, 3, 5,
8 or "?"), and the creator reviews per-ticket medians before recording a
final value.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=poker.db JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --jwt-secret ...

A .env file in the working directory is loaded first when present.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - JWT_SECRET (--jwt-secret): Secret for identity tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - ALLOWED_EMAIL_DOMAIN (--email-domain): Sign-in domain (default: metalab.com)
  - TOKEN_TTL (--token-ttl): Token lifetime (default: 720h)
  - REDIS_URL (--redis-url): Relay change events across instances
  - LOG_LEVEL (--log-level): debug, info, warn or error

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (users, sessions, join, tickets, voting, review, events)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, identity, JSON helpers
  - models: Request/response types
  - auth: Email validation and token issue/verify
  - db: Connection setup and goose migrations
  - realtime: Change-feed hub, websocket clients and Redis relay
  - metrics: Prometheus collectors
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
