// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and manages its schema.

# Drivers

Two database types are supported:

  - postgres: github.com/lib/pq
  - sqlite: modernc.org/sqlite (pure Go, default)

	conn, err := db.Open(ctx, db.TypeSQLite, "file:poker.db?_pragma=foreign_keys(1)")

# Schema Creation

CreateSchema runs the embedded goose migrations for the chosen type:

	if err := db.CreateSchema(ctx, conn, cfg.DatabaseType); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - applied versions are recorded by goose.

# Tables

  - users: Signed-in people, unique by email
  - sessions: Planning sessions and their active flag
  - participants: One row per (session, user)
  - tickets: Items under estimation, with cached vote count and median
  - votes: One row per (ticket, participant)

# Relationships

	users 1──* sessions (created_by)
	sessions 1──* participants *──1 users
	sessions 1──* tickets
	tickets 1──* votes *──1 participants

# Constraint Errors

IsUniqueViolation recognizes duplicate key errors from both drivers
(*pq.Error code 23505, *sqlite.Error SQLITE_CONSTRAINT_UNIQUE).
*/
package db
