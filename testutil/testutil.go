// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/db"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
)

// TestDBURL is a private in-memory SQLite database. db.Open turns on
// foreign keys. Each call to SetupTestDB gets its own copy.
const TestDBURL = "file::memory:"

// SetupTestDB creates a fresh in-memory database with the full schema.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.TypeSQLite, TestDBURL)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(ctx, conn, db.TypeSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  TestDBURL,
		DatabaseType: db.TypeSQLite,
		JWTSecret:    "test-jwt-secret",
		EmailDomain:  "metalab.com",
		TokenTTL:     time.Hour,
	}
}

// CreateTestUser inserts a user and returns its identity
func CreateTestUser(t *testing.T, conn *sql.DB, name string) models.Identity {
	t.Helper()

	id := auth.NewID()
	local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	email := local + "." + id[:8] + "@metalab.com"
	now := time.Now().UTC()

	_, err := conn.Exec(`
		INSERT INTO users (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, email, name, now, now)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return models.Identity{UserID: id, Email: email, Name: name}
}

// CreateTestSession inserts a session owned by creator, along with the
// creator's participant row, and returns the session ID
func CreateTestSession(t *testing.T, conn *sql.DB, creator models.Identity, name string, active bool) string {
	t.Helper()

	sessionID := auth.NewID()
	now := time.Now().UTC()

	_, err := conn.Exec(`
		INSERT INTO sessions (id, name, created_by, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, name, creator.UserID, active, now, now)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	JoinTestSession(t, conn, sessionID, creator)
	return sessionID
}

// JoinTestSession adds user as a participant and returns the participant ID
func JoinTestSession(t *testing.T, conn *sql.DB, sessionID string, user models.Identity) string {
	t.Helper()

	participantID := auth.NewID()
	_, err := conn.Exec(`
		INSERT INTO participants (id, session_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
	`, participantID, sessionID, user.UserID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to join test session: %v", err)
	}

	return participantID
}

// AddTestTicket adds a ticket to a session and returns the ticket ID
func AddTestTicket(t *testing.T, conn *sql.DB, sessionID, number, title string) string {
	t.Helper()

	ticketID := auth.NewID()
	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO tickets (id, session_id, ticket_number, title, total_votes, median_value, final_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, 0, $5, $6)
	`, ticketID, sessionID, number, title, now, now)
	if err != nil {
		t.Fatalf("Failed to create test ticket: %v", err)
	}

	return ticketID
}

// CastTestVote writes a vote row directly. Ticket counters are not updated.
func CastTestVote(t *testing.T, conn *sql.DB, ticketID, participantID string, value float64) string {
	t.Helper()

	voteID := auth.NewID()
	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO votes (id, ticket_id, participant_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, voteID, ticketID, participantID, value, now, now)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	return voteID
}

// CountRows runs a COUNT(*) query and returns the result
func CountRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}

// Token issues a bearer token for user
func Token(t *testing.T, cfg cliparse.Config, user models.Identity) string {
	t.Helper()

	token, err := auth.IssueToken(user.UserID, user.Email, user.Name, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return token
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AsUser attaches user to the request context, as RequireUser would
func AsUser(req *http.Request, user models.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), user))
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
