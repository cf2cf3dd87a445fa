// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
	"github.com/danielhkuo/agile-poker/testutil"
)

func TestCreateSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewSessionHandler(db, testutil.GetTestConfig(), &recordingPublisher{})
	alice := testutil.CreateTestUser(t, db, "Alice")

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"valid", models.CreateSessionRequest{Name: "Sprint 12"}, http.StatusCreated},
		{"name is trimmed", models.CreateSessionRequest{Name: "  Sprint 13  "}, http.StatusCreated},
		{"blank name", models.CreateSessionRequest{Name: "   "}, http.StatusBadRequest},
		{"missing name", map[string]string{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.CreateSession(w, newRequest("POST", "/sessions", "", tt.body, alice))

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusCreated {
				return
			}

			var resp models.CreateSessionResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.SessionID == "" || resp.ParticipantID == "" {
				t.Fatalf("Expected ids in response, got %+v", resp)
			}
			if resp.Redirect != "/session/"+resp.SessionID+"/vote" {
				t.Errorf("Unexpected redirect %q", resp.Redirect)
			}

			var name, createdBy string
			var active bool
			err := db.QueryRow(`SELECT name, created_by, is_active FROM sessions WHERE id = $1`, resp.SessionID).
				Scan(&name, &createdBy, &active)
			if err != nil {
				t.Fatalf("Failed to load session: %v", err)
			}
			if name != "Sprint 12" && name != "Sprint 13" {
				t.Errorf("Expected trimmed name, got %q", name)
			}
			if createdBy != alice.UserID || !active {
				t.Errorf("Unexpected session row: created_by=%s active=%v", createdBy, active)
			}

			var participantUser string
			err = db.QueryRow(`SELECT user_id FROM participants WHERE id = $1`, resp.ParticipantID).Scan(&participantUser)
			if err != nil {
				t.Fatalf("Expected creator participant row: %v", err)
			}
			if participantUser != alice.UserID {
				t.Errorf("Expected creator participant, got user %s", participantUser)
			}
		})
	}
}

func TestCreateSession_RequiresIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewSessionHandler(db, testutil.GetTestConfig(), nil)

	req := testutil.MakeRequest("POST", "/sessions", models.CreateSessionRequest{Name: "Sprint"}, nil)
	w := httptest.NewRecorder()
	handler.CreateSession(w, req)

	testutil.AssertStatus(t, w, http.StatusUnauthorized)
	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM sessions`); n != 0 {
		t.Errorf("Expected no sessions, got %d", n)
	}
}

func TestListSessions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewSessionHandler(db, testutil.GetTestConfig(), nil)
	alice := testutil.CreateTestUser(t, db, "Alice")

	older := testutil.CreateTestSession(t, db, alice, "Older", true)
	time.Sleep(5 * time.Millisecond)
	newer := testutil.CreateTestSession(t, db, alice, "Newer", true)
	testutil.CreateTestSession(t, db, alice, "Ended", false)

	w := httptest.NewRecorder()
	handler.ListSessions(w, newRequest("GET", "/sessions", "", nil, alice))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.ListSessionsResponse
	testutil.AssertJSON(t, w, &resp)

	if len(resp.Sessions) != 2 {
		t.Fatalf("Expected 2 active sessions, got %d", len(resp.Sessions))
	}
	if resp.Sessions[0].ID != newer || resp.Sessions[1].ID != older {
		t.Errorf("Expected newest first, got %s then %s", resp.Sessions[0].Name, resp.Sessions[1].Name)
	}
	if resp.Sessions[0].CreatedAgo == "" {
		t.Error("Expected humanized created_ago")
	}
}

func TestListSessions_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewSessionHandler(db, testutil.GetTestConfig(), nil)
	alice := testutil.CreateTestUser(t, db, "Alice")

	w := httptest.NewRecorder()
	handler.ListSessions(w, newRequest("GET", "/sessions", "", nil, alice))

	testutil.AssertStatus(t, w, http.StatusOK)
	if body := w.Body.String(); body != "{\"sessions\":[]}\n" {
		t.Errorf("Expected empty list, got %s", body)
	}
}

func TestGetSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewSessionHandler(db, testutil.GetTestConfig(), nil)
	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	sessionID := testutil.CreateTestSession(t, db, alice, "Sprint 12", true)

	tests := []struct {
		name           string
		sessionID      string
		user           models.Identity
		expectedStatus int
		isCreator      bool
	}{
		{"creator", sessionID, alice, http.StatusOK, true},
		{"other user", sessionID, bob, http.StatusOK, false},
		{"unknown session", "missing", alice, http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.GetSession(w, newRequest("GET", "/sessions/"+tt.sessionID, tt.sessionID, nil, tt.user))

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var resp models.SessionDetailResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.IsCreator != tt.isCreator {
				t.Errorf("Expected is_creator=%v, got %v", tt.isCreator, resp.IsCreator)
			}
			if resp.Session.Name != "Sprint 12" {
				t.Errorf("Expected session name 'Sprint 12', got %q", resp.Session.Name)
			}
		})
	}
}

func TestEndSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")

	tests := []struct {
		name           string
		user           models.Identity
		body           interface{}
		expectedStatus int
		expectInactive bool
	}{
		{"creator confirms", alice, models.EndSessionRequest{Confirm: true}, http.StatusOK, true},
		{"creator without confirm", alice, models.EndSessionRequest{}, http.StatusBadRequest, false},
		{"non-creator", bob, models.EndSessionRequest{Confirm: true}, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			handler := NewSessionHandler(db, testutil.GetTestConfig(), pub)
			sessionID := testutil.CreateTestSession(t, db, alice, "Sprint", true)

			w := httptest.NewRecorder()
			handler.EndSession(w, newRequest("POST", "/sessions/"+sessionID+"/end", sessionID, tt.body, tt.user))

			testutil.AssertStatus(t, w, tt.expectedStatus)

			var active bool
			if err := db.QueryRow(`SELECT is_active FROM sessions WHERE id = $1`, sessionID).Scan(&active); err != nil {
				t.Fatalf("Failed to load session: %v", err)
			}
			if active == tt.expectInactive {
				t.Errorf("Expected is_active=%v, got %v", !tt.expectInactive, active)
			}

			_, published := pub.find(realtime.TableSessions, realtime.EventUpdate)
			if published != tt.expectInactive {
				t.Errorf("Expected sessions UPDATE published=%v", tt.expectInactive)
			}
		})
	}
}

func TestEndSession_AlreadyEnded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pub := &recordingPublisher{}
	handler := NewSessionHandler(db, testutil.GetTestConfig(), pub)
	alice := testutil.CreateTestUser(t, db, "Alice")
	sessionID := testutil.CreateTestSession(t, db, alice, "Done", false)

	w := httptest.NewRecorder()
	handler.EndSession(w, newRequest("POST", "/sessions/"+sessionID+"/end", sessionID, models.EndSessionRequest{Confirm: true}, alice))

	testutil.AssertStatus(t, w, http.StatusOK)
	if len(pub.all()) != 0 {
		t.Errorf("Expected no events for an already ended session, got %d", len(pub.all()))
	}
}
