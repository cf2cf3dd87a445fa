// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/testutil"
)

// TestConcurrentJoinSameUser verifies that a burst of join requests from one
// user yields a single participant row and one shared id
func TestConcurrentJoinSameUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pub := &recordingPublisher{}
	handler := NewJoinHandler(db, testutil.GetTestConfig(), pub)

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	sessionID := testutil.CreateTestSession(t, db, alice, "Sprint 12", true)

	const attempts = 10
	ids := make([]string, attempts)
	var failures atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			w := httptest.NewRecorder()
			handler.JoinSession(w, newRequest("POST", "/sessions/"+sessionID+"/join", sessionID, nil, bob))
			if w.Code != http.StatusOK && w.Code != http.StatusCreated {
				failures.Add(1)
				return
			}
			var resp models.JoinSessionResponse
			if err := jsonDecode(w, &resp); err != nil {
				failures.Add(1)
				return
			}
			ids[idx] = resp.ParticipantID
		}(i)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("Expected every join to succeed, %d failed", failures.Load())
	}
	for i := 1; i < attempts; i++ {
		if ids[i] != ids[0] {
			t.Errorf("Expected one participant id, got %s and %s", ids[0], ids[i])
		}
	}

	n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM participants WHERE session_id = $1 AND user_id = $2`, sessionID, bob.UserID)
	if n != 1 {
		t.Errorf("Expected 1 participant row, got %d", n)
	}
	if len(pub.all()) != 1 {
		t.Errorf("Expected 1 participants event, got %d", len(pub.all()))
	}
}

// TestConcurrentVotes verifies that simultaneous votes from different
// participants all count toward the ticket's totals
func TestConcurrentVotes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewVotingHandler(db, testutil.GetTestConfig(), nil)

	alice := testutil.CreateTestUser(t, db, "Alice")
	sessionID := testutil.CreateTestSession(t, db, alice, "Sprint 12", true)
	ticketID := testutil.AddTestTicket(t, db, sessionID, "PROJ-1", "Fix login")

	const voters = 7
	users := make([]models.Identity, voters)
	for i := range users {
		users[i] = testutil.CreateTestUser(t, db, fmt.Sprintf("Voter %d", i))
		testutil.JoinTestSession(t, db, sessionID, users[i])
	}

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(value float64, user models.Identity) {
			defer wg.Done()
			body := voteBody(fmt.Sprint(value))
			w := httptest.NewRecorder()
			handler.SubmitVote(w, newRequest("POST", "/tickets/"+ticketID+"/votes", ticketID, body, user))
			if w.Code == http.StatusOK {
				successes.Add(1)
			}
		}(models.EstimateOptions[i], u)
	}
	wg.Wait()

	if int(successes.Load()) != voters {
		t.Fatalf("Expected %d successful votes, got %d", voters, successes.Load())
	}

	var total int
	var median float64
	if err := db.QueryRow(`SELECT total_votes, median_value FROM tickets WHERE id = $1`, ticketID).Scan(&total, &median); err != nil {
		t.Fatalf("Failed to load ticket: %v", err)
	}
	if total != voters {
		t.Errorf("Expected total_votes %d, got %d", voters, total)
	}
	// 0, 0.5, 1, 2, 3, 5, 8
	if median != 2 {
		t.Errorf("Expected median 2, got %v", median)
	}
}

// TestConcurrentVoteChangesSameParticipant verifies repeated votes from one
// participant never produce duplicate rows
func TestConcurrentVoteChangesSameParticipant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewVotingHandler(db, testutil.GetTestConfig(), nil)

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	sessionID := testutil.CreateTestSession(t, db, alice, "Sprint 12", true)
	testutil.JoinTestSession(t, db, sessionID, bob)
	ticketID := testutil.AddTestTicket(t, db, sessionID, "PROJ-1", "Fix login")

	var wg sync.WaitGroup
	for _, v := range []string{`1`, `2`, `3`, `5`, `8`} {
		wg.Add(1)
		go func(raw string) {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.SubmitVote(w, newRequest("POST", "/tickets/"+ticketID+"/votes", ticketID, voteBody(raw), bob))
		}(v)
	}
	wg.Wait()

	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM votes WHERE ticket_id = $1`, ticketID); n != 1 {
		t.Errorf("Expected 1 vote row, got %d", n)
	}

	var total int
	if err := db.QueryRow(`SELECT total_votes FROM tickets WHERE id = $1`, ticketID).Scan(&total); err != nil {
		t.Fatalf("Failed to load ticket: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected total_votes 1, got %d", total)
	}
}

func jsonDecode(w *httptest.ResponseRecorder, v interface{}) error {
	return json.NewDecoder(w.Body).Decode(v)
}
