// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/testutil"
)

func TestSignIn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewUserHandler(db, cfg)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"valid", models.SignInRequest{Email: "alice@metalab.com", Name: "Alice"}, http.StatusOK},
		{"mixed case email", models.SignInRequest{Email: " Bob@MetaLab.com ", Name: "Bob"}, http.StatusOK},
		{"wrong domain", models.SignInRequest{Email: "mallory@example.com", Name: "Mallory"}, http.StatusBadRequest},
		{"lookalike domain", models.SignInRequest{Email: "eve@notmetalab.com", Name: "Eve"}, http.StatusBadRequest},
		{"missing email", models.SignInRequest{Name: "Nobody"}, http.StatusBadRequest},
		{"blank name", models.SignInRequest{Email: "carol@metalab.com", Name: "   "}, http.StatusBadRequest},
		{"invalid JSON", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/auth/sign-in", tt.body, nil)
			w := httptest.NewRecorder()

			handler.SignIn(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp models.SignInResponse
			testutil.AssertJSON(t, w, &resp)
			if resp.Token == "" {
				t.Error("Expected non-empty token")
			}
			claims, err := auth.ParseToken(resp.Token, cfg.JWTSecret)
			if err != nil {
				t.Fatalf("Issued token does not parse: %v", err)
			}
			if claims.UserID != resp.User.ID {
				t.Errorf("Token user %s does not match response user %s", claims.UserID, resp.User.ID)
			}
		})
	}
}

func TestSignIn_ExistingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewUserHandler(db, testutil.GetTestConfig())

	signIn := func(name string) models.SignInResponse {
		req := testutil.MakeRequest("POST", "/auth/sign-in", models.SignInRequest{Email: "dana@metalab.com", Name: name}, nil)
		w := httptest.NewRecorder()
		handler.SignIn(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.SignInResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	first := signIn("Dana")
	if !first.Created {
		t.Error("Expected first sign-in to create the user")
	}

	second := signIn("Dana S.")
	if second.Created {
		t.Error("Expected second sign-in to reuse the user")
	}
	if second.User.ID != first.User.ID {
		t.Errorf("Expected same user id, got %s and %s", first.User.ID, second.User.ID)
	}
	if second.User.Name != "Dana S." {
		t.Errorf("Expected name to be updated, got %q", second.User.Name)
	}

	if n := testutil.CountRows(t, db, `SELECT COUNT(*) FROM users WHERE email = $1`, "dana@metalab.com"); n != 1 {
		t.Errorf("Expected 1 user row, got %d", n)
	}
}

func TestMe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewUserHandler(db, testutil.GetTestConfig())
	alice := testutil.CreateTestUser(t, db, "Alice")

	t.Run("signed in", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Me(w, newRequest("GET", "/auth/me", "", nil, alice))

		testutil.AssertStatus(t, w, http.StatusOK)
		var id models.Identity
		testutil.AssertJSON(t, w, &id)
		if id != alice {
			t.Errorf("Expected %+v, got %+v", alice, id)
		}
	})

	t.Run("no identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Me(w, testutil.MakeRequest("GET", "/auth/me", nil, nil))

		testutil.AssertStatus(t, w, http.StatusUnauthorized)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Redirect != "/auth" {
			t.Errorf("Expected redirect /auth, got %q", resp.Redirect)
		}
	})
}
