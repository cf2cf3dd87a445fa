// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/agile-poker/auth"
	"github.com/danielhkuo/agile-poker/cliparse"
	"github.com/danielhkuo/agile-poker/db"
	"github.com/danielhkuo/agile-poker/middleware"
	"github.com/danielhkuo/agile-poker/models"
)

type UserHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewUserHandler(conn *sql.DB, cfg cliparse.Config) *UserHandler {
	return &UserHandler{db: conn, cfg: cfg}
}

// SignIn handles POST /auth/sign-in
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	email := auth.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if err := auth.ValidateSignIn(email, name, h.cfg.EmailDomain); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, created, err := h.upsertUser(r.Context(), email, name)
	if err != nil {
		slog.Error("failed to upsert user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	token, err := auth.IssueToken(user.ID, user.Email, user.Name, h.cfg.JWTSecret, h.cfg.TokenTTL)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	slog.Info("user signed in", "user_id", user.ID, "created", created)

	middleware.JSONResponse(w, http.StatusOK, models.SignInResponse{
		User:    user,
		Token:   token,
		Created: created,
	})
}

// Me handles GET /auth/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := currentUser(w, r)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, id)
}

// upsertUser finds the user by email, creating it or refreshing its name
func (h *UserHandler) upsertUser(ctx context.Context, email, name string) (models.User, bool, error) {
	user, err := h.findUser(ctx, email)
	if err == nil {
		if user.Name == name {
			return user, false, nil
		}
		ts := now()
		if _, err := h.db.ExecContext(ctx, `
			UPDATE users SET name = $1, updated_at = $2 WHERE id = $3
		`, name, ts, user.ID); err != nil {
			return user, false, err
		}
		user.Name = name
		user.UpdatedAt = ts
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return user, false, err
	}

	ts := now()
	user = models.User{ID: auth.NewID(), Email: email, Name: name, CreatedAt: ts, UpdatedAt: ts}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt)
	if db.IsUniqueViolation(err) {
		// Signed in twice at once; the other request created the row.
		user, err = h.findUser(ctx, email)
		return user, false, err
	}
	if err != nil {
		return user, false, err
	}
	return user, true, nil
}

func (h *UserHandler) findUser(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := h.db.QueryRowContext(ctx, `
		SELECT id, email, name, created_at, updated_at FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
