// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Wrap handlers with request logging and Prometheus instrumentation:

	mux.HandleFunc("GET /health", middleware.WithMetrics(middleware.WithLogging(handler)))

Logs request start (method, path, remote) and completion (status, duration_ms).
WithMetrics labels observations with the matched route pattern, so
/sessions/{id}/tickets is one series regardless of the id.

The response writer wrapper passes Hijack and Flush through, which the
websocket route relies on.

# Authentication

RequireUser validates the HS256 token issued at sign-in and stores the
caller on the request context:

	mux.HandleFunc("GET /auth/me", middleware.RequireUser(secret, handler))

	id, _ := middleware.IdentityFromContext(r.Context())

The token is read from "Authorization: Bearer <token>", or from the
access_token query parameter when no header is present. Failures are
answered with 401 and a redirect to /auth.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.ErrorRedirect(w, http.StatusForbidden, "message", "/session/123/vote")

	var req models.AddTicketRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
