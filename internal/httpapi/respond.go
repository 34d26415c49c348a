// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/pkg/errutil"
)

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

// writeError emits the standard error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps a typed auth failure to a status code and a generic
// client message. Internal detail is logged, never echoed.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		errutil.LogError(s.logger, "request failed", err)
	} else {
		s.logger.Debug("request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}
	writeError(w, status, message)
}

// classify translates the error taxonomy into transport terms.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		return http.StatusBadRequest, "missing required fields"
	case errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid email format"
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, "password must be at least 8 characters with an uppercase letter, a lowercase letter, and a digit"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusBadRequest, "email already registered"
	case errors.Is(err, auth.ErrResetInvalid):
		return http.StatusBadRequest, "invalid or expired reset token"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "token has expired"
	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenSignature):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusUnauthorized, "user not found"
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
