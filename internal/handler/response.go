package handler

// RESPONSE HELPERS:
// Handlers never set headers or encode bodies themselves. They call
//
//	writeJSON(w, http.StatusOK, data)
//	writeError(w, err)
//
// and the helpers take care of Content-Type, status and encoding.
//
// CONSISTENT ERROR FORMAT:
// Every error response has the same shape:
//
//	{"error": "not_found", "message": "listing not found with id ivanov_3"}
//
// plus "field" for validation errors, so the SPA can show the message next
// to the right input. The status comes from the apperror sentinel the error
// wraps (see statusFor); anything that is not an *apperror.AppError is a
// 500 with a generic message, and the real error only goes to the log.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/auth"
	"github.com/sakif/craftmarket/internal/session"
)

// maxBodyBytes caps request bodies. Images travel as URLs, so JSON bodies
// stay small.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // shown to the user as is
	Field   string `json:"field,omitempty"` // the offending input, validation only
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; once the body starts they are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it. Errors
// that are not *apperror.AppError become a generic 500 so internal details
// never reach the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := statusFor(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrAuth):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrNetwork):
		return http.StatusBadGateway, "backend_unavailable"
	case errors.Is(err, apperror.ErrUpdate):
		return http.StatusBadGateway, "update_failed"
	case errors.Is(err, apperror.ErrDelete):
		return http.StatusBadGateway, "delete_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields are rejected so typos in field names surface as 400s.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// currentSession returns the session attached by auth.Sessions, writing a
// 500 when the middleware did not run.
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		slog.Error("request has no session", slog.String("path", r.URL.Path))
		writeError(w, errors.New("handler: no session in request context"))
		return nil, false
	}
	return s, true
}
