// Package apperror defines the error taxonomy shared by the API client, the
// state store and the HTTP gateway.
//
// Every failure is an *AppError wrapping one sentinel. Callers branch with
// errors.Is against the sentinel and read the human-readable Message with
// errors.As. The gateway maps sentinels to HTTP status codes in one place
// (handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrAuth            = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNetwork         = errors.New("network error")
	ErrUpdate          = errors.New("update failed")
	ErrDelete          = errors.New("delete failed")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AuthFailed is returned when the backend rejects a login/password pair.
func AuthFailed() *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: "invalid login or password",
	}
}

// Unauthenticated is returned by store mutators invoked without a logged-in user.
// No backend call is made in that case.
func Unauthenticated(action string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: fmt.Sprintf("login required to %s", action),
	}
}

// Network wraps a transport failure (or an unexpected backend status on a read).
func Network(op string, cause error) *AppError {
	msg := fmt.Sprintf("%s: backend unreachable", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", op, cause)
	}
	return &AppError{
		Err:     ErrNetwork,
		Message: msg,
	}
}

// UpdateFailed is the generic failure of a PATCH-style mutation.
func UpdateFailed(resource, id string) *AppError {
	return &AppError{
		Err:     ErrUpdate,
		Message: fmt.Sprintf("failed to update %s %s", resource, id),
	}
}

// DeleteFailed is the generic failure of a DELETE mutation.
func DeleteFailed(resource, id string) *AppError {
	return &AppError{
		Err:     ErrDelete,
		Message: fmt.Sprintf("failed to delete %s %s", resource, id),
	}
}

// Message extracts the human-readable message from err. Errors that are not
// an *AppError yield fallback.
func Message(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
