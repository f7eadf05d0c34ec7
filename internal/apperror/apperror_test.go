package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("rating", "rating must be between 1 and 5"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "AuthFailed wraps ErrAuth",
			err:       AuthFailed(),
			target:    ErrAuth,
			wantMatch: true,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthenticated",
			err:       Unauthenticated("create a listing"),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "Network wraps ErrNetwork",
			err:       Network("get listings", errors.New("connection refused")),
			target:    ErrNetwork,
			wantMatch: true,
		},
		{
			name:      "UpdateFailed wraps ErrUpdate",
			err:       UpdateFailed("listing", "bob_3"),
			target:    ErrUpdate,
			wantMatch: true,
		},
		{
			name:      "DeleteFailed wraps ErrDelete",
			err:       DeleteFailed("listing", "bob_3"),
			target:    ErrDelete,
			wantMatch: true,
		},
		{
			name:      "wrapped twice still matches",
			err:       fmt.Errorf("store: %w", fmt.Errorf("backend: %w", NotFound("user", "x"))),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "alice"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Unauthenticated does NOT match ErrForbidden",
			err:       Unauthenticated("delete a listing"),
			target:    ErrForbidden,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("listing", "bob_3"),
			wantMessage: "listing not found with id bob_3",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("title", "title is required"),
			wantMessage: "title is required",
		},
		{
			name:        "Unauthenticated names the action",
			err:         Unauthenticated("add a comment"),
			wantMessage: "login required to add a comment",
		},
		{
			name:        "Network without cause",
			err:         Network("get user", nil),
			wantMessage: "get user: backend unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("user", "alice")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("rating", "rating must be between 1 and 5")
	if err.Field != "rating" {
		t.Errorf("Field = %q, want %q", err.Field, "rating")
	}
}

func TestMessage(t *testing.T) {
	wrapped := fmt.Errorf("store: %w", Forbidden("only the owner can edit this listing"))
	if got := Message(wrapped, "x"); got != "only the owner can edit this listing" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(errors.New("boom"), "fallback"); got != "fallback" {
		t.Errorf("Message() = %q, want fallback", got)
	}
}
