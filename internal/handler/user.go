package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/craftmarket/internal/catalog"
	"github.com/sakif/craftmarket/internal/model"
)

// UserHandler serves public profiles and admin status changes.
type UserHandler struct {
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(logger *slog.Logger) *UserHandler {
	return &UserHandler{logger: logger}
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// HandleGet returns a profile with its rating derived from the user's
// reviews. A cached profile is served when the backend is down.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	user, err := sess.Store.GetUserByID(r.Context(), id)
	if user == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		w.Header().Set("Warning", `110 - "served from cache"`)
	}

	if _, err := sess.Store.GetUserReviews(r.Context(), id); err != nil {
		h.logger.Warn("rating from cached reviews", slog.String("user", id), slog.String("error", err.Error()))
	}
	user.Rating = sess.Store.Rating(id)
	writeJSON(w, http.StatusOK, user)
}

// HandleListings returns the known listings of a user. A session with an
// empty cache, such as an anonymous one, loads the listings first.
//
// HTTP: GET /api/users/{id}/listings
func (h *UserHandler) HandleListings(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	if len(sess.Store.Listings()) == 0 {
		if err := sess.Store.FetchListings(r.Context(), catalog.Filter{}); err != nil {
			h.logger.Warn("user listings from fallback", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, sess.Store.UserListings(chi.URLParam(r, "id")))
}

// HandleUpdateStatus activates or suspends a user. Admin only.
//
// HTTP: PATCH /api/users/{id}/status
// REQUEST BODY: {"status": "suspended"}
func (h *UserHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := sess.Store.UpdateUserStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusRequest{Status: req.Status})
}
