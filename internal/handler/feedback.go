package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
)

// FeedbackHandler serves listing comments and user reviews.
type FeedbackHandler struct {
	logger *slog.Logger
}

// NewFeedbackHandler creates a FeedbackHandler.
func NewFeedbackHandler(logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{logger: logger}
}

type commentRequest struct {
	Text string `json:"text"`
}

type reviewRequest struct {
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

type reviewsResponse struct {
	Reviews []model.Review `json:"reviews"`
	Rating  float64        `json:"rating"`
}

// HandleListComments returns the comments of a listing. When the backend
// is down the cached comments are served with a 200 and a warning header.
//
// HTTP: GET /api/listings/{id}/comments
func (h *FeedbackHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	comments, err := sess.Store.FetchComments(r.Context(), chi.URLParam(r, "id"))
	if !serveCached(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleAddComment posts a comment as the signed-in user.
//
// HTTP: POST /api/listings/{id}/comments
// REQUEST BODY: {"text": "..."}
func (h *FeedbackHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := sess.Store.AddComment(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleDeleteComment removes the comment {author} left on a listing.
//
// HTTP: DELETE /api/listings/{id}/comments/{author}
func (h *FeedbackHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	err := sess.Store.DeleteComment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "author"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListReviews returns the reviews about a user with their average.
// Like comments, cached reviews are served when the backend is down.
//
// HTTP: GET /api/users/{id}/reviews
func (h *FeedbackHandler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	reviews, err := sess.Store.GetUserReviews(r.Context(), id)
	if !serveCached(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, reviewsResponse{
		Reviews: reviews,
		Rating:  model.AverageRating(reviews),
	})
}

// HandleAddReview reviews a user as the signed-in user.
//
// HTTP: POST /api/users/{id}/reviews
// REQUEST BODY: {"text": "...", "rating": 5}
func (h *FeedbackHandler) HandleAddReview(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	review, err := sess.Store.AddReview(r.Context(), chi.URLParam(r, "id"), req.Text, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// HandleDeleteReview removes the review {author} wrote about a user.
//
// HTTP: DELETE /api/users/{id}/reviews/{author}
func (h *FeedbackHandler) HandleDeleteReview(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	err := sess.Store.DeleteReview(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "author"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveCached decides what to do with a read that may have fallen back to
// the cache. A nil error or a backend failure proceeds, the latter with a
// Warning header; a malformed request is written as an error.
func serveCached(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, apperror.ErrValidation):
		writeError(w, err)
		return false
	default:
		w.Header().Set("Warning", `110 - "served from cache"`)
		return true
	}
}
