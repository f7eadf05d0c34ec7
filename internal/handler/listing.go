package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/catalog"
	"github.com/sakif/craftmarket/internal/model"
)

// ListingHandler serves the catalog and listing CRUD.
type ListingHandler struct {
	logger *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(logger *slog.Logger) *ListingHandler {
	return &ListingHandler{logger: logger}
}

// listingsResponse is the catalog page. Fallback is true when the backend
// was unreachable and the listings are the built-in samples.
type listingsResponse struct {
	Listings []model.Listing `json:"listings"`
	Fallback bool            `json:"fallback"`
	Message  string          `json:"message,omitempty"`
}

// HandleList fetches listings matching the query filter and returns them
// sorted.
//
// HTTP: GET /api/listings?title=vase&master=&address=&price_min=&price_max=&sort=price
//
// Range bounds are <field>_min / <field>_max for width, height, length,
// weight, quantity and price.
func (h *ListingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := catalog.FilterFromValues(query)
	mode := catalog.ParseSortMode(query.Get("sort"))

	resp := listingsResponse{}
	if err := sess.Store.FetchListings(r.Context(), filter); err != nil {
		resp.Fallback = true
		resp.Message = apperror.Message(err, "showing sample listings")
	}
	resp.Listings = sess.Store.View(filter, mode)
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate publishes a listing as the signed-in user.
//
// HTTP: POST /api/listings
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var draft model.ListingDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.Store.CreateListing(r.Context(), draft); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingsResponse{Listings: sess.Store.Listings()})
}

// HandleGet returns one listing.
//
// HTTP: GET /api/listings/{id}
func (h *ListingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	listing, err := sess.Store.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleUpdate applies a partial edit.
//
// HTTP: PATCH /api/listings/{id}
func (h *ListingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	var upd model.ListingUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.Store.UpdateListing(r.Context(), id, upd); err != nil {
		writeError(w, err)
		return
	}
	listing, err := sess.Store.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleDelete removes a listing.
//
// HTTP: DELETE /api/listings/{id}
func (h *ListingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	if err := sess.Store.DeleteListing(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
