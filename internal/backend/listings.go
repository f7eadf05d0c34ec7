package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/catalog"
	"github.com/sakif/craftmarket/internal/model"
)

func listingPath(masterID string, number int) string {
	return "/announcements/" + url.PathEscape(masterID) + "/" + strconv.Itoa(number) + "/"
}

// GetListings fetches listings matching f and fills MasterName with one
// lookup per distinct seller.
//
// On failure the result is an empty, non-nil slice together with the error,
// so callers that only want "no listings" can ignore the error.
func (c *Client) GetListings(ctx context.Context, f catalog.Filter) ([]model.Listing, error) {
	var raw []apiListing
	if err := c.do(ctx, "get listings", http.MethodGet, "/announcements/", f.Values(), nil, &raw); err != nil {
		c.logger.Error("fetching listings failed", "error", err)
		return []model.Listing{}, classify(err, "listings", "", apperror.Network("get listings", err))
	}

	masters := make([]string, len(raw))
	for i, l := range raw {
		masters[i] = l.Master
	}
	names := c.GetUsers(ctx, masters)

	now := c.now()
	listings := make([]model.Listing, len(raw))
	for i, l := range raw {
		listings[i] = mapListing(l, names, now)
	}
	return listings, nil
}

// GetListing fetches one listing, including its seller's display name.
func (c *Client) GetListing(ctx context.Context, masterID string, number int) (*model.Listing, error) {
	id := model.FormatListingID(masterID, number)
	var raw apiListing
	if err := c.do(ctx, "get listing", http.MethodGet, listingPath(masterID, number), nil, nil, &raw); err != nil {
		return nil, classify(err, "listing", id, apperror.Network("get listing", err))
	}
	if raw.Master == "" {
		raw.Master = masterID
		raw.Number = number
	}
	names := c.GetUsers(ctx, []string{raw.Master})
	l := mapListing(raw, names, c.now())
	return &l, nil
}

// CreateListing publishes a listing owned by login.
func (c *Client) CreateListing(ctx context.Context, login string, d model.ListingDraft) error {
	body := createListingRequest{
		Login:       login,
		Name:        d.Title,
		Width:       d.Width,
		Height:      d.Height,
		Length:      d.Length,
		Weight:      d.Weight,
		Amount:      d.Quantity,
		Price:       d.Price,
		Address:     d.Address,
		Description: d.Description,
		PhotoURL:    d.ImageURL,
	}
	if err := c.do(ctx, "create listing", http.MethodPost, "/announcements/", nil, body, nil); err != nil {
		return classify(err, "user", login, &apperror.AppError{
			Err:     apperror.ErrUpdate,
			Message: fmt.Sprintf("failed to create listing for %s", login),
		})
	}
	return nil
}

// UpdateListing sends only the fields present in upd.
func (c *Client) UpdateListing(ctx context.Context, masterID string, number int, upd model.ListingUpdate) error {
	id := model.FormatListingID(masterID, number)
	body := listingPatch{
		Name:        upd.Title,
		Width:       upd.Width,
		Height:      upd.Height,
		Length:      upd.Length,
		Weight:      upd.Weight,
		Amount:      upd.Quantity,
		Price:       upd.Price,
		Address:     upd.Address,
		Description: upd.Description,
		PhotoURL:    upd.ImageURL,
	}
	if err := c.do(ctx, "update listing", http.MethodPatch, listingPath(masterID, number), nil, body, nil); err != nil {
		return classify(err, "listing", id, apperror.UpdateFailed("listing", id))
	}
	return nil
}

// DeleteListing removes a listing.
func (c *Client) DeleteListing(ctx context.Context, masterID string, number int) error {
	id := model.FormatListingID(masterID, number)
	if err := c.do(ctx, "delete listing", http.MethodDelete, listingPath(masterID, number), nil, nil, nil); err != nil {
		return classify(err, "listing", id, apperror.DeleteFailed("listing", id))
	}
	return nil
}
