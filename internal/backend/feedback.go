package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/format"
	"github.com/sakif/craftmarket/internal/model"
)

func authors(raw []apiFeedback) []string {
	out := make([]string, len(raw))
	for i, f := range raw {
		out[i] = f.Author
	}
	return out
}

// GetListingComments fetches the comments of one listing with author names
// resolved. The backend assigns no comment ids, so each comment gets a fresh
// local id. Failure yields an empty slice plus the error.
func (c *Client) GetListingComments(ctx context.Context, masterID string, number int) ([]model.Comment, error) {
	listingID := model.FormatListingID(masterID, number)
	var raw []apiFeedback
	if err := c.do(ctx, "get comments", http.MethodGet, listingPath(masterID, number)+"comments/", nil, nil, &raw); err != nil {
		c.logger.Error("fetching comments failed", "listing", listingID, "error", err)
		return []model.Comment{}, classify(err, "listing", listingID, apperror.Network("get comments", err))
	}

	names := c.GetUsers(ctx, authors(raw))
	now := c.now()
	comments := make([]model.Comment, len(raw))
	for i, f := range raw {
		comments[i] = model.Comment{
			ID:        xid.NewWithTime(now).String(),
			ListingID: listingID,
			UserID:    f.Author,
			UserName:  displayName(f.Author, names),
			Text:      f.Text,
			CreatedAt: format.ParseTimestamp(f.CreatedAt, now),
		}
	}
	return comments, nil
}

// AddListingComment posts a comment as sender.
func (c *Client) AddListingComment(ctx context.Context, sender, masterID string, number int, text string) error {
	listingID := model.FormatListingID(masterID, number)
	body := commentRequest{SenderLogin: sender, Text: text}
	if err := c.do(ctx, "add comment", http.MethodPost, listingPath(masterID, number)+"comments/", nil, body, nil); err != nil {
		return classify(err, "listing", listingID, apperror.UpdateFailed("comments of listing", listingID))
	}
	return nil
}

// DeleteListingComment removes author's comment from a listing.
func (c *Client) DeleteListingComment(ctx context.Context, masterID string, number int, author string) error {
	listingID := model.FormatListingID(masterID, number)
	path := listingPath(masterID, number) + "comments/" + url.PathEscape(author) + "/"
	if err := c.do(ctx, "delete comment", http.MethodDelete, path, nil, nil, nil); err != nil {
		return classify(err, "comment", author+" on "+listingID, apperror.DeleteFailed("comment on listing", listingID))
	}
	return nil
}

// GetUserReviews fetches the reviews written about login, with author names
// resolved. Failure yields an empty slice plus the error.
func (c *Client) GetUserReviews(ctx context.Context, login string) ([]model.Review, error) {
	var raw []apiFeedback
	if err := c.do(ctx, "get reviews", http.MethodGet, "/users/"+url.PathEscape(login)+"/comments/", nil, nil, &raw); err != nil {
		c.logger.Error("fetching reviews failed", "user", login, "error", err)
		return []model.Review{}, classify(err, "user", login, apperror.Network("get reviews", err))
	}

	names := c.GetUsers(ctx, authors(raw))
	now := c.now()
	reviews := make([]model.Review, len(raw))
	for i, f := range raw {
		reviews[i] = model.Review{
			ID:         xid.NewWithTime(now).String(),
			UserID:     login,
			AuthorID:   f.Author,
			AuthorName: displayName(f.Author, names),
			Text:       f.Text,
			Rating:     f.Estimation,
			CreatedAt:  format.ParseTimestamp(f.CreatedAt, now),
		}
	}
	return reviews, nil
}

// AddUserReview posts sender's review of recipient.
func (c *Client) AddUserReview(ctx context.Context, sender, recipient, text string, rating int) error {
	body := reviewRequest{SenderLogin: sender, Text: text, Estimation: rating}
	if err := c.do(ctx, "add review", http.MethodPost, "/users/"+url.PathEscape(recipient)+"/comments/", nil, body, nil); err != nil {
		return classify(err, "user", recipient, apperror.UpdateFailed("reviews of user", recipient))
	}
	return nil
}

// DeleteUserReview removes author's review of login.
func (c *Client) DeleteUserReview(ctx context.Context, login, author string) error {
	path := "/users/" + url.PathEscape(login) + "/comments/" + url.PathEscape(author) + "/"
	if err := c.do(ctx, "delete review", http.MethodDelete, path, nil, nil, nil); err != nil {
		return classify(err, "review", author+" on "+login, apperror.DeleteFailed("review of user", login))
	}
	return nil
}
