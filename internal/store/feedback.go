package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
)

// Comments returns the cached comments of a listing.
func (s *Store) Comments(listingID string) []model.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Comment{}
	for _, c := range s.comments {
		if c.ListingID == listingID {
			out = append(out, c)
		}
	}
	return out
}

// FetchComments loads a listing's comments and reconciles them with the
// cache. Locally added comments that the backend does not report yet are
// kept; those it does report are replaced by the fetched entry, matched on
// (author, text). On failure the cached comments are returned with the error.
func (s *Store) FetchComments(ctx context.Context, listingID string) ([]model.Comment, error) {
	masterID, number, err := model.ParseListingID(listingID)
	if err != nil {
		return nil, apperror.ValidationFailed("id", err.Error())
	}

	done := s.begin()
	defer done()

	fetched, err := s.api.GetListingComments(ctx, masterID, number)
	if err != nil {
		s.logger.Warn("fetching comments failed, using cache", "listing", listingID, "error", err)
		return s.Comments(listingID), err
	}

	s.mu.Lock()
	merged := slices.Clone(fetched)
	rest := make([]model.Comment, 0, len(s.comments))
	for _, c := range s.comments {
		if c.ListingID != listingID {
			rest = append(rest, c)
			continue
		}
		if _, local := s.speculative[c.ID]; !local {
			continue
		}
		if slices.ContainsFunc(fetched, func(f model.Comment) bool { return model.SameComment(f, c) }) {
			delete(s.speculative, c.ID)
			continue
		}
		merged = append(merged, c)
	}
	s.comments = append(rest, merged...)
	s.mu.Unlock()

	return merged, nil
}

// AddComment posts a comment as the current user and appends it to the cache
// immediately. The local id is not the backend's and must not be used to
// match the comment against a later fetch.
func (s *Store) AddComment(ctx context.Context, listingID, text string) (*model.Comment, error) {
	me, err := s.requireUser("comment")
	var masterID string
	var number int
	if err == nil {
		masterID, number, err = model.ParseListingID(listingID)
		if err != nil {
			err = apperror.ValidationFailed("id", err.Error())
		}
	}
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = apperror.ValidationFailed("text", "comment must not be empty")
	}
	if err != nil {
		s.fail("Comment not added", "", err)
		return nil, err
	}

	done := s.begin()
	defer done()

	if err := s.api.AddListingComment(ctx, me.Login, masterID, number, text); err != nil {
		s.fail("Comment not added", "could not add the comment", err)
		return nil, err
	}

	now := s.now()
	c := model.Comment{
		ID:        xid.NewWithTime(now).String(),
		ListingID: listingID,
		UserID:    me.ID,
		UserName:  me.FullName,
		Text:      text,
		CreatedAt: now,
	}
	s.mu.Lock()
	s.comments = append(s.comments, c)
	s.speculative[c.ID] = struct{}{}
	s.mu.Unlock()

	s.succeed("Comment added", "Your comment has been posted")
	return &c, nil
}

// DeleteComment removes author's comments from a listing. Authors may delete
// their own comments; admins may delete any.
func (s *Store) DeleteComment(ctx context.Context, listingID, author string) error {
	me, err := s.requireUser("delete a comment")
	var masterID string
	var number int
	if err == nil {
		masterID, number, err = model.ParseListingID(listingID)
		if err != nil {
			err = apperror.ValidationFailed("id", err.Error())
		}
	}
	if err == nil && me.ID != author && !me.IsAdmin() {
		err = apperror.Forbidden("only the author or an admin can delete a comment")
	}
	if err != nil {
		s.fail("Comment not deleted", "", err)
		return err
	}

	done := s.begin()
	defer done()

	if err := s.api.DeleteListingComment(ctx, masterID, number, author); err != nil {
		s.fail("Comment not deleted", "could not delete the comment", err)
		return err
	}

	s.mu.Lock()
	s.comments = slices.DeleteFunc(s.comments, func(c model.Comment) bool {
		if c.ListingID != listingID || c.UserID != author {
			return false
		}
		delete(s.speculative, c.ID)
		return true
	})
	s.mu.Unlock()

	s.succeed("Comment deleted", "The comment has been removed")
	return nil
}

// Reviews returns the cached reviews about userID.
func (s *Store) Reviews(userID string) []model.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Review{}
	for _, r := range s.reviews {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// Rating is the mean rating of the cached reviews about userID.
func (s *Store) Rating(userID string) float64 {
	return model.AverageRating(s.Reviews(userID))
}

// GetUserReviews fetches the reviews about userID and merges in locally added
// reviews the backend does not report yet, matched on (author, text). Two
// different reviews with the same author and text are indistinguishable
// under this key. On failure the cached reviews are returned with the error.
func (s *Store) GetUserReviews(ctx context.Context, userID string) ([]model.Review, error) {
	done := s.begin()
	defer done()

	fetched, err := s.api.GetUserReviews(ctx, userID)
	if err != nil {
		s.logger.Warn("fetching reviews failed, using cache", "user", userID, "error", err)
		return s.Reviews(userID), err
	}

	s.mu.Lock()
	merged := slices.Clone(fetched)
	rest := make([]model.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if r.UserID != userID {
			rest = append(rest, r)
			continue
		}
		if _, local := s.speculative[r.ID]; !local {
			continue
		}
		if slices.ContainsFunc(fetched, func(f model.Review) bool { return model.SameReview(f, r) }) {
			delete(s.speculative, r.ID)
			continue
		}
		merged = append(merged, r)
	}
	s.reviews = append(rest, merged...)
	s.mu.Unlock()

	return merged, nil
}

// AddReview posts the current user's review of targetUserID and appends it
// to the cache immediately. rating must lie in [1, 5]; users cannot review
// themselves.
func (s *Store) AddReview(ctx context.Context, targetUserID, text string, rating int) (*model.Review, error) {
	me, err := s.requireUser("leave a review")
	text = strings.TrimSpace(text)
	switch {
	case err != nil:
	case rating < model.MinRating || rating > model.MaxRating:
		err = apperror.ValidationFailed("rating", fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	case text == "":
		err = apperror.ValidationFailed("text", "review must not be empty")
	case targetUserID == me.ID:
		err = apperror.ValidationFailed("userId", "you cannot review yourself")
	}
	if err != nil {
		s.fail("Review not added", "", err)
		return nil, err
	}

	done := s.begin()
	defer done()

	if err := s.api.AddUserReview(ctx, me.Login, targetUserID, text, rating); err != nil {
		s.fail("Review not added", "could not add the review", err)
		return nil, err
	}

	now := s.now()
	r := model.Review{
		ID:         xid.NewWithTime(now).String(),
		UserID:     targetUserID,
		AuthorID:   me.ID,
		AuthorName: me.FullName,
		Text:       text,
		Rating:     rating,
		CreatedAt:  now,
	}
	s.mu.Lock()
	s.reviews = append(s.reviews, r)
	s.speculative[r.ID] = struct{}{}
	s.mu.Unlock()

	s.succeed("Review added", "Your review has been posted")
	return &r, nil
}

// DeleteReview removes author's reviews of targetUserID. Authors may delete
// their own reviews; admins may delete any.
func (s *Store) DeleteReview(ctx context.Context, targetUserID, author string) error {
	me, err := s.requireUser("delete a review")
	if err == nil && me.ID != author && !me.IsAdmin() {
		err = apperror.Forbidden("only the author or an admin can delete a review")
	}
	if err != nil {
		s.fail("Review not deleted", "", err)
		return err
	}

	done := s.begin()
	defer done()

	if err := s.api.DeleteUserReview(ctx, targetUserID, author); err != nil {
		s.fail("Review not deleted", "could not delete the review", err)
		return err
	}

	s.mu.Lock()
	s.reviews = slices.DeleteFunc(s.reviews, func(r model.Review) bool {
		if r.UserID != targetUserID || r.AuthorID != author {
			return false
		}
		delete(s.speculative, r.ID)
		return true
	})
	s.mu.Unlock()

	s.succeed("Review deleted", "The review has been removed")
	return nil
}
