package store

import (
	"context"
	"slices"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/catalog"
	"github.com/sakif/craftmarket/internal/model"
)

// FetchListings replaces the listing cache with the backend's result for f.
//
// On failure the cache is replaced with the built-in sample dataset and the
// error is returned; the cache is never left empty by a transient error.
// Calls are sequenced: a response that arrives after a newer call was issued
// is discarded.
func (s *Store) FetchListings(ctx context.Context, f catalog.Filter) error {
	if err := s.fetchListings(ctx, f); err != nil {
		s.fail("Listings unavailable", "showing sample listings", err)
		return err
	}
	return nil
}

func (s *Store) fetchListings(ctx context.Context, f catalog.Filter) error {
	done := s.begin()
	defer done()

	s.mu.Lock()
	s.listingsSeq++
	seq := s.listingsSeq
	s.lastFilter = f
	s.mu.Unlock()

	listings, err := s.api.GetListings(ctx, f)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.listingsSeq {
		s.logger.Debug("discarding stale listings response", "seq", seq, "latest", s.listingsSeq)
		return nil
	}
	switch {
	case err != nil:
		s.listings = catalog.Apply(SampleListings(), f)
	case listings == nil:
		s.listings = []model.Listing{}
	default:
		s.listings = listings
	}
	return err
}

// Listings returns a copy of the listing cache.
func (s *Store) Listings() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.listings)
}

// View filters and sorts the cached listings.
func (s *Store) View(f catalog.Filter, mode catalog.SortMode) []model.Listing {
	return catalog.View(s.Listings(), f, mode)
}

// LastFilter returns the filter of the most recently issued fetch.
func (s *Store) LastFilter() catalog.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFilter
}

// UserListings returns the cached listings owned by userID.
func (s *Store) UserListings(userID string) []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Listing{}
	for _, l := range s.listings {
		if l.MasterID == userID {
			out = append(out, l)
		}
	}
	return out
}

// GetListing returns the cached listing with id, or fetches it.
func (s *Store) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	s.mu.RLock()
	for _, l := range s.listings {
		if l.ID == id {
			s.mu.RUnlock()
			return &l, nil
		}
	}
	s.mu.RUnlock()

	masterID, number, err := model.ParseListingID(id)
	if err != nil {
		return nil, apperror.ValidationFailed("id", err.Error())
	}

	done := s.begin()
	defer done()
	return s.api.GetListing(ctx, masterID, number)
}

// CreateListing publishes d as the current user, then re-fetches listings
// with the last used filter.
func (s *Store) CreateListing(ctx context.Context, d model.ListingDraft) error {
	me, err := s.requireUser("create a listing")
	if err != nil {
		s.fail("Listing not created", "", err)
		return err
	}
	if field, msg, ok := d.Validate(); !ok {
		err := apperror.ValidationFailed(field, msg)
		s.fail("Listing not created", "", err)
		return err
	}

	done := s.begin()
	defer done()

	if err := s.api.CreateListing(ctx, me.Login, d); err != nil {
		s.fail("Listing not created", "could not create the listing", err)
		return err
	}
	s.logger.Info("listing created", "master", me.Login, "title", d.Title)
	s.succeed("Listing created", "Your listing has been published")

	if err := s.fetchListings(ctx, s.LastFilter()); err != nil {
		s.logger.Warn("refreshing listings after create failed", "error", err)
	}
	return nil
}

// authorizeListing resolves id and checks that the current user owns it or is an
// admin.
func (s *Store) authorizeListing(action, id string) (me model.User, masterID string, number int, err error) {
	me, err = s.requireUser(action)
	if err != nil {
		return
	}
	masterID, number, err = model.ParseListingID(id)
	if err != nil {
		err = apperror.ValidationFailed("id", err.Error())
		return
	}
	if me.ID != masterID && !me.IsAdmin() {
		err = apperror.Forbidden("only the owner or an admin can " + action)
	}
	return
}

// UpdateListing sends the present fields and patches the cached listing,
// refreshing its UpdatedAt.
func (s *Store) UpdateListing(ctx context.Context, id string, upd model.ListingUpdate) error {
	me, masterID, number, err := s.authorizeListing("update this listing", id)
	if err == nil && upd.IsEmpty() {
		err = apperror.ValidationFailed("", "nothing to update")
	}
	if err == nil {
		if field, msg, ok := upd.Validate(); !ok {
			err = apperror.ValidationFailed(field, msg)
		}
	}
	if err != nil {
		s.fail("Listing not updated", "", err)
		return err
	}

	done := s.begin()
	defer done()

	if err := s.api.UpdateListing(ctx, masterID, number, upd); err != nil {
		s.fail("Listing not updated", "could not update the listing", err)
		return err
	}

	s.mu.Lock()
	now := s.now()
	for i := range s.listings {
		if s.listings[i].ID == id {
			upd.Apply(&s.listings[i], now)
		}
	}
	s.mu.Unlock()

	s.logger.Info("listing updated", "id", id, "by", me.Login)
	s.succeed("Listing updated", "Your changes have been saved")
	return nil
}

// DeleteListing removes the listing remotely, then drops it and its comments
// from the cache whether or not they were cached.
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	me, masterID, number, err := s.authorizeListing("delete this listing", id)
	if err != nil {
		s.fail("Listing not deleted", "", err)
		return err
	}

	done := s.begin()
	defer done()

	if err := s.api.DeleteListing(ctx, masterID, number); err != nil {
		s.fail("Listing not deleted", "could not delete the listing", err)
		return err
	}

	s.mu.Lock()
	s.listings = slices.DeleteFunc(s.listings, func(l model.Listing) bool { return l.ID == id })
	s.comments = slices.DeleteFunc(s.comments, func(c model.Comment) bool { return c.ListingID == id })
	s.mu.Unlock()

	s.logger.Info("listing deleted", "id", id, "by", me.Login)
	s.succeed("Listing deleted", "The listing has been removed")
	return nil
}
