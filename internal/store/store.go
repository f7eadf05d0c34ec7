// Package store is the per-session source of truth for the marketplace.
//
// A Store caches the current user and the listings, comments, users and
// reviews the session has seen. Every mutation goes through the backend API
// first and then reconciles the cache; nothing is written locally unless the
// backend call succeeded.
//
// Outcome policy: every mutator returns an error AND emits exactly one
// Notification describing the outcome. Reads that can degrade (listings,
// reviews, users) return usable data together with the error.
package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/backend"
	"github.com/sakif/craftmarket/internal/catalog"
	"github.com/sakif/craftmarket/internal/model"
)

// API is the subset of the backend client the store depends on.
// *backend.Client satisfies it.
type API interface {
	Login(ctx context.Context, login, password string) (*backend.LoginResult, error)
	Register(ctx context.Context, r model.Registration) error
	GetUser(ctx context.Context, login string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, login string, upd model.ProfileUpdate) error
	UpdateUserStatus(ctx context.Context, login string, status model.Status) error

	GetListings(ctx context.Context, f catalog.Filter) ([]model.Listing, error)
	GetListing(ctx context.Context, masterID string, number int) (*model.Listing, error)
	CreateListing(ctx context.Context, login string, d model.ListingDraft) error
	UpdateListing(ctx context.Context, masterID string, number int, upd model.ListingUpdate) error
	DeleteListing(ctx context.Context, masterID string, number int) error

	GetListingComments(ctx context.Context, masterID string, number int) ([]model.Comment, error)
	AddListingComment(ctx context.Context, sender, masterID string, number int, text string) error
	DeleteListingComment(ctx context.Context, masterID string, number int, author string) error

	GetUserReviews(ctx context.Context, login string) ([]model.Review, error)
	AddUserReview(ctx context.Context, sender, recipient, text string, rating int) error
	DeleteUserReview(ctx context.Context, login, author string) error
}

// Store holds one session's state. It is safe for concurrent use; no lock is
// held across a backend call.
type Store struct {
	api      API
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	user     *model.User
	listings []model.Listing
	comments []model.Comment
	users    []model.User
	reviews  []model.Review

	// ids of comments and reviews appended locally and not yet seen in a
	// backend response
	speculative map[string]struct{}

	inflight    int
	listingsSeq uint64
	lastFilter  catalog.Filter
}

// New returns an unauthenticated Store with empty caches.
func New(api API, notifier Notifier, logger *slog.Logger) *Store {
	if notifier == nil {
		notifier = Discard
	}
	return &Store{
		api:         api,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
		listings:    []model.Listing{},
		comments:    []model.Comment{},
		users:       []model.User{},
		reviews:     []model.Review{},
		speculative: make(map[string]struct{}),
	}
}

// Loading reports whether any operation is in flight. The counter is
// reference counted, so overlapping operations never report idle early.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// begin marks an operation as in flight; the returned func ends it.
func (s *Store) begin() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.inflight--
			s.mu.Unlock()
		})
	}
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Store) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// requireUser returns a copy of the current user or ErrUnauthenticated.
func (s *Store) requireUser(action string) (model.User, error) {
	u := s.CurrentUser()
	if u == nil {
		return model.User{}, apperror.Unauthenticated(action)
	}
	return *u, nil
}

// Users returns a copy of the user cache.
func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

// upsertUserLocked replaces the cached user with the same id or appends u.
func (s *Store) upsertUserLocked(u model.User) {
	for i := range s.users {
		if s.users[i].ID == u.ID {
			s.users[i] = u
			return
		}
	}
	s.users = append(s.users, u)
}

func (s *Store) succeed(title, message string) {
	s.notifier.Notify(Notification{Kind: KindSuccess, Title: title, Message: message, At: s.now()})
}

// fail logs err and emits an error notification whose message comes from
// the error when it carries one.
func (s *Store) fail(title, fallback string, err error) {
	s.logger.Error(title, "error", err)
	s.notifier.Notify(Notification{
		Kind:    KindError,
		Title:   title,
		Message: apperror.Message(err, fallback),
		At:      s.now(),
	})
}
