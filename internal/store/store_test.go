package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/backend"
	"github.com/sakif/craftmarket/internal/catalog"
	"github.com/sakif/craftmarket/internal/model"
)

// fakeAPI is a hand-written in-memory API. Every call is recorded in calls.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	users     map[string]model.User
	passwords map[string]string
	listings  []model.Listing
	comments  []model.Comment
	reviews   []model.Review

	getListings func(ctx context.Context, f catalog.Filter) ([]model.Listing, error)
	failGetUser bool
	failAll     error

	lastComment struct {
		sender, masterID string
		number           int
		text             string
	}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: map[string]model.User{
			"alice": {ID: "alice", Login: "alice", FullName: "Alice Smith", UserType: model.RoleBuyer, Age: 25, Education: "MSU", Bio: "old bio", Status: model.StatusActive},
			"bob":   {ID: "bob", Login: "bob", FullName: "Bob Stone", UserType: model.RoleSeller, Status: model.StatusActive},
			"root":  {ID: "root", Login: "root", FullName: "Admin", UserType: model.RoleAdmin, Status: model.StatusActive},
		},
		passwords: map[string]string{"alice": "pw", "bob": "pw", "root": "pw"},
	}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failAll
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Login(_ context.Context, login, password string) (*backend.LoginResult, error) {
	if err := f.record("Login"); err != nil {
		return nil, err
	}
	if f.passwords[login] != password || password == "" {
		return nil, apperror.AuthFailed()
	}
	return &backend.LoginResult{Login: login, Role: f.users[login].UserType}, nil
}

func (f *fakeAPI) Register(_ context.Context, r model.Registration) error {
	if err := f.record("Register"); err != nil {
		return err
	}
	if _, ok := f.users[r.Login]; ok {
		return apperror.Conflict("user", r.Login)
	}
	f.users[r.Login] = model.User{ID: r.Login, Login: r.Login, FullName: r.FullName, UserType: r.UserType, Status: model.StatusActive}
	f.passwords[r.Login] = r.Password
	return nil
}

func (f *fakeAPI) GetUser(_ context.Context, login string) (*model.User, error) {
	if err := f.record("GetUser"); err != nil {
		return nil, err
	}
	if f.failGetUser {
		return nil, apperror.Network("get user", nil)
	}
	u, ok := f.users[login]
	if !ok {
		return nil, apperror.NotFound("user", login)
	}
	return &u, nil
}

func (f *fakeAPI) UpdateUserProfile(_ context.Context, login string, upd model.ProfileUpdate) error {
	if err := f.record("UpdateUserProfile"); err != nil {
		return err
	}
	u := f.users[login]
	applyProfile(&u, upd)
	f.users[login] = u
	return nil
}

func (f *fakeAPI) UpdateUserStatus(_ context.Context, login string, status model.Status) error {
	if err := f.record("UpdateUserStatus"); err != nil {
		return err
	}
	u := f.users[login]
	u.Status = status
	f.users[login] = u
	return nil
}

func (f *fakeAPI) GetListings(ctx context.Context, filter catalog.Filter) ([]model.Listing, error) {
	if err := f.record("GetListings"); err != nil {
		return []model.Listing{}, err
	}
	if f.getListings != nil {
		return f.getListings(ctx, filter)
	}
	return catalog.Apply(f.listings, filter), nil
}

func (f *fakeAPI) GetListing(_ context.Context, masterID string, number int) (*model.Listing, error) {
	if err := f.record("GetListing"); err != nil {
		return nil, err
	}
	id := model.FormatListingID(masterID, number)
	for _, l := range f.listings {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, apperror.NotFound("listing", id)
}

func (f *fakeAPI) CreateListing(_ context.Context, login string, d model.ListingDraft) error {
	if err := f.record("CreateListing"); err != nil {
		return err
	}
	n := len(f.listings) + 1
	f.listings = append(f.listings, model.Listing{
		ID: model.FormatListingID(login, n), MasterID: login, MasterName: f.users[login].FullName, Number: n,
		Title: d.Title, Price: d.Price, Quantity: d.Quantity, Address: d.Address,
	})
	return nil
}

func (f *fakeAPI) UpdateListing(_ context.Context, masterID string, number int, upd model.ListingUpdate) error {
	return f.record("UpdateListing")
}

func (f *fakeAPI) DeleteListing(_ context.Context, masterID string, number int) error {
	return f.record("DeleteListing")
}

func (f *fakeAPI) GetListingComments(_ context.Context, masterID string, number int) ([]model.Comment, error) {
	if err := f.record("GetListingComments"); err != nil {
		return []model.Comment{}, err
	}
	return append([]model.Comment{}, f.comments...), nil
}

func (f *fakeAPI) AddListingComment(_ context.Context, sender, masterID string, number int, text string) error {
	if err := f.record("AddListingComment"); err != nil {
		return err
	}
	f.lastComment.sender, f.lastComment.masterID, f.lastComment.number, f.lastComment.text = sender, masterID, number, text
	return nil
}

func (f *fakeAPI) DeleteListingComment(_ context.Context, masterID string, number int, author string) error {
	return f.record("DeleteListingComment")
}

func (f *fakeAPI) GetUserReviews(_ context.Context, login string) ([]model.Review, error) {
	if err := f.record("GetUserReviews"); err != nil {
		return []model.Review{}, err
	}
	return append([]model.Review{}, f.reviews...), nil
}

func (f *fakeAPI) AddUserReview(_ context.Context, sender, recipient, text string, rating int) error {
	return f.record("AddUserReview")
}

func (f *fakeAPI) DeleteUserReview(_ context.Context, login, author string) error {
	return f.record("DeleteUserReview")
}

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.items))
	for i, n := range r.items {
		out[i] = n.Kind
	}
	return out
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, api API) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(api, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return testNow }
	return s, rec
}

func signIn(t *testing.T, s *Store, login string) {
	t.Helper()
	require.NoError(t, s.Login(context.Background(), login, "pw"))
}

func TestNewStoreIsUnauthenticated(t *testing.T) {
	s, _ := newTestStore(t, newFakeAPI())
	assert.Nil(t, s.CurrentUser())
	assert.False(t, s.Loading())
	assert.Empty(t, s.Listings())
}

func TestCreateListingWithoutUserMakesNoCall(t *testing.T) {
	api := newFakeAPI()
	api.listings = []model.Listing{{ID: "bob_1", MasterID: "bob", Number: 1}}
	s, rec := newTestStore(t, api)
	require.NoError(t, s.FetchListings(context.Background(), catalog.Filter{}))
	before := s.Listings()
	callsBefore := len(api.Calls())

	err := s.CreateListing(context.Background(), model.ListingDraft{Title: "Vase", Width: 1, Height: 1, Length: 1, Weight: 1, Quantity: 1, Address: "x"})

	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))
	assert.Len(t, api.Calls(), callsBefore)
	assert.Equal(t, before, s.Listings())
	assert.Equal(t, []Kind{KindError}, rec.kinds())
}

func TestAddCommentParsesCompositeIDAndAppendsOptimistically(t *testing.T) {
	api := newFakeAPI()
	s, rec := newTestStore(t, api)
	signIn(t, s, "alice")

	c, err := s.AddComment(context.Background(), "bob_3", "nice")
	require.NoError(t, err)

	assert.Equal(t, "alice", api.lastComment.sender)
	assert.Equal(t, "bob", api.lastComment.masterID)
	assert.Equal(t, 3, api.lastComment.number)
	assert.Equal(t, "nice", api.lastComment.text)

	comments := s.Comments("bob_3")
	require.Len(t, comments, 1)
	assert.Equal(t, "alice", comments[0].UserID)
	assert.Equal(t, "Alice Smith", comments[0].UserName)
	assert.Equal(t, c.ID, comments[0].ID)
	assert.Equal(t, testNow, comments[0].CreatedAt)
	assert.NotContains(t, api.Calls(), "GetListingComments")
	assert.Equal(t, []Kind{KindSuccess, KindSuccess}, rec.kinds())
}

func TestFetchCommentsReconcilesByNaturalKey(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)
	signIn(t, s, "alice")

	_, err := s.AddComment(context.Background(), "bob_3", "nice")
	require.NoError(t, err)
	_, err = s.AddComment(context.Background(), "bob_3", "pending")
	require.NoError(t, err)

	api.comments = []model.Comment{
		{ID: "remote-1", ListingID: "bob_3", UserID: "alice", UserName: "Alice Smith", Text: "nice"},
		{ID: "remote-2", ListingID: "bob_3", UserID: "bob", UserName: "Bob Stone", Text: "thanks"},
	}
	got, err := s.FetchComments(context.Background(), "bob_3")
	require.NoError(t, err)

	texts := make([]string, len(got))
	for i, c := range got {
		texts[i] = c.Text
	}
	assert.Equal(t, []string{"nice", "thanks", "pending"}, texts)
	assert.Equal(t, "remote-1", got[0].ID)
	assert.Equal(t, got, s.Comments("bob_3"))
}

func TestFetchListingsFallsBackToSample(t *testing.T) {
	api := newFakeAPI()
	api.failAll = apperror.Network("get listings", nil)
	s, rec := newTestStore(t, api)

	err := s.FetchListings(context.Background(), catalog.Filter{})
	assert.True(t, errors.Is(err, apperror.ErrNetwork))
	assert.Equal(t, SampleListings(), s.Listings())
	assert.Equal(t, []Kind{KindError}, rec.kinds())
}

func TestFetchListingsDiscardsStaleResponse(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	started := make(chan struct{})
	api.getListings = func(ctx context.Context, f catalog.Filter) ([]model.Listing, error) {
		if f.Title == "slow" {
			close(started)
			<-release
			return []model.Listing{{ID: "old_1"}}, nil
		}
		return []model.Listing{{ID: "new_1"}}, nil
	}
	s, _ := newTestStore(t, api)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.FetchListings(context.Background(), catalog.Filter{Title: "slow"})
	}()
	<-started

	require.NoError(t, s.FetchListings(context.Background(), catalog.Filter{Title: "fast"}))
	assert.True(t, s.Loading(), "slow fetch still in flight")

	close(release)
	wg.Wait()

	require.Len(t, s.Listings(), 1)
	assert.Equal(t, "new_1", s.Listings()[0].ID)
	assert.Equal(t, "fast", s.LastFilter().Title)
	assert.False(t, s.Loading())
}

func TestLoadingIsReferenceCounted(t *testing.T) {
	s, _ := newTestStore(t, newFakeAPI())

	endA := s.begin()
	endB := s.begin()
	assert.True(t, s.Loading())

	endA()
	endA() // idempotent
	assert.True(t, s.Loading())

	endB()
	assert.False(t, s.Loading())
}

func TestLoginFetchesProfile(t *testing.T) {
	api := newFakeAPI()
	s, rec := newTestStore(t, api)

	require.NoError(t, s.Login(context.Background(), "alice", "pw"))
	assert.Equal(t, []string{"Login", "GetUser"}, api.Calls())
	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "Alice Smith", s.CurrentUser().FullName)

	s.Logout()
	assert.Nil(t, s.CurrentUser())
	assert.Len(t, s.Users(), 1, "logout keeps entity caches")

	err := s.Login(context.Background(), "alice", "wrong")
	assert.True(t, errors.Is(err, apperror.ErrAuth))
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, []Kind{KindSuccess, KindSuccess, KindError}, rec.kinds())
}

func TestRegisterRunsThreeSteps(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)

	err := s.Register(context.Background(), model.Registration{FullName: "Dan", UserType: model.RoleSeller, Login: "dan", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Register", "Login", "GetUser"}, api.Calls())
	assert.Equal(t, model.RoleSeller, s.CurrentUser().UserType)

	err = s.Register(context.Background(), model.Registration{FullName: "Dan", Login: "dan", Password: "pw"})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestRegisterPartialFailureKeepsAccount(t *testing.T) {
	api := newFakeAPI()
	api.failGetUser = true
	s, _ := newTestStore(t, api)

	err := s.Register(context.Background(), model.Registration{FullName: "Eve", Login: "eve", Password: "pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading profile")
	assert.Nil(t, s.CurrentUser())
	assert.Contains(t, api.users, "eve")
}

func TestUpdateUserProfileRoundTrip(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)
	signIn(t, s, "alice")
	before := *s.CurrentUser()

	bio := "hello"
	require.NoError(t, s.UpdateUserProfile(context.Background(), model.ProfileUpdate{Bio: &bio}))

	got, err := api.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	want := before
	want.Bio = "hello"
	assert.Equal(t, want, *got)
	assert.Equal(t, want, *s.CurrentUser())

	cached := s.Users()
	require.Len(t, cached, 1)
	assert.Equal(t, "hello", cached[0].Bio)
}

func TestUpdateUserProfileRequiresUser(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)

	bio := "x"
	err := s.UpdateUserProfile(context.Background(), model.ProfileUpdate{Bio: &bio})
	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))
	assert.Empty(t, api.Calls())
}

func TestUpdateListingAuthorization(t *testing.T) {
	created := testNow.Add(-24 * time.Hour)
	api := newFakeAPI()
	api.listings = []model.Listing{{ID: "bob_1", MasterID: "bob", Number: 1, Price: 100, CreatedAt: created, UpdatedAt: created}}
	price := 200

	t.Run("other user is forbidden", func(t *testing.T) {
		s, _ := newTestStore(t, api)
		signIn(t, s, "alice")
		err := s.UpdateListing(context.Background(), "bob_1", model.ListingUpdate{Price: &price})
		assert.True(t, errors.Is(err, apperror.ErrForbidden))
		assert.NotContains(t, api.Calls(), "UpdateListing")
	})

	t.Run("owner patches cache", func(t *testing.T) {
		s, _ := newTestStore(t, api)
		require.NoError(t, s.FetchListings(context.Background(), catalog.Filter{}))
		signIn(t, s, "bob")
		require.NoError(t, s.UpdateListing(context.Background(), "bob_1", model.ListingUpdate{Price: &price}))

		l := s.Listings()[0]
		assert.Equal(t, 200, l.Price)
		assert.Equal(t, testNow, l.UpdatedAt)
		assert.Equal(t, created, l.CreatedAt)
	})

	t.Run("admin may delete", func(t *testing.T) {
		s, _ := newTestStore(t, api)
		require.NoError(t, s.FetchListings(context.Background(), catalog.Filter{}))
		signIn(t, s, "root")
		require.NoError(t, s.DeleteListing(context.Background(), "bob_1"))
		assert.Empty(t, s.Listings())
	})

	t.Run("invalid price is rejected", func(t *testing.T) {
		s, _ := newTestStore(t, api)
		signIn(t, s, "bob")
		neg := -1
		err := s.UpdateListing(context.Background(), "bob_1", model.ListingUpdate{Price: &neg})
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})
}

func TestCreateListingRefetchesWithLastFilter(t *testing.T) {
	api := newFakeAPI()
	s, rec := newTestStore(t, api)
	signIn(t, s, "bob")
	require.NoError(t, s.FetchListings(context.Background(), catalog.Filter{Title: "vase"}))

	err := s.CreateListing(context.Background(), model.ListingDraft{Title: "Blue vase", Width: 1, Height: 1, Length: 1, Weight: 1, Quantity: 1, Price: 10, Address: "Kazan"})
	require.NoError(t, err)

	listings := s.Listings()
	require.Len(t, listings, 1)
	assert.Equal(t, "Blue vase", listings[0].Title)
	assert.Equal(t, []Kind{KindSuccess, KindSuccess}, rec.kinds())
}

func TestAddReviewValidatesBeforeCalling(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)
	signIn(t, s, "alice")

	tests := []struct {
		name   string
		target string
		rating int
	}{
		{"rating too low", "bob", 0},
		{"rating too high", "bob", 6},
		{"self review", "alice", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddReview(context.Background(), tt.target, "text", tt.rating)
			assert.True(t, errors.Is(err, apperror.ErrValidation))
		})
	}
	assert.NotContains(t, api.Calls(), "AddUserReview")
}

func TestGetUserReviewsMergesLocalReviews(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)
	signIn(t, s, "alice")

	_, err := s.AddReview(context.Background(), "bob", "great", 5)
	require.NoError(t, err)
	_, err = s.AddReview(context.Background(), "bob", "fast shipping", 4)
	require.NoError(t, err)

	api.reviews = []model.Review{
		{ID: "r1", UserID: "bob", AuthorID: "alice", AuthorName: "Alice Smith", Text: "great", Rating: 5},
		{ID: "r2", UserID: "bob", AuthorID: "root", AuthorName: "Admin", Text: "ok", Rating: 3},
	}
	got, err := s.GetUserReviews(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, "r2", got[1].ID)
	assert.Equal(t, "fast shipping", got[2].Text)
	assert.Equal(t, 4.0, s.Rating("bob"))

	api.failAll = apperror.Network("get reviews", nil)
	cached, err := s.GetUserReviews(context.Background(), "bob")
	assert.Error(t, err)
	assert.Equal(t, got, cached)
}

func TestDeleteReviewRequiresAuthorOrAdmin(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)
	signIn(t, s, "bob")

	err := s.DeleteReview(context.Background(), "bob", "alice")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	s.Logout()
	signIn(t, s, "alice")
	_, err = s.AddReview(context.Background(), "bob", "great", 5)
	require.NoError(t, err)
	require.NoError(t, s.DeleteReview(context.Background(), "bob", "alice"))
	assert.Empty(t, s.Reviews("bob"))
	assert.Empty(t, s.speculative)
}

func TestDeleteCommentRequiresAuthorOrAdmin(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s, _ := newTestStore(t, api)

	err := s.DeleteComment(ctx, "bob_3", "alice")
	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))

	signIn(t, s, "alice")
	_, err = s.AddComment(ctx, "bob_3", "nice")
	require.NoError(t, err)
	_, err = s.AddComment(ctx, "bob_3", "still nice")
	require.NoError(t, err)

	err = s.DeleteComment(ctx, "bob-3", "alice")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	s.Logout()
	signIn(t, s, "bob")
	err = s.DeleteComment(ctx, "bob_3", "alice")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.NotContains(t, api.Calls(), "DeleteListingComment")
	assert.Len(t, s.Comments("bob_3"), 2)

	s.Logout()
	signIn(t, s, "alice")
	require.NoError(t, s.DeleteComment(ctx, "bob_3", "alice"))
	assert.Empty(t, s.Comments("bob_3"), "every comment by the author is removed")
	assert.Empty(t, s.speculative)

	_, err = s.AddComment(ctx, "bob_3", "back again")
	require.NoError(t, err)
	s.Logout()
	signIn(t, s, "root")
	require.NoError(t, s.DeleteComment(ctx, "bob_3", "alice"))
	assert.Empty(t, s.Comments("bob_3"))
	assert.Empty(t, s.speculative)
}

func TestUpdateUserStatusRequiresAdmin(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)

	err := s.UpdateUserStatus(context.Background(), "bob", model.StatusSuspended)
	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated))

	signIn(t, s, "alice")
	err = s.UpdateUserStatus(context.Background(), "bob", model.StatusSuspended)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.NotContains(t, api.Calls(), "UpdateUserStatus")

	s.Logout()
	signIn(t, s, "root")
	_, err = s.GetUserByID(context.Background(), "bob")
	require.NoError(t, err)
	require.NoError(t, s.UpdateUserStatus(context.Background(), "bob", model.StatusSuspended))
	for _, u := range s.Users() {
		if u.ID == "bob" {
			assert.Equal(t, model.StatusSuspended, u.Status)
		}
	}
}

func TestGetUserByIDFallsBackToCache(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api)

	u, err := s.GetUserByID(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob Stone", u.FullName)

	api.failGetUser = true
	u, err = s.GetUserByID(context.Background(), "bob")
	assert.Error(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Bob Stone", u.FullName)

	u, err = s.GetUserByID(context.Background(), "nobody")
	assert.Error(t, err)
	assert.Nil(t, u)
}

func TestFeed(t *testing.T) {
	feed := NewFeed(1)
	ch, cancel := feed.Subscribe()

	feed.Notify(Notification{Title: "one"})
	feed.Notify(Notification{Title: "dropped"})

	n := <-ch
	assert.Equal(t, "one", n.Title)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	feed.Notify(Notification{Title: "nobody listening"})
	feed.Close()
}
