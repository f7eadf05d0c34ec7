package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
)

// Login checks credentials, then fetches the full profile: the login
// response alone is not a profile.
func (s *Store) Login(ctx context.Context, login, password string) error {
	done := s.begin()
	defer done()

	if strings.TrimSpace(login) == "" || password == "" {
		err := apperror.ValidationFailed("login", "login and password are required")
		s.fail("Sign in failed", "", err)
		return err
	}

	res, err := s.api.Login(ctx, login, password)
	if err != nil {
		s.fail("Sign in failed", "invalid login or password", err)
		return err
	}
	u, err := s.api.GetUser(ctx, res.Login)
	if err != nil {
		err = fmt.Errorf("loading profile: %w", err)
		s.fail("Sign in failed", "could not load your profile", err)
		return err
	}

	s.mu.Lock()
	s.user = u
	s.upsertUserLocked(*u)
	s.mu.Unlock()

	s.logger.Info("user signed in", "login", u.Login, "role", u.UserType)
	s.succeed("Signed in", fmt.Sprintf("Welcome, %s", u.FullName))
	return nil
}

// Logout clears the session's user. Entity caches hold public data and are
// kept. There is no backend call.
func (s *Store) Logout() {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.mu.Unlock()

	if prev != nil {
		s.logger.Info("user signed out", "login", prev.Login)
	}
	s.succeed("Signed out", "You have signed out")
}

// Register creates the account, signs in and loads the profile. The steps
// are not rolled back: if signing in fails the account still exists. The
// returned error names the step that failed.
func (s *Store) Register(ctx context.Context, r model.Registration) error {
	done := s.begin()
	defer done()

	if err := validateRegistration(r); err != nil {
		s.fail("Registration failed", "", err)
		return err
	}

	if err := s.api.Register(ctx, r); err != nil {
		s.fail("Registration failed", "could not register, the login may already be taken", err)
		return err
	}
	if _, err := s.api.Login(ctx, r.Login, r.Password); err != nil {
		err = fmt.Errorf("registered, signing in: %w", err)
		s.fail("Registration incomplete", "account created but sign in failed", err)
		return err
	}
	u, err := s.api.GetUser(ctx, r.Login)
	if err != nil {
		err = fmt.Errorf("registered, loading profile: %w", err)
		s.fail("Registration incomplete", "account created but the profile could not be loaded", err)
		return err
	}

	s.mu.Lock()
	s.user = u
	s.upsertUserLocked(*u)
	s.mu.Unlock()

	s.logger.Info("user registered", "login", u.Login, "role", u.UserType)
	s.succeed("Registered", "Your account has been created")
	return nil
}

func validateRegistration(r model.Registration) error {
	switch {
	case strings.TrimSpace(r.FullName) == "":
		return apperror.ValidationFailed("fullName", "full name is required")
	case strings.TrimSpace(r.Login) == "":
		return apperror.ValidationFailed("login", "login is required")
	case strings.ContainsAny(r.Login, " /?#"):
		return apperror.ValidationFailed("login", "login must not contain spaces or URL characters")
	case r.Password == "":
		return apperror.ValidationFailed("password", "password is required")
	case r.Age < 0:
		return apperror.ValidationFailed("age", "age must not be negative")
	}
	return nil
}

// UpdateUserProfile sends the present fields, then re-fetches the profile and
// replaces both the current user and its users cache entry. If only the
// re-fetch fails, the update is applied locally instead.
func (s *Store) UpdateUserProfile(ctx context.Context, upd model.ProfileUpdate) error {
	me, err := s.requireUser("update your profile")
	if err != nil {
		s.fail("Profile not updated", "", err)
		return err
	}

	done := s.begin()
	defer done()

	switch {
	case upd.IsEmpty():
		err = apperror.ValidationFailed("", "nothing to update")
	case upd.FullName != nil && strings.TrimSpace(*upd.FullName) == "":
		err = apperror.ValidationFailed("fullName", "full name must not be blank")
	case upd.Age != nil && *upd.Age <= 0:
		err = apperror.ValidationFailed("age", "age must be a positive integer")
	}
	if err != nil {
		s.fail("Profile not updated", "", err)
		return err
	}

	if err := s.api.UpdateUserProfile(ctx, me.Login, upd); err != nil {
		s.fail("Profile not updated", "could not update the profile", err)
		return err
	}

	fresh, err := s.api.GetUser(ctx, me.Login)
	if err != nil {
		s.logger.Warn("re-fetching profile failed, applying update locally", "login", me.Login, "error", err)
		applyProfile(&me, upd)
		fresh = &me
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == fresh.ID {
		s.user = fresh
	}
	s.upsertUserLocked(*fresh)
	s.mu.Unlock()

	s.succeed("Profile updated", "Your profile has been saved")
	return nil
}

func applyProfile(u *model.User, upd model.ProfileUpdate) {
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Age != nil {
		u.Age = *upd.Age
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Education != nil {
		u.Education = *upd.Education
	}
	if upd.Image != nil {
		u.Image = *upd.Image
	}
}

// UpdateUserStatus suspends or reactivates an account. Admins only.
func (s *Store) UpdateUserStatus(ctx context.Context, login string, status model.Status) error {
	me, err := s.requireUser("change a user's status")
	if err == nil && !me.IsAdmin() {
		err = apperror.Forbidden("only admins can change a user's status")
	}
	if err == nil && !status.Valid() {
		err = apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}
	if err != nil {
		s.fail("Status not changed", "", err)
		return err
	}

	done := s.begin()
	defer done()

	if err := s.api.UpdateUserStatus(ctx, login, status); err != nil {
		s.fail("Status not changed", "could not change the user's status", err)
		return err
	}

	s.mu.Lock()
	for i := range s.users {
		if s.users[i].ID == login {
			s.users[i].Status = status
		}
	}
	if s.user != nil && s.user.ID == login {
		s.user.Status = status
	}
	s.mu.Unlock()

	s.logger.Info("user status changed", "login", login, "status", status, "by", me.Login)
	s.succeed("Status changed", fmt.Sprintf("User %s is now %s", login, status))
	return nil
}

// GetUserByID fetches a user and caches it. When the backend is unavailable
// it falls back to the cache: the result is the cached user (if any) together
// with the error.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	done := s.begin()
	defer done()

	u, err := s.api.GetUser(ctx, id)
	if err == nil {
		s.mu.Lock()
		s.upsertUserLocked(*u)
		s.mu.Unlock()
		return u, nil
	}

	s.logger.Warn("fetching user failed, using cache", "id", id, "error", err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cached := range s.users {
		if cached.ID == id {
			c := cached
			return &c, err
		}
	}
	return nil, err
}
