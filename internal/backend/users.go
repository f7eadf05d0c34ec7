package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
)

// LoginResult is what the backend returns for a successful login. It is not
// a full profile; callers fetch the user afterwards.
type LoginResult struct {
	Login    string
	Role     model.Role
	FullName string
}

// Login checks credentials. Any rejection is ErrAuth.
func (c *Client) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, "login", http.MethodPost, "/login/", nil, loginRequest{Login: login, Password: password}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusUnauthorized) {
			return nil, apperror.AuthFailed()
		}
		return nil, classify(err, "user", login, apperror.AuthFailed())
	}
	if resp.Login == "" {
		resp.Login = login
	}
	return &LoginResult{
		Login:    resp.Login,
		Role:     model.RoleFromBackend(resp.Role),
		FullName: resp.FullName,
	}, nil
}

// Register creates an account. Age defaults to 18 when zero; optional text
// fields are sent only when non-empty.
func (c *Client) Register(ctx context.Context, r model.Registration) error {
	age := r.Age
	if age == 0 {
		age = 18
	}
	body := registerRequest{
		Login:       r.Login,
		Password:    r.Password,
		Role:        r.UserType.BackendRole(),
		FullName:    r.FullName,
		Age:         age,
		Education:   r.Education,
		Description: r.Bio,
		PhotoURL:    r.ImageURL,
	}
	err := c.do(ctx, "register", http.MethodPost, "/users/", nil, body, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			switch se.Code {
			case http.StatusBadRequest, http.StatusConflict:
				return apperror.Conflict("user", r.Login)
			case http.StatusUnprocessableEntity:
				return apperror.ValidationFailed("", nonEmpty(se.Message, "registration rejected"))
			}
		}
		return classify(err, "user", r.Login, apperror.Network("register", err))
	}
	return nil
}

// GetUser fetches one user by login.
func (c *Client) GetUser(ctx context.Context, login string) (*model.User, error) {
	var u apiUser
	if err := c.do(ctx, "get user", http.MethodGet, "/users/"+url.PathEscape(login)+"/", nil, nil, &u); err != nil {
		return nil, classify(err, "user", login, apperror.Network("get user", err))
	}
	if u.Login == "" {
		u.Login = login
	}
	user := mapUser(u)
	return &user, nil
}

// GetUsers resolves a set of logins. The backend has no batch endpoint, so
// this issues one GetUser per distinct login, at most lookupLimit at a time.
// Logins that fail to resolve are logged and left out of the result.
func (c *Client) GetUsers(ctx context.Context, logins []string) map[string]model.User {
	distinct := make([]string, 0, len(logins))
	seen := make(map[string]struct{}, len(logins))
	for _, l := range logins {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		distinct = append(distinct, l)
	}

	results := make([]*model.User, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.lookupLimit)
	for i, login := range distinct {
		g.Go(func() error {
			u, err := c.GetUser(gctx, login)
			if err != nil {
				c.logger.Warn("user lookup failed", "login", login, "error", err)
				return nil
			}
			results[i] = u
			return nil
		})
	}
	_ = g.Wait()

	users := make(map[string]model.User, len(distinct))
	for i, u := range results {
		if u != nil {
			users[distinct[i]] = *u
		}
	}
	return users
}

// UpdateUserProfile sends only the fields present in upd.
func (c *Client) UpdateUserProfile(ctx context.Context, login string, upd model.ProfileUpdate) error {
	body := profilePatch{
		FullName:    upd.FullName,
		Age:         upd.Age,
		Description: upd.Bio,
		Education:   upd.Education,
		PhotoURL:    upd.Image,
	}
	err := c.do(ctx, "update profile", http.MethodPatch, "/users/"+url.PathEscape(login)+"/", nil, body, nil)
	if err != nil {
		return classify(err, "user", login, apperror.UpdateFailed("user", login))
	}
	return nil
}

// UpdateUserStatus changes an account's status.
func (c *Client) UpdateUserStatus(ctx context.Context, login string, status model.Status) error {
	err := c.do(ctx, "update status", http.MethodPatch, "/users/"+url.PathEscape(login)+"/status/", nil, statusPatch{Status: string(status)}, nil)
	if err != nil {
		return classify(err, "user", login, apperror.UpdateFailed("user status", login))
	}
	return nil
}
