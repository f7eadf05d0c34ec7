package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/craftmarket/internal/session"
)

// CookieName is the name of the session cookie.
const CookieName = "craftmarket_session"

// contextKey is unexported so no other package can read or shadow the
// session stored in a request context.
type contextKey string

const (
	sessionKey contextKey = "session"
	issuerKey  contextKey = "issuer"
)

// sessionIssuer keeps a request's session and hands out its cookie.
type sessionIssuer struct {
	tokens   *TokenService
	sessions *session.Manager
	secure   bool
	logger   *slog.Logger
}

// Sessions is a middleware that attaches a session to every request.
//
// It reads the JWT from the session cookie, validates it and looks the
// session up. A missing, invalid or expired token, or a session that has
// been swept, gets a fresh session that lives only for this request. The
// request is never rejected: an anonymous browser is simply a session with
// no current user. Handlers that put state in the session call KeepSession,
// which registers it and sets the cookie, so anonymous traffic does not
// accumulate sessions.
func Sessions(tokens *TokenService, sessions *session.Manager, secure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	iss := &sessionIssuer{tokens: tokens, sessions: sessions, secure: secure, logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := lookup(r, tokens, sessions)
			if !ok {
				s = sessions.New()
			}

			ctx := WithSession(r.Context(), s)
			ctx = context.WithValue(ctx, issuerKey, iss)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeepSession registers the request's session and sets its cookie. It must
// be called before the response is written. A session that is already kept
// is left alone.
func KeepSession(w http.ResponseWriter, r *http.Request) error {
	s, ok := SessionFromContext(r.Context())
	iss, _ := r.Context().Value(issuerKey).(*sessionIssuer)
	if !ok || iss == nil {
		return errors.New("auth: request has no session")
	}
	if !iss.sessions.Keep(s) {
		return nil
	}

	token, err := iss.tokens.Generate(s.ID)
	if err != nil {
		iss.sessions.Delete(s.ID)
		return fmt.Errorf("auth: issuing session token: %w", err)
	}
	SetCookie(w, token, iss.tokens.TTL().Seconds(), iss.secure)
	iss.logger.Debug("session cookie issued", "session", s.ID)
	return nil
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the request's session.
// It returns (nil, false) when the Sessions middleware did not run.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok && s != nil
}

// SetCookie writes the session cookie. HttpOnly keeps it out of reach of
// page scripts.
func SetCookie(w http.ResponseWriter, token string, maxAgeSeconds float64, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAgeSeconds),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func lookup(r *http.Request, tokens *TokenService, sessions *session.Manager) (*session.Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	id, err := tokens.Validate(cookie.Value)
	if err != nil {
		return nil, false
	}
	return sessions.Get(id)
}
