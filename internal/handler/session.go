package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/craftmarket/internal/auth"
	"github.com/sakif/craftmarket/internal/model"
)

// SessionHandler signs users in and out and edits the signed-in profile.
type SessionHandler struct {
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	return &SessionHandler{logger: logger}
}

// sessionResponse describes the browser session. User is null when nobody
// is signed in.
type sessionResponse struct {
	User    *model.User `json:"user"`
	Loading bool        `json:"loading"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// HandleGet reports the current user.
//
// HTTP: GET /api/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		User:    sess.Store.CurrentUser(),
		Loading: sess.Store.Loading(),
	})
}

// HandleLogin signs in and keeps the session, which sets the cookie.
//
// HTTP: POST /api/session
// REQUEST BODY: {"login": "ivanov", "password": "..."}
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.Store.Login(r.Context(), req.Login, req.Password); err != nil {
		h.logger.Info("login failed", slog.String("login", req.Login), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if err := auth.KeepSession(w, r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.Store.CurrentUser()})
}

// HandleLogout signs out. The session and its cookie stay.
//
// HTTP: DELETE /api/session
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	sess.Store.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /api/register
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req model.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.Store.Register(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	if err := auth.KeepSession(w, r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{User: sess.Store.CurrentUser()})
}

// HandleUpdateProfile applies a partial profile edit to the signed-in user.
//
// HTTP: PATCH /api/session/profile
// REQUEST BODY: any subset of {"fullName", "age", "bio", "education", "image"}
func (h *SessionHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var upd model.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.Store.UpdateUserProfile(r.Context(), upd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.Store.CurrentUser()})
}
