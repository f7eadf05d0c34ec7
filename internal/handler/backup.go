package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
	"github.com/sakif/craftmarket/internal/service"
	"github.com/sakif/craftmarket/internal/session"
	"github.com/sakif/craftmarket/internal/store"
)

// BackupHandler exposes the backup archive to admins.
type BackupHandler struct {
	backups *service.BackupService
	logger  *slog.Logger
}

// NewBackupHandler creates a BackupHandler.
func NewBackupHandler(backups *service.BackupService, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: backups, logger: logger}
}

type snapshotRequest struct {
	Label string `json:"label"`
}

// HandleList returns archived backups without their data.
//
// HTTP: GET /api/admin/backups?limit=20&offset=0
func (h *BackupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	backups, err := h.backups.List(r.Context(), sess.Store.CurrentUser(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// HandleSnapshot archives the backend's current data.
//
// HTTP: POST /api/admin/backups
// REQUEST BODY: {"label": "before price update"} (optional)
func (h *BackupHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req snapshotRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	b, err := h.backups.Snapshot(r.Context(), sess.Store.CurrentUser(), req.Label)
	if err != nil {
		notify(sess, store.KindError, "Backup failed", apperror.Message(err, "could not create the backup"))
		writeError(w, err)
		return
	}
	notify(sess, store.KindSuccess, "Backup created", fmt.Sprintf("%q saved (%d bytes)", b.Label, b.Size))
	writeJSON(w, http.StatusCreated, withoutData(b))
}

// HandleGet downloads one backup including its data.
//
// HTTP: GET /api/admin/backups/{id}
func (h *BackupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	b, err := h.backups.Get(r.Context(), sess.Store.CurrentUser(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="backup-%s.json"`, b.ID))
	writeJSON(w, http.StatusOK, b)
}

// HandleRestore uploads an archived backup to the backend.
//
// HTTP: POST /api/admin/backups/{id}/restore
func (h *BackupHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	b, err := h.backups.Restore(r.Context(), sess.Store.CurrentUser(), chi.URLParam(r, "id"))
	if err != nil {
		notify(sess, store.KindError, "Restore failed", apperror.Message(err, "could not restore the backup"))
		writeError(w, err)
		return
	}
	notify(sess, store.KindSuccess, "Backup restored", fmt.Sprintf("Data restored from %q", b.Label))
	writeJSON(w, http.StatusOK, withoutData(b))
}

// HandleDelete removes an archived backup.
//
// HTTP: DELETE /api/admin/backups/{id}
func (h *BackupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	if err := h.backups.Delete(r.Context(), sess.Store.CurrentUser(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func withoutData(b *model.Backup) model.Backup {
	out := *b
	out.Data = nil
	return out
}

func notify(sess *session.Session, kind store.Kind, title, message string) {
	sess.Feed.Notify(store.Notification{Kind: kind, Title: title, Message: message, At: time.Now()})
}
