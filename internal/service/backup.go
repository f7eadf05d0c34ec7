// Package service holds business rules that sit between the HTTP handlers
// and storage.
//
//	Handler (HTTP) → BackupService (rules) → BackupRepository (archive)
//	                                      ↘ Source (backend export/import)
//
// Services take and return domain types and apperror values only, so they
// are tested with plain function calls and hand-written fakes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/format"
	"github.com/sakif/craftmarket/internal/model"
	"github.com/sakif/craftmarket/internal/repository"
)

const (
	MaxLabelLength   = 100
	DefaultListLimit = repository.DefaultListLimit
	MaxListLimit     = repository.MaxListLimit
)

// Source exports and imports the backend database. *backend.Client
// satisfies it.
type Source interface {
	GetBackup(ctx context.Context) (json.RawMessage, error)
	UploadBackup(ctx context.Context, blob json.RawMessage) error
}

// BackupService archives backend exports and restores them. Every
// operation requires an admin actor.
type BackupService struct {
	source Source
	repo   repository.BackupRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewBackupService creates a BackupService.
func NewBackupService(source Source, repo repository.BackupRepository, logger *slog.Logger) *BackupService {
	return &BackupService{
		source: source,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func requireAdmin(actor *model.User, action string) error {
	if actor == nil {
		return apperror.Unauthenticated(action)
	}
	if !actor.IsAdmin() {
		return apperror.Forbidden("only administrators can " + action)
	}
	return nil
}

// Snapshot downloads the current backend export and archives it. An empty
// label becomes "Backup <date>".
func (s *BackupService) Snapshot(ctx context.Context, actor *model.User, label string) (*model.Backup, error) {
	if err := requireAdmin(actor, "create backups"); err != nil {
		return nil, err
	}

	label = strings.TrimSpace(label)
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return nil, apperror.ValidationFailed("label",
			fmt.Sprintf("label must be %d characters or less", MaxLabelLength))
	}
	now := s.now()
	if label == "" {
		label = "Backup " + format.Date(now.Format(time.DateOnly))
	}

	blob, err := s.source.GetBackup(ctx)
	if err != nil {
		return nil, err
	}
	if !json.Valid(blob) {
		return nil, apperror.Network("get backup", errors.New("backend returned invalid JSON"))
	}

	b := &model.Backup{
		Label:     label,
		CreatedBy: actor.ID,
		CreatedAt: now,
		Data:      blob,
	}
	if err := s.repo.Save(ctx, b); err != nil {
		s.logger.Error("failed to archive backup",
			slog.String("label", label),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("archiving backup: %w", err)
	}

	s.logger.Info("backup archived",
		slog.String("id", b.ID),
		slog.String("by", actor.ID),
		slog.Int64("size", b.Size),
	)
	return b, nil
}

// List returns archived backups, newest first. limit is clamped to
// [1, MaxListLimit] and defaults to DefaultListLimit; a negative offset is 0.
func (s *BackupService) List(ctx context.Context, actor *model.User, limit, offset int) ([]model.Backup, error) {
	if err := requireAdmin(actor, "view backups"); err != nil {
		return nil, err
	}

	opts := repository.ListOptions{Limit: limit, Offset: offset}.Clamp()
	backups, err := s.repo.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list backups", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return backups, nil
}

// Get loads one backup including its data.
func (s *BackupService) Get(ctx context.Context, actor *model.User, id string) (*model.Backup, error) {
	if err := requireAdmin(actor, "download backups"); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "backup ID is required")
	}
	return s.repo.Get(ctx, id)
}

// Restore uploads an archived backup to the backend, replacing its data.
func (s *BackupService) Restore(ctx context.Context, actor *model.User, id string) (*model.Backup, error) {
	if err := requireAdmin(actor, "restore backups"); err != nil {
		return nil, err
	}
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := s.source.UploadBackup(ctx, b.Data); err != nil {
		s.logger.Error("failed to restore backup",
			slog.String("id", b.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Warn("backend restored from backup",
		slog.String("id", b.ID),
		slog.String("label", b.Label),
		slog.String("by", actor.ID),
	)
	return b, nil
}

// Delete removes an archived backup.
func (s *BackupService) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := requireAdmin(actor, "delete backups"); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "backup ID is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("backup deleted", slog.String("id", id), slog.String("by", actor.ID))
	return nil
}
