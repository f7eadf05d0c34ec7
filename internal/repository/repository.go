// Package repository defines where archived backups are kept.
//
// The service layer depends on BackupRepository only, so main.go picks the
// implementation: repository/sqlite for a single-node deployment, or
// repository/s3 for any S3-compatible object store.
package repository

import (
	"context"

	"github.com/sakif/craftmarket/internal/model"
)

// ListOptions pages through a listing. Implementations clamp Limit to
// [1, 100] and default it to 20.
type ListOptions struct {
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Clamp returns opts with Limit and Offset forced into range.
func (o ListOptions) Clamp() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// BackupRepository stores backup snapshots.
//
// Save assigns the ID and CreatedAt when they are empty. List returns
// metadata only, newest first, with Data left nil. Get and Delete return
// apperror.ErrNotFound for an unknown id.
type BackupRepository interface {
	Save(ctx context.Context, b *model.Backup) error
	Get(ctx context.Context, id string) (*model.Backup, error)
	List(ctx context.Context, opts ListOptions) ([]model.Backup, error)
	Delete(ctx context.Context, id string) error
}
