package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
	"github.com/sakif/craftmarket/internal/repository"
)

var _ repository.BackupRepository = (*DB)(nil)

// Save inserts b, filling in ID, CreatedAt and Size.
func (db *DB) Save(ctx context.Context, b *model.Backup) error {
	if b.ID == "" {
		b.ID = xid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	// Stored as text, so one zone keeps ORDER BY created_at chronological.
	b.CreatedAt = b.CreatedAt.UTC()
	b.Size = int64(len(b.Data))

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO backups (id, label, created_by, data, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Label, b.CreatedBy, []byte(b.Data), b.Size, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving backup: %w", err)
	}
	return nil
}

// Get loads a backup including its data.
func (db *DB) Get(ctx context.Context, id string) (*model.Backup, error) {
	var (
		b    model.Backup
		data []byte
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, label, created_by, data, size, created_at
		 FROM backups
		 WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.Label, &b.CreatedBy, &data, &b.Size, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("backup", id)
		}
		return nil, fmt.Errorf("sqlite: getting backup %s: %w", id, err)
	}
	b.Data = data
	return &b, nil
}

// List returns backup metadata, newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Backup, error) {
	opts = opts.Clamp()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, label, created_by, size, created_at
		 FROM backups
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing backups: %w", err)
	}
	defer rows.Close()

	backups := make([]model.Backup, 0, opts.Limit)
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.Label, &b.CreatedBy, &b.Size, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning backup row: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating backups: %w", err)
	}
	return backups, nil
}

// Delete removes a backup.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting backup %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("backup", id)
	}
	return nil
}
