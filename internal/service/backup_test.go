package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
	"github.com/sakif/craftmarket/internal/repository"
)

// memRepo is an in-memory BackupRepository.
type memRepo struct {
	backups  map[string]model.Backup
	nextID   int
	lastOpts repository.ListOptions
	saveErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{backups: make(map[string]model.Backup)}
}

func (m *memRepo) Save(_ context.Context, b *model.Backup) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.nextID++
	b.ID = fmt.Sprintf("backup-%02d", m.nextID)
	b.Size = int64(len(b.Data))
	m.backups[b.ID] = *b
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*model.Backup, error) {
	b, ok := m.backups[id]
	if !ok {
		return nil, apperror.NotFound("backup", id)
	}
	return &b, nil
}

func (m *memRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Backup, error) {
	m.lastOpts = opts
	ids := make([]string, 0, len(m.backups))
	for id := range m.backups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	slices.Reverse(ids)

	out := []model.Backup{}
	for i, id := range ids {
		if i < opts.Offset || len(out) == opts.Limit {
			continue
		}
		b := m.backups[id]
		b.Data = nil
		out = append(out, b)
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.backups[id]; !ok {
		return apperror.NotFound("backup", id)
	}
	delete(m.backups, id)
	return nil
}

// fakeSource stands in for the backend export endpoints.
type fakeSource struct {
	blob      json.RawMessage
	getErr    error
	uploadErr error
	uploaded  []json.RawMessage
}

func (f *fakeSource) GetBackup(context.Context) (json.RawMessage, error) {
	return f.blob, f.getErr
}

func (f *fakeSource) UploadBackup(_ context.Context, blob json.RawMessage) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, blob)
	return nil
}

var (
	admin  = &model.User{ID: "root_1", Login: "root_1", UserType: model.RoleAdmin}
	seller = &model.User{ID: "ivanov", Login: "ivanov", UserType: model.RoleSeller}
)

func newTestService(t *testing.T) (*BackupService, *memRepo, *fakeSource) {
	t.Helper()
	repo := newMemRepo()
	src := &fakeSource{blob: json.RawMessage(`{"users":[{"login":"ivanov"}]}`)}
	svc := NewBackupService(src, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc, repo, src
}

func TestSnapshot_ArchivesBackendExport(t *testing.T) {
	svc, repo, _ := newTestService(t)

	b, err := svc.Snapshot(context.Background(), admin, "  before import  ")
	require.NoError(t, err)

	assert.Equal(t, "before import", b.Label)
	assert.Equal(t, "root_1", b.CreatedBy)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), b.CreatedAt)
	assert.Contains(t, repo.backups, b.ID)
	assert.JSONEq(t, `{"users":[{"login":"ivanov"}]}`, string(repo.backups[b.ID].Data))
}

func TestSnapshot_DefaultLabel(t *testing.T) {
	svc, _, _ := newTestService(t)

	b, err := svc.Snapshot(context.Background(), admin, "")
	require.NoError(t, err)
	assert.Equal(t, "Backup 15.06.2024", b.Label)
}

func TestSnapshot_Validation(t *testing.T) {
	svc, repo, src := newTestService(t)

	_, err := svc.Snapshot(context.Background(), admin, strings.Repeat("a", MaxLabelLength+1))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	src.blob = json.RawMessage(`{"truncated":`)
	_, err = svc.Snapshot(context.Background(), admin, "broken")
	assert.ErrorIs(t, err, apperror.ErrNetwork)
	assert.Empty(t, repo.backups)
}

func TestSnapshot_Errors(t *testing.T) {
	svc, repo, src := newTestService(t)

	src.getErr = apperror.Network("get backup", errors.New("connection refused"))
	_, err := svc.Snapshot(context.Background(), admin, "x")
	assert.ErrorIs(t, err, apperror.ErrNetwork)

	src.getErr = nil
	repo.saveErr = errors.New("disk full")
	_, err = svc.Snapshot(context.Background(), admin, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAdminOnly(t *testing.T) {
	svc, repo, src := newTestService(t)
	repo.backups["backup-01"] = model.Backup{ID: "backup-01", Data: json.RawMessage(`{}`)}

	ops := map[string]func(*model.User) error{
		"snapshot": func(u *model.User) error { _, err := svc.Snapshot(context.Background(), u, "x"); return err },
		"list":     func(u *model.User) error { _, err := svc.List(context.Background(), u, 0, 0); return err },
		"get":      func(u *model.User) error { _, err := svc.Get(context.Background(), u, "backup-01"); return err },
		"restore":  func(u *model.User) error { _, err := svc.Restore(context.Background(), u, "backup-01"); return err },
		"delete":   func(u *model.User) error { return svc.Delete(context.Background(), u, "backup-01") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(nil), apperror.ErrUnauthenticated)
			assert.ErrorIs(t, op(seller), apperror.ErrForbidden)
		})
	}
	assert.Len(t, repo.backups, 1)
	assert.Empty(t, src.uploaded)
}

func TestList_ClampsPagination(t *testing.T) {
	svc, repo, _ := newTestService(t)

	tests := []struct {
		limit, offset int
		want          repository.ListOptions
	}{
		{0, 0, repository.ListOptions{Limit: DefaultListLimit}},
		{-5, -10, repository.ListOptions{Limit: DefaultListLimit}},
		{500, 3, repository.ListOptions{Limit: MaxListLimit, Offset: 3}},
		{7, 14, repository.ListOptions{Limit: 7, Offset: 14}},
	}
	for _, tt := range tests {
		_, err := svc.List(context.Background(), admin, tt.limit, tt.offset)
		require.NoError(t, err)
		assert.Equal(t, tt.want, repo.lastOpts)
	}
}

func TestGet(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.Snapshot(context.Background(), admin, "x")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), admin, created.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Data)

	_, err = svc.Get(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Get(context.Background(), admin, "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRestore_UploadsArchivedData(t *testing.T) {
	svc, _, src := newTestService(t)
	created, err := svc.Snapshot(context.Background(), admin, "x")
	require.NoError(t, err)

	restored, err := svc.Restore(context.Background(), admin, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, restored.ID)
	require.Len(t, src.uploaded, 1)
	assert.JSONEq(t, `{"users":[{"login":"ivanov"}]}`, string(src.uploaded[0]))
}

func TestRestore_Errors(t *testing.T) {
	svc, _, src := newTestService(t)

	_, err := svc.Restore(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	created, err := svc.Snapshot(context.Background(), admin, "x")
	require.NoError(t, err)
	src.uploadErr = apperror.UpdateFailed("backup", "upload")
	_, err = svc.Restore(context.Background(), admin, created.ID)
	assert.ErrorIs(t, err, apperror.ErrUpdate)
}

func TestDelete(t *testing.T) {
	svc, repo, _ := newTestService(t)
	created, err := svc.Snapshot(context.Background(), admin, "x")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), admin, created.ID))
	assert.Empty(t, repo.backups)
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, created.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, ""), apperror.ErrValidation)
}
