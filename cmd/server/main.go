// Command server runs the craftmarket gateway.
//
// Configuration comes from the environment (see internal/config); a .env
// file in the working directory is loaded first when present.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/craftmarket/internal/backend"
	"github.com/sakif/craftmarket/internal/config"
	"github.com/sakif/craftmarket/internal/repository"
	"github.com/sakif/craftmarket/internal/repository/s3store"
	"github.com/sakif/craftmarket/internal/repository/sqlite"
	"github.com/sakif/craftmarket/internal/server"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run serves until the server shuts down. Deferred cleanup happens here so
// it still runs when main exits non-zero.
func run(cfg config.Config, logger *slog.Logger) error {
	backups, closeBackups, err := openBackupStore(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("opening backup store: %w", err)
	}
	defer closeBackups()

	api := backend.New(backend.Config{
		BaseURL:           cfg.BackendURL,
		Timeout:           cfg.BackendTimeout,
		RequestsPerSecond: cfg.BackendRPS,
		Burst:             cfg.BackendBurst,
		LookupConcurrency: cfg.LookupConcurrency,
	}, logger)

	srv, err := server.New(cfg, api, backups, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start()
}

// newLogger writes text in development and JSON elsewhere.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	if cfg.IsDevelopment() {
		level = min(level, slog.LevelDebug)
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func openBackupStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.BackupRepository, func(), error) {
	if cfg.BackupStore == config.BackupStoreS3 {
		repo, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          cfg.S3Prefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("backups stored in S3", slog.String("location", repo.String()))
		return repo, func() {}, nil
	}

	// SQLite creates the file but not its directory.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("backups stored in SQLite", slog.String("path", cfg.DBPath))
	return db, func() { db.Close() }, nil
}
