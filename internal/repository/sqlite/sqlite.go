// Package sqlite implements repository.BackupRepository on an embedded
// SQLite database.
//
// WHY SQLITE FOR THE ARCHIVE?
// The gateway owns no marketplace data; the backend does. The only thing it
// persists is the backup archive: a handful of large JSON blobs written when
// an admin asks for a snapshot. An embedded database file next to the binary
// is enough for that, and needs no server to run beside the gateway.
// Deployments with several gateway replicas switch to the S3 store instead.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds and
// cross-compiles without a C toolchain (mattn/go-sqlite3 needs CGo).
//
// DATABASE/SQL IN THIS PACKAGE:
//   - sql.DB is a connection pool, not a single connection. With ":memory:"
//     every connection would get its own empty database, so New pins the
//     pool to one connection.
//   - Writes use ExecContext, single reads QueryRowContext, lists
//     QueryContext; sql.Rows must always be closed.
//   - sql.ErrNoRows is turned into apperror.NotFound at this layer so
//     callers never import database/sql.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The package's init registers a database/sql driver named "sqlite".
	// Nothing else from it is used directly.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements
// repository.BackupRepository.
//
// Wrapping the pool gives the repository methods a receiver and keeps the
// lifecycle in one place: New opens and migrates, Close releases.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, verifies the connection and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection, so the pool must not
	// open a second one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open is lazy; Ping surfaces a bad path or permissions now.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a snapshot is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			id         TEXT PRIMARY KEY,
			label      TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			data       BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_backups_created_at ON backups(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating backups table: %w", err)
	}

	if err := db.addColumnIfNotExists("backups", "size",
		"INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("adding size to backups: %w", err)
	}
	return nil
}

// addColumnIfNotExists adds a column only when pragma_table_info does not
// already list it, so ALTER TABLE migrations can run on every start.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
