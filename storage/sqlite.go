// Package storage persists the SIEM domain model in SQLite. Every entity
// gets its own storage type over a shared connection pool; all cross-entity
// queries are scoped by account_id.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the SQLite database connection used by all storage types.
// WAL mode allows concurrent readers while the single writer connection
// serializes mutations, which is what keeps concurrent edits to the same
// case from losing updates.
type SQLite struct {
	DB     *sql.DB
	Path   string
	Logger *zap.SugaredLogger
}

// NewSQLite opens (creating if necessary) the SQLite database at dbPath and
// configures it for service use: WAL journal, enforced foreign keys, and a
// busy timeout so writers queue instead of failing immediately.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// WAL supports many readers plus one writer; a single writer connection
	// avoids SQLITE_BUSY on concurrent mutations.
	db.SetMaxOpenConns(1)

	if err := configureConnection(db, dbPath); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infow("SQLite database ready", "path", dbPath)

	return &SQLite{
		DB:     db,
		Path:   dbPath,
		Logger: logger,
	}, nil
}

// configureConnection applies the pragmas every connection needs.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite disables foreign keys by default; the case -> observable and
	// case -> comment cascades depend on them.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got %d)", fkEnabled)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.DB.Close()
}
