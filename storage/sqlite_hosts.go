package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/borelli28/SIEM/core"

	"go.uber.org/zap"
)

// SQLiteHostStorage persists monitored hosts.
type SQLiteHostStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteHostStorage creates a host storage instance and ensures its tables.
func NewSQLiteHostStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteHostStorage, error) {
	s := &SQLiteHostStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure host tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteHostStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		hostname TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hosts_account ON hosts(account_id);
	`

	if _, err := s.sqlite.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create host tables: %w", err)
	}
	return nil
}

// CreateHost stores a new host.
func (s *SQLiteHostStorage) CreateHost(ctx context.Context, h *core.Host) error {
	if err := h.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	_, err := s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO hosts (id, account_id, hostname, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.AccountID, h.Hostname, h.IPAddress,
		h.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create host: %w", err)
	}
	return nil
}

// GetHost retrieves a host by ID.
func (s *SQLiteHostStorage) GetHost(ctx context.Context, id string) (*core.Host, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	row := s.sqlite.DB.QueryRowContext(ctx, `
		SELECT id, account_id, hostname, ip_address, created_at
		FROM hosts WHERE id = ?`, id)

	h, err := scanHost(row)
	if err == sql.ErrNoRows {
		return nil, ErrHostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return h, nil
}

// ListHosts returns all hosts for an account, newest first.
func (s *SQLiteHostStorage) ListHosts(ctx context.Context, accountID string) ([]core.Host, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT id, account_id, hostname, ip_address, created_at
		FROM hosts WHERE account_id = ?
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []core.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hosts, nil
}

// UpdateHost replaces a host's hostname and IP address.
func (s *SQLiteHostStorage) UpdateHost(ctx context.Context, h *core.Host) error {
	if err := h.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE hosts SET hostname = ?, ip_address = ? WHERE id = ?",
		h.Hostname, h.IPAddress, h.ID)
	if err != nil {
		return fmt.Errorf("failed to update host: %w", err)
	}
	return requireRow(res, ErrHostNotFound)
}

// DeleteHost removes a host.
func (s *SQLiteHostStorage) DeleteHost(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, "DELETE FROM hosts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete host: %w", err)
	}
	return requireRow(res, ErrHostNotFound)
}

func scanHost(row rowScanner) (*core.Host, error) {
	var h core.Host
	var createdAt string

	err := row.Scan(&h.ID, &h.AccountID, &h.Hostname, &h.IPAddress, &createdAt)
	if err != nil {
		return nil, err
	}

	if h.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse host timestamp: %w", err)
	}
	return &h, nil
}
