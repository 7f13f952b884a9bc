package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/borelli28/SIEM/core"

	"go.uber.org/zap"
)

const logQueryTimeout = 5 * time.Second

// SQLiteLogStorage persists log records. Records are insert-only; the only
// mutation is retention-driven purging.
type SQLiteLogStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteLogStorage creates a log storage instance and ensures its tables.
func NewSQLiteLogStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteLogStorage, error) {
	s := &SQLiteLogStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure log tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteLogStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS logs (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		host_id TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		device_vendor TEXT NOT NULL DEFAULT '',
		device_product TEXT NOT NULL DEFAULT '',
		device_version TEXT NOT NULL DEFAULT '',
		signature_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT '' CHECK(severity IN ('','low','medium','high','critical')),
		extensions TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_account_created ON logs(account_id, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_logs_signature ON logs(account_id, signature_id);
	`

	if _, err := s.sqlite.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create log tables: %w", err)
	}
	return nil
}

// CreateLog stores a new log record.
func (s *SQLiteLogStorage) CreateLog(ctx context.Context, rec *core.LogRecord) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	extJSON, err := json.Marshal(rec.Extensions)
	if err != nil {
		return fmt.Errorf("failed to serialize log extensions: %w", err)
	}

	_, err = s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO logs (
			id, account_id, host_id, version, device_vendor, device_product,
			device_version, signature_id, name, severity, extensions, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.HostID, rec.Version, rec.DeviceVendor,
		rec.DeviceProduct, rec.DeviceVersion, rec.SignatureID, rec.Name,
		string(rec.Severity), string(extJSON), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create log record: %w", err)
	}

	return nil
}

// GetLog retrieves a log record by ID.
func (s *SQLiteLogStorage) GetLog(ctx context.Context, id string) (*core.LogRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	row := s.sqlite.DB.QueryRowContext(ctx, `
		SELECT id, account_id, host_id, version, device_vendor, device_product,
		       device_version, signature_id, name, severity, extensions, created_at
		FROM logs WHERE id = ?`, id)

	rec, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get log record: %w", err)
	}
	return rec, nil
}

// ListLogsRange returns a page of an account's log records within the given
// time window, ordered ascending by (created_at, id) so repeated scans over
// an unchanged store yield identical pages. Zero bounds leave the window
// open on that side.
func (s *SQLiteLogStorage) ListLogsRange(ctx context.Context, accountID string, start, end time.Time, offset, limit int) ([]core.LogRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	query := `
		SELECT id, account_id, host_id, version, device_vendor, device_product,
		       device_version, signature_id, name, severity, extensions, created_at
		FROM logs WHERE account_id = ?`
	args := []interface{}{accountID}

	if !start.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, start.UTC().Format(time.RFC3339Nano))
	}
	if !end.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, end.UTC().Format(time.RFC3339Nano))
	}

	query += " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.sqlite.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list log records: %w", err)
	}
	defer rows.Close()

	return collectLogs(rows)
}

// ListLogsBySignature returns an account's log records whose signature_id
// matches, ascending by (created_at, id). Used by alert enrichment.
func (s *SQLiteLogStorage) ListLogsBySignature(ctx context.Context, accountID, signatureID string, limit int) ([]core.LogRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT id, account_id, host_id, version, device_vendor, device_product,
		       device_version, signature_id, name, severity, extensions, created_at
		FROM logs WHERE account_id = ? AND signature_id = ?
		ORDER BY created_at ASC, id ASC LIMIT ?`,
		accountID, signatureID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs by signature: %w", err)
	}
	defer rows.Close()

	return collectLogs(rows)
}

// CountLogs returns the number of log records for an account.
func (s *SQLiteLogStorage) CountLogs(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	var count int64
	err := s.sqlite.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM logs WHERE account_id = ?", accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

// PurgeLogsBefore deletes log records older than cutoff, returning the
// number removed. Called by the retention loop.
func (s *SQLiteLogStorage) PurgeLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx,
		"DELETE FROM logs WHERE created_at < ?", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to purge log records: %w", err)
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Infow("purged expired log records", "count", purged, "cutoff", cutoff)
	}
	return purged, nil
}

// rowScanner lets scanLog work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLog(row rowScanner) (*core.LogRecord, error) {
	var rec core.LogRecord
	var severity, extJSON, createdAt string

	err := row.Scan(&rec.ID, &rec.AccountID, &rec.HostID, &rec.Version,
		&rec.DeviceVendor, &rec.DeviceProduct, &rec.DeviceVersion,
		&rec.SignatureID, &rec.Name, &severity, &extJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Severity = core.Severity(severity)
	if err := json.Unmarshal([]byte(extJSON), &rec.Extensions); err != nil {
		return nil, fmt.Errorf("failed to decode log extensions: %w", err)
	}
	rec.CreatedAt, err = parseStoredTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log timestamp: %w", err)
	}

	return &rec, nil
}

func collectLogs(rows *sql.Rows) ([]core.LogRecord, error) {
	var records []core.LogRecord
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// parseStoredTime parses timestamps as stored by this package.
func parseStoredTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		// Older rows may carry second precision only.
		t, err = time.Parse(time.RFC3339, value)
	}
	return t.UTC(), err
}
