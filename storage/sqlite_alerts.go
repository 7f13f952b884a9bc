package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/borelli28/SIEM/core"

	"go.uber.org/zap"
)

// SQLiteAlertStorage persists alerts.
type SQLiteAlertStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAlertStorage creates an alert storage instance and ensures its tables.
func NewSQLiteAlertStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteAlertStorage, error) {
	s := &SQLiteAlertStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure alert tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteAlertStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		severity TEXT NOT NULL CHECK(severity IN ('low','medium','high','critical')),
		message TEXT NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		case_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_account_created ON alerts(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_case ON alerts(case_id);
	`

	if _, err := s.sqlite.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create alert tables: %w", err)
	}
	return nil
}

// CreateAlert stores a new alert.
func (s *SQLiteAlertStorage) CreateAlert(ctx context.Context, alert *core.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	_, err := s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO alerts (id, account_id, rule_id, severity, message, acknowledged, case_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.AccountID, alert.RuleID, string(alert.Severity),
		alert.Message, alert.Acknowledged, alert.CaseID,
		alert.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetAlert retrieves an alert by ID.
func (s *SQLiteAlertStorage) GetAlert(ctx context.Context, id string) (*core.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	row := s.sqlite.DB.QueryRowContext(ctx, `
		SELECT id, account_id, rule_id, severity, message, acknowledged, case_id, created_at
		FROM alerts WHERE id = ?`, id)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns all alerts for an account, newest first.
func (s *SQLiteAlertStorage) ListAlerts(ctx context.Context, accountID string) ([]core.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT id, account_id, rule_id, severity, message, acknowledged, case_id, created_at
		FROM alerts WHERE account_id = ?
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []core.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

// AcknowledgeAlert marks an alert as acknowledged.
func (s *SQLiteAlertStorage) AcknowledgeAlert(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE alerts SET acknowledged = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return requireRow(res, ErrAlertNotFound)
}

// SetAlertCase records the case an alert has been attached to.
func (s *SQLiteAlertStorage) SetAlertCase(ctx context.Context, alertID, caseID string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE alerts SET case_id = ? WHERE id = ?", caseID, alertID)
	if err != nil {
		return fmt.Errorf("failed to set alert case: %w", err)
	}
	return requireRow(res, ErrAlertNotFound)
}

// ClearAlertCase detaches an alert from its case.
func (s *SQLiteAlertStorage) ClearAlertCase(ctx context.Context, alertID string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE alerts SET case_id = '' WHERE id = ?", alertID)
	if err != nil {
		return fmt.Errorf("failed to clear alert case: %w", err)
	}
	return requireRow(res, ErrAlertNotFound)
}

// ClearCaseFromAlerts detaches every alert referencing a case. Called when
// the case itself is deleted.
func (s *SQLiteAlertStorage) ClearCaseFromAlerts(ctx context.Context, caseID string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	_, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE alerts SET case_id = '' WHERE case_id = ?", caseID)
	if err != nil {
		return fmt.Errorf("failed to clear case from alerts: %w", err)
	}
	return nil
}

// DeleteAlert removes an alert.
func (s *SQLiteAlertStorage) DeleteAlert(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return requireRow(res, ErrAlertNotFound)
}

func scanAlert(row rowScanner) (*core.Alert, error) {
	var alert core.Alert
	var severity, createdAt string

	err := row.Scan(&alert.ID, &alert.AccountID, &alert.RuleID, &severity,
		&alert.Message, &alert.Acknowledged, &alert.CaseID, &createdAt)
	if err != nil {
		return nil, err
	}

	alert.Severity = core.Severity(severity)
	alert.CreatedAt, err = parseStoredTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse alert timestamp: %w", err)
	}
	return &alert, nil
}

// requireRow converts a zero-row mutation into the given sentinel error.
func requireRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
