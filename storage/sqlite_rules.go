package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/borelli28/SIEM/core"

	"go.uber.org/zap"
)

// SQLiteRuleStorage persists detection rules.
type SQLiteRuleStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteRuleStorage creates a rule storage instance and ensures its tables.
func NewSQLiteRuleStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteRuleStorage, error) {
	s := &SQLiteRuleStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure rule tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteRuleStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		condition TEXT NOT NULL,
		severity TEXT NOT NULL CHECK(severity IN ('low','medium','high','critical')),
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rules_account ON rules(account_id, enabled);
	`

	if _, err := s.sqlite.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create rule tables: %w", err)
	}
	return nil
}

// CreateRule stores a new detection rule.
func (s *SQLiteRuleStorage) CreateRule(ctx context.Context, r *core.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	_, err := s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO rules (id, account_id, name, description, condition, severity,
		                   enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AccountID, r.Name, r.Description, r.Condition,
		string(r.Severity), r.Enabled,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteRuleStorage) GetRule(ctx context.Context, id string) (*core.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	row := s.sqlite.DB.QueryRowContext(ctx, `
		SELECT id, account_id, name, description, condition, severity,
		       enabled, created_at, updated_at
		FROM rules WHERE id = ?`, id)

	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

// ListRules returns all rules for an account, newest first.
func (s *SQLiteRuleStorage) ListRules(ctx context.Context, accountID string) ([]core.Rule, error) {
	return s.listRules(ctx, `
		SELECT id, account_id, name, description, condition, severity,
		       enabled, created_at, updated_at
		FROM rules WHERE account_id = ?
		ORDER BY created_at DESC, id DESC`, accountID)
}

// ListEnabledRules returns an account's enabled rules. The rule engine
// evaluates these against each ingested record.
func (s *SQLiteRuleStorage) ListEnabledRules(ctx context.Context, accountID string) ([]core.Rule, error) {
	return s.listRules(ctx, `
		SELECT id, account_id, name, description, condition, severity,
		       enabled, created_at, updated_at
		FROM rules WHERE account_id = ? AND enabled = 1
		ORDER BY created_at ASC, id ASC`, accountID)
}

func (s *SQLiteRuleStorage) listRules(ctx context.Context, query, accountID string) ([]core.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []core.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// UpdateRule replaces the mutable fields of a rule.
func (s *SQLiteRuleStorage) UpdateRule(ctx context.Context, r *core.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, `
		UPDATE rules SET name = ?, description = ?, condition = ?, severity = ?,
		       enabled = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Description, r.Condition, string(r.Severity), r.Enabled,
		time.Now().UTC().Format(time.RFC3339Nano), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRow(res, ErrRuleNotFound)
}

// DeleteRule removes a rule.
func (s *SQLiteRuleStorage) DeleteRule(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRow(res, ErrRuleNotFound)
}

func scanRule(row rowScanner) (*core.Rule, error) {
	var r core.Rule
	var severity, createdAt, updatedAt string

	err := row.Scan(&r.ID, &r.AccountID, &r.Name, &r.Description, &r.Condition,
		&severity, &r.Enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Severity = core.Severity(severity)
	if r.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse rule timestamp: %w", err)
	}
	if r.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse rule timestamp: %w", err)
	}
	return &r, nil
}
