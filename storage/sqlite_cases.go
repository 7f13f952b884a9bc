package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/borelli28/SIEM/core"

	"go.uber.org/zap"
)

// SQLiteCaseStorage persists investigation cases and their observables.
// Observables live in their own table so the (case_id, type, value) unique
// constraint and the delete cascade are enforced by the database rather
// than application code.
type SQLiteCaseStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteCaseStorage creates a case storage instance and ensures its tables.
func NewSQLiteCaseStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteCaseStorage, error) {
	s := &SQLiteCaseStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure case tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteCaseStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK(status IN ('open','in_progress','closed','hold')),
		severity TEXT NOT NULL CHECK(severity IN ('low','medium','high','critical')),
		category TEXT NOT NULL DEFAULT '',
		analyst_assigned TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cases_account_created ON cases(account_id, created_at);

	CREATE TABLE IF NOT EXISTS case_observables (
		case_id TEXT NOT NULL,
		observable_type TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(case_id, observable_type, value),
		FOREIGN KEY(case_id) REFERENCES cases(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_observables_case ON case_observables(case_id);
	`

	if _, err := s.sqlite.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create case tables: %w", err)
	}
	return nil
}

// CreateCase stores a new case along with any observables it carries.
func (s *SQLiteCaseStorage) CreateCase(ctx context.Context, c *core.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	tx, err := s.sqlite.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (id, account_id, title, description, status, severity,
		                   category, analyst_assigned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Title, c.Description, string(c.Status),
		string(c.Severity), c.Category, c.AnalystAssigned,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}

	for i := range c.Observables {
		o := &c.Observables[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO case_observables (case_id, observable_type, value, created_at)
			VALUES (?, ?, ?, ?)`,
			c.ID, string(o.Type), o.Value, o.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to create case observable: %w", err)
		}
	}

	return tx.Commit()
}

// GetCase retrieves a case by ID, observables included.
func (s *SQLiteCaseStorage) GetCase(ctx context.Context, id string) (*core.Case, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	row := s.sqlite.DB.QueryRowContext(ctx, `
		SELECT id, account_id, title, description, status, severity,
		       category, analyst_assigned, created_at, updated_at
		FROM cases WHERE id = ?`, id)

	c, err := scanCase(row)
	if err == sql.ErrNoRows {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	c.Observables, err = s.listObservables(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCases returns all cases for an account, newest first. Observables are
// loaded per case; case counts stay small enough that this beats carrying a
// join-decode path.
func (s *SQLiteCaseStorage) ListCases(ctx context.Context, accountID string) ([]core.Case, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT id, account_id, title, description, status, severity,
		       category, analyst_assigned, created_at, updated_at
		FROM cases WHERE account_id = ?
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []core.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cases {
		cases[i].Observables, err = s.listObservables(ctx, cases[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return cases, nil
}

// UpdateCase replaces the mutable fields of a case. Observables are managed
// through AddObservable and DeleteObservable, not here.
func (s *SQLiteCaseStorage) UpdateCase(ctx context.Context, c *core.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, `
		UPDATE cases SET title = ?, description = ?, status = ?, severity = ?,
		       category = ?, analyst_assigned = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.Description, string(c.Status), string(c.Severity),
		c.Category, c.AnalystAssigned,
		time.Now().UTC().Format(time.RFC3339Nano), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	return requireRow(res, ErrCaseNotFound)
}

// DeleteCase removes a case. Its observables go with it via the foreign key
// cascade.
func (s *SQLiteCaseStorage) DeleteCase(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	return requireRow(res, ErrCaseNotFound)
}

// AddObservable links an observable to a case. Returns ErrDuplicateObservable
// when the (case, type, value) triple already exists and ErrCaseNotFound when
// the case does not.
func (s *SQLiteCaseStorage) AddObservable(ctx context.Context, o *core.Observable) error {
	if err := o.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO case_observables (case_id, observable_type, value, created_at)
		VALUES (?, ?, ?, ?)`,
		o.CaseID, string(o.Type), o.Value, created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint") {
			return ErrDuplicateObservable
		}
		if strings.Contains(msg, "FOREIGN KEY constraint") {
			return ErrCaseNotFound
		}
		return fmt.Errorf("failed to add observable: %w", err)
	}

	s.touchCase(ctx, o.CaseID)
	return nil
}

// DeleteObservable unlinks an observable from a case.
func (s *SQLiteCaseStorage) DeleteObservable(ctx context.Context, caseID string, obsType core.ObservableType, value string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, `
		DELETE FROM case_observables
		WHERE case_id = ? AND observable_type = ? AND value = ?`,
		caseID, string(obsType), value)
	if err != nil {
		return fmt.Errorf("failed to delete observable: %w", err)
	}
	if err := requireRow(res, ErrObservableNotFound); err != nil {
		return err
	}

	s.touchCase(ctx, caseID)
	return nil
}

// ListObservablesByType returns the observables of a given type across all
// of an account's cases, newest first.
func (s *SQLiteCaseStorage) ListObservablesByType(ctx context.Context, accountID string, obsType core.ObservableType) ([]core.Observable, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT o.case_id, o.observable_type, o.value, o.created_at
		FROM case_observables o
		JOIN cases c ON c.id = o.case_id
		WHERE c.account_id = ? AND o.observable_type = ?
		ORDER BY o.created_at DESC`, accountID, string(obsType))
	if err != nil {
		return nil, fmt.Errorf("failed to list observables: %w", err)
	}
	defer rows.Close()

	return collectObservables(rows)
}

func (s *SQLiteCaseStorage) listObservables(ctx context.Context, caseID string) ([]core.Observable, error) {
	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT case_id, observable_type, value, created_at
		FROM case_observables WHERE case_id = ?
		ORDER BY created_at ASC, value ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case observables: %w", err)
	}
	defer rows.Close()

	return collectObservables(rows)
}

// touchCase bumps updated_at after an observable mutation. Failure here is
// logged, not surfaced; the mutation itself already committed.
func (s *SQLiteCaseStorage) touchCase(ctx context.Context, caseID string) {
	_, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE cases SET updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), caseID)
	if err != nil {
		s.logger.Warnw("failed to bump case updated_at", "case_id", caseID, "error", err)
	}
}

func scanCase(row rowScanner) (*core.Case, error) {
	var c core.Case
	var status, severity, createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.AccountID, &c.Title, &c.Description, &status,
		&severity, &c.Category, &c.AnalystAssigned, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Status = core.CaseStatus(status)
	c.Severity = core.Severity(severity)
	c.Observables = []core.Observable{}
	if c.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse case timestamp: %w", err)
	}
	if c.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse case timestamp: %w", err)
	}
	return &c, nil
}

func collectObservables(rows *sql.Rows) ([]core.Observable, error) {
	observables := []core.Observable{}
	for rows.Next() {
		var o core.Observable
		var obsType, createdAt string
		if err := rows.Scan(&o.CaseID, &obsType, &o.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan observable: %w", err)
		}
		o.Type = core.ObservableType(obsType)
		var err error
		if o.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse observable timestamp: %w", err)
		}
		observables = append(observables, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return observables, nil
}
