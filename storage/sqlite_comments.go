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

// SQLiteCommentStorage persists analyst comments on cases.
type SQLiteCommentStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteCommentStorage creates a comment storage instance and ensures its tables.
func NewSQLiteCommentStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteCommentStorage, error) {
	s := &SQLiteCommentStorage{sqlite: sqlite, logger: logger}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure comment tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteCommentStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS case_comments (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(case_id) REFERENCES cases(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_comments_case ON case_comments(case_id, created_at);
	`

	if _, err := s.sqlite.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create comment tables: %w", err)
	}
	return nil
}

// CreateComment stores a new comment on a case. Returns ErrCaseNotFound when
// the case does not exist.
func (s *SQLiteCommentStorage) CreateComment(ctx context.Context, c *core.Comment) error {
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	_, err := s.sqlite.DB.ExecContext(ctx, `
		INSERT INTO case_comments (id, case_id, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.CaseID, c.Text,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return ErrCaseNotFound
		}
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComment retrieves a comment by ID.
func (s *SQLiteCommentStorage) GetComment(ctx context.Context, id string) (*core.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	row := s.sqlite.DB.QueryRowContext(ctx, `
		SELECT id, case_id, text, created_at, updated_at
		FROM case_comments WHERE id = ?`, id)

	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// ListComments returns the comments on a case, newest first.
func (s *SQLiteCommentStorage) ListComments(ctx context.Context, caseID string) ([]core.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	rows, err := s.sqlite.DB.QueryContext(ctx, `
		SELECT id, case_id, text, created_at, updated_at
		FROM case_comments WHERE case_id = ?
		ORDER BY created_at DESC, id DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []core.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateComment replaces a comment's text and bumps updated_at.
func (s *SQLiteCommentStorage) UpdateComment(ctx context.Context, id, text string) error {
	if text == "" {
		return fmt.Errorf("comment cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx,
		"UPDATE case_comments SET text = ?, updated_at = ? WHERE id = ?",
		text, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return requireRow(res, ErrCommentNotFound)
}

// DeleteComment removes a comment.
func (s *SQLiteCommentStorage) DeleteComment(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, logQueryTimeout)
	defer cancel()

	res, err := s.sqlite.DB.ExecContext(ctx, "DELETE FROM case_comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return requireRow(res, ErrCommentNotFound)
}

func scanComment(row rowScanner) (*core.Comment, error) {
	var c core.Comment
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.CaseID, &c.Text, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if c.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse comment timestamp: %w", err)
	}
	if c.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse comment timestamp: %w", err)
	}
	return &c, nil
}
