package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CaseStatus represents the current state of an investigation case.
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "open"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusClosed     CaseStatus = "closed"
	CaseStatusHold       CaseStatus = "hold"
)

// IsValid checks if the case status is valid.
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusOpen, CaseStatusInProgress, CaseStatusClosed, CaseStatusHold:
		return true
	}
	return false
}

// ObservableType classifies a piece of evidence attached to a case.
type ObservableType string

const (
	ObservableTypeIP     ObservableType = "ip"
	ObservableTypeDomain ObservableType = "domain"
	ObservableTypeHash   ObservableType = "hash"
	ObservableTypeURL    ObservableType = "url"
	ObservableTypeEmail  ObservableType = "email"
	// ObservableTypeAlert and ObservableTypeLog carry JSON snapshots of the
	// referenced entity in Value (AlertSnapshot / LogSnapshot).
	ObservableTypeAlert ObservableType = "alert"
	ObservableTypeLog   ObservableType = "log"
)

// IsValid checks if the observable type is valid.
func (t ObservableType) IsValid() bool {
	switch t {
	case ObservableTypeIP, ObservableTypeDomain, ObservableTypeHash,
		ObservableTypeURL, ObservableTypeEmail, ObservableTypeAlert, ObservableTypeLog:
		return true
	}
	return false
}

// Observable is a typed piece of evidence attached to a case. The triple
// (case_id, observable_type, value) is unique: linking the same evidence to
// the same case twice leaves a single row.
type Observable struct {
	CaseID    string         `json:"case_id"`
	Type      ObservableType `json:"observable_type"`
	Value     string         `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate performs validation on the observable.
func (o *Observable) Validate() error {
	if o.CaseID == "" {
		return fmt.Errorf("observable case ID is required")
	}
	if !o.Type.IsValid() {
		return fmt.Errorf("invalid observable type: %s", o.Type)
	}
	if o.Value == "" {
		return fmt.Errorf("observable value is required")
	}
	return nil
}

// Comment is an analyst note on a case. Comments are append-only apart from
// text edits and deletion.
type Comment struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewComment creates a comment on a case.
func NewComment(caseID, text string) *Comment {
	now := time.Now().UTC()
	return &Comment{
		ID:        uuid.New().String(),
		CaseID:    caseID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate performs validation on the comment.
func (c *Comment) Validate() error {
	if c.CaseID == "" {
		return fmt.Errorf("comment case ID is required")
	}
	if c.Text == "" {
		return fmt.Errorf("comment cannot be empty")
	}
	return nil
}

// Case is a security investigation owning an ordered set of observables
// and comments.
type Case struct {
	ID              string       `json:"id"`
	AccountID       string       `json:"account_id" validate:"required"`
	Title           string       `json:"title" validate:"required,max=200"`
	Description     string       `json:"description" validate:"max=2000"`
	Status          CaseStatus   `json:"status"`
	Severity        Severity     `json:"severity"`
	Category        string       `json:"category"`
	AnalystAssigned string       `json:"analyst_assigned" validate:"required"`
	Observables     []Observable `json:"observables"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewCase creates a case with the default title, category, and status for
// a fresh investigation.
func NewCase(accountID string) *Case {
	now := time.Now().UTC()
	return &Case{
		ID:              uuid.New().String(),
		AccountID:       accountID,
		Title:           "New Investigation",
		Description:     "New security investigation case",
		Status:          CaseStatusOpen,
		Severity:        SeverityLow,
		Category:        "Security Investigation",
		AnalystAssigned: "Unassigned",
		Observables:     []Observable{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate performs validation on the case.
func (c *Case) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("case account ID is required")
	}
	if c.Title == "" {
		return fmt.Errorf("case title is required")
	}
	if len(c.Title) > 200 {
		return fmt.Errorf("case title too long (max 200 characters)")
	}
	if len(c.Description) > 2000 {
		return fmt.Errorf("case description too long (max 2000 characters)")
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid case status: %s", c.Status)
	}
	if !c.Severity.IsValid() {
		return fmt.Errorf("invalid case severity: %s", c.Severity)
	}
	if c.AnalystAssigned == "" {
		return fmt.Errorf("analyst must be assigned")
	}
	return nil
}
