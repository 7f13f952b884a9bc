package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rule is an alerting rule. Condition holds a search query expression that
// is evaluated against every ingested log record; a match raises an Alert
// with the rule's severity.
type Rule struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Condition   string    `json:"condition" validate:"required"`
	Severity    Severity  `json:"severity"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewRule creates an enabled rule for the given account.
func NewRule(accountID, name, description, condition string, severity Severity) *Rule {
	now := time.Now().UTC()
	return &Rule{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Name:        name,
		Description: description,
		Condition:   condition,
		Severity:    severity,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate performs validation on the rule. Condition syntax is checked
// separately with the search parser before a rule is stored.
func (r *Rule) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("rule account ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Name) > 200 {
		return fmt.Errorf("rule name too long (max 200 characters)")
	}
	if r.Condition == "" {
		return fmt.Errorf("rule condition is required")
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("invalid rule severity: %s", r.Severity)
	}
	return nil
}
