package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Alert is raised when a log record matches an enabled rule. Alerts are
// mutable only through acknowledgement, case linkage, and deletion.
type Alert struct {
	ID           string   `json:"id"`
	AccountID    string   `json:"account_id"`
	RuleID       string   `json:"rule_id"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Acknowledged bool     `json:"acknowledged"`
	// CaseID is set when the alert has been snapshotted into a case as an
	// observable, and cleared again when that observable is unlinked.
	CaseID    string    `json:"case_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAlert creates an alert for a rule match against a log record.
func NewAlert(rule *Rule, log *LogRecord) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		AccountID: rule.AccountID,
		RuleID:    rule.ID,
		Severity:  rule.Severity,
		Message:   fmt.Sprintf("Alert triggered: %s - %s", rule.Name, rule.Description),
		CreatedAt: time.Now().UTC(),
	}
}

// Validate performs validation on the alert.
func (a *Alert) Validate() error {
	if a.AccountID == "" {
		return fmt.Errorf("alert account ID is required")
	}
	if a.RuleID == "" {
		return fmt.Errorf("alert rule ID is required")
	}
	if !a.Severity.IsValid() {
		return fmt.Errorf("invalid alert severity: %s", a.Severity)
	}
	return nil
}

// AlertSnapshot is the JSON payload stored as an alert-type observable when
// an alert is pulled into a case.
type AlertSnapshot struct {
	AlertID   string    `json:"alert_id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot captures the alert fields a case observable preserves.
func (a *Alert) Snapshot() AlertSnapshot {
	return AlertSnapshot{
		AlertID:   a.ID,
		Message:   a.Message,
		Severity:  a.Severity,
		CreatedAt: a.CreatedAt,
	}
}

// LogSnapshot is the JSON payload stored as a log-type observable when a
// log record is attached to a case as an event.
type LogSnapshot struct {
	LogID     string    `json:"log_id"`
	Name      string    `json:"name,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotLog captures the log record fields a case observable preserves.
func SnapshotLog(l *LogRecord) LogSnapshot {
	return LogSnapshot{
		LogID:     l.ID,
		Name:      l.Name,
		Severity:  l.Severity,
		CreatedAt: l.CreatedAt,
	}
}
