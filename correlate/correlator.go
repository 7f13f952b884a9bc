// Package correlate ties alerts, logs, and cases together: it promotes
// alerts to investigation cases and manages the observable links between
// cases and the evidence they track.
package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/metrics"
	"github.com/borelli28/SIEM/storage"

	"go.uber.org/zap"
)

// CaseStore is the slice of case storage the correlator needs.
type CaseStore interface {
	CreateCase(ctx context.Context, c *core.Case) error
	GetCase(ctx context.Context, id string) (*core.Case, error)
	AddObservable(ctx context.Context, o *core.Observable) error
	DeleteObservable(ctx context.Context, caseID string, obsType core.ObservableType, value string) error
	ListObservablesByType(ctx context.Context, accountID string, obsType core.ObservableType) ([]core.Observable, error)
}

// AlertStore is the slice of alert storage the correlator needs.
type AlertStore interface {
	GetAlert(ctx context.Context, id string) (*core.Alert, error)
	SetAlertCase(ctx context.Context, alertID, caseID string) error
	ClearAlertCase(ctx context.Context, alertID string) error
}

// LogStore is the slice of log storage the correlator needs.
type LogStore interface {
	ListLogsBySignature(ctx context.Context, accountID, signatureID string, limit int) ([]core.LogRecord, error)
}

// Correlator builds and maintains the alert -> case -> observable graph.
type Correlator struct {
	cases  CaseStore
	alerts AlertStore
	logs   LogStore
	logger *zap.SugaredLogger
}

// NewCorrelator creates a correlator over the given stores.
func NewCorrelator(cases CaseStore, alerts AlertStore, logs LogStore, logger *zap.SugaredLogger) *Correlator {
	return &Correlator{
		cases:  cases,
		alerts: alerts,
		logs:   logs,
		logger: logger,
	}
}

// LinkObservable attaches an observable to a case. Linking an observable
// that is already on the case is a no-op, not an error: re-submitting the
// same evidence must never fail or duplicate it. Alert-type observables also
// stamp the owning case onto the alert itself.
func (c *Correlator) LinkObservable(ctx context.Context, o *core.Observable) error {
	if err := o.Validate(); err != nil {
		return err
	}

	err := c.cases.AddObservable(ctx, o)
	if errors.Is(err, storage.ErrDuplicateObservable) {
		c.logger.Debugw("observable already linked",
			"case_id", o.CaseID, "type", o.Type)
		return nil
	}
	if err != nil {
		return err
	}

	metrics.ObservablesLinked.WithLabelValues(string(o.Type)).Inc()

	if o.Type == core.ObservableTypeAlert {
		if alertID := alertIDFromSnapshot(o.Value); alertID != "" {
			if err := c.alerts.SetAlertCase(ctx, alertID, o.CaseID); err != nil {
				c.logger.Warnw("failed to stamp case onto alert",
					"alert_id", alertID, "case_id", o.CaseID, "error", err)
			}
		}
	}

	return nil
}

// UnlinkObservable removes an observable from a case. Alert-type observables
// also clear the case reference on the alert.
func (c *Correlator) UnlinkObservable(ctx context.Context, caseID string, obsType core.ObservableType, value string) error {
	if err := c.cases.DeleteObservable(ctx, caseID, obsType, value); err != nil {
		return err
	}

	if obsType == core.ObservableTypeAlert {
		if alertID := alertIDFromSnapshot(value); alertID != "" {
			if err := c.alerts.ClearAlertCase(ctx, alertID); err != nil {
				c.logger.Warnw("failed to clear case from alert",
					"alert_id", alertID, "error", err)
			}
		}
	}

	return nil
}

// CreateCaseFromAlert promotes an alert into a fresh investigation case. The
// case carries the alert's severity and an alert-snapshot observable; when a
// log record matching the alert's rule exists, the oldest such record is
// attached as a log-snapshot observable too. Missing log evidence does not
// fail case creation.
func (c *Correlator) CreateCaseFromAlert(ctx context.Context, alertID string) (*core.Case, error) {
	alert, err := c.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	newCase := core.NewCase(alert.AccountID)
	newCase.Severity = alert.Severity

	if err := c.cases.CreateCase(ctx, newCase); err != nil {
		return nil, fmt.Errorf("failed to create case from alert: %w", err)
	}
	metrics.CasesCreated.Inc()

	snapshot, err := json.Marshal(alert.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert snapshot: %w", err)
	}

	if err := c.LinkObservable(ctx, &core.Observable{
		CaseID: newCase.ID,
		Type:   core.ObservableTypeAlert,
		Value:  string(snapshot),
	}); err != nil {
		return nil, err
	}

	c.attachTriggeringLog(ctx, alert, newCase.ID)

	return c.cases.GetCase(ctx, newCase.ID)
}

// attachTriggeringLog links the first log record whose signature matches the
// alert's rule. Best effort: the case is already valid without it.
func (c *Correlator) attachTriggeringLog(ctx context.Context, alert *core.Alert, caseID string) {
	logs, err := c.logs.ListLogsBySignature(ctx, alert.AccountID, alert.RuleID, 1)
	if err != nil {
		c.logger.Warnw("failed to look up triggering log",
			"alert_id", alert.ID, "rule_id", alert.RuleID, "error", err)
		return
	}
	if len(logs) == 0 {
		return
	}

	snapshot, err := json.Marshal(core.SnapshotLog(&logs[0]))
	if err != nil {
		c.logger.Warnw("failed to encode log snapshot",
			"log_id", logs[0].ID, "error", err)
		return
	}

	if err := c.LinkObservable(ctx, &core.Observable{
		CaseID: caseID,
		Type:   core.ObservableTypeLog,
		Value:  string(snapshot),
	}); err != nil {
		c.logger.Warnw("failed to link triggering log",
			"log_id", logs[0].ID, "case_id", caseID, "error", err)
	}
}

// CaseLogIDs returns the IDs of the log records attached to a case through
// log-snapshot observables.
func (c *Correlator) CaseLogIDs(ctx context.Context, caseID string) ([]string, error) {
	cs, err := c.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for i := range cs.Observables {
		o := &cs.Observables[i]
		if o.Type != core.ObservableTypeLog {
			continue
		}
		var snap core.LogSnapshot
		if err := json.Unmarshal([]byte(o.Value), &snap); err != nil {
			c.logger.Warnw("malformed log snapshot on case",
				"case_id", caseID, "error", err)
			continue
		}
		ids = append(ids, snap.LogID)
	}
	return ids, nil
}

// AccountLogIDs returns the set of log record IDs referenced by any
// log-snapshot observable across an account's cases. The console uses this
// to mark logs that are already part of some investigation.
func (c *Correlator) AccountLogIDs(ctx context.Context, accountID string) ([]string, error) {
	observables, err := c.cases.ListObservablesByType(ctx, accountID, core.ObservableTypeLog)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	ids := []string{}
	for i := range observables {
		var snap core.LogSnapshot
		if err := json.Unmarshal([]byte(observables[i].Value), &snap); err != nil {
			c.logger.Warnw("malformed log snapshot on case",
				"case_id", observables[i].CaseID, "error", err)
			continue
		}
		if snap.LogID == "" || seen[snap.LogID] {
			continue
		}
		seen[snap.LogID] = true
		ids = append(ids, snap.LogID)
	}
	return ids, nil
}

// alertIDFromSnapshot pulls the alert ID out of an alert-snapshot observable
// value. Returns "" when the value is not a snapshot.
func alertIDFromSnapshot(value string) string {
	var snap core.AlertSnapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return ""
	}
	return snap.AlertID
}
