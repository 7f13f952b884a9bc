package ingest

import (
	"context"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/metrics"

	"go.uber.org/zap"
)

// RuleLister is the slice of rule storage the engine needs.
type RuleLister interface {
	ListEnabledRules(ctx context.Context, accountID string) ([]core.Rule, error)
}

// AlertWriter is the slice of alert storage the engine needs.
type AlertWriter interface {
	CreateAlert(ctx context.Context, alert *core.Alert) error
}

// Matcher evaluates a query expression against a single record.
type Matcher interface {
	Matches(query string, rec *core.LogRecord) (bool, error)
}

// Engine runs every enabled rule against each ingested record and raises an
// alert per match. A rule whose condition fails to parse is skipped with a
// warning rather than aborting the record: one bad rule must not stall
// ingestion.
type Engine struct {
	rules   RuleLister
	alerts  AlertWriter
	matcher Matcher
	logger  *zap.SugaredLogger
}

// NewEngine creates a rule engine.
func NewEngine(rules RuleLister, alerts AlertWriter, matcher Matcher, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		rules:   rules,
		alerts:  alerts,
		matcher: matcher,
		logger:  logger,
	}
}

// EvaluateRecord tests a record against the account's enabled rules and
// stores an alert for each match. Returns the alerts raised.
func (e *Engine) EvaluateRecord(ctx context.Context, rec *core.LogRecord) ([]core.Alert, error) {
	rules, err := e.rules.ListEnabledRules(ctx, rec.AccountID)
	if err != nil {
		return nil, err
	}

	var raised []core.Alert
	for i := range rules {
		rule := &rules[i]

		matched, err := e.matcher.Matches(rule.Condition, rec)
		if err != nil {
			e.logger.Warnw("skipping rule with invalid condition",
				"rule_id", rule.ID, "error", err)
			continue
		}
		if !matched {
			continue
		}

		alert := core.NewAlert(rule, rec)
		if err := e.alerts.CreateAlert(ctx, alert); err != nil {
			return raised, err
		}
		metrics.AlertsGenerated.WithLabelValues(string(alert.Severity)).Inc()
		raised = append(raised, *alert)
	}

	return raised, nil
}
