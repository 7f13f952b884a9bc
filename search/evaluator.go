package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/borelli28/SIEM/core"
)

// Evaluator evaluates parsed filter expressions against single log records.
type Evaluator struct{}

// NewEvaluator creates a new evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate evaluates an expression tree against a log record. AND branches
// short-circuit on the first false sub-clause, OR branches on the first true.
func (e *Evaluator) Evaluate(node *ASTNode, rec *core.LogRecord) bool {
	if node == nil {
		return false
	}

	switch node.Type {
	case NodeCondition:
		return e.evaluateCondition(node, rec)

	case NodeLogical:
		switch node.Logic {
		case "AND":
			return e.Evaluate(node.Left, rec) && e.Evaluate(node.Right, rec)
		case "OR":
			return e.Evaluate(node.Left, rec) || e.Evaluate(node.Right, rec)
		}
	}

	return false
}

// evaluateCondition evaluates a single condition against a record. A field
// missing from the record fails the condition regardless of operator,
// mirroring SQL NULL comparison semantics.
func (e *Evaluator) evaluateCondition(node *ASTNode, rec *core.LogRecord) bool {
	fieldValue, ok := rec.Field(node.Field)
	if !ok {
		return false
	}

	switch node.Operator {
	case OpEquals:
		return fieldValue == node.Value
	case OpNotEquals:
		return fieldValue != node.Value
	case OpGreater:
		return e.compare(node.Field, fieldValue, node.Value) > 0
	case OpLess:
		return e.compare(node.Field, fieldValue, node.Value) < 0
	}

	return false
}

// compare orders a record field value against a query value. Timestamps
// compare as RFC3339 instants, severities by rank, numbers numerically,
// and everything else lexicographically.
func (e *Evaluator) compare(field, fieldValue, queryValue string) int {
	if field == "created_at" {
		ft, ferr := time.Parse(time.RFC3339, fieldValue)
		qt, qerr := parseQueryTime(queryValue)
		if ferr == nil && qerr == nil {
			return ft.Compare(qt)
		}
	}

	if field == "severity" {
		fs := core.Severity(strings.ToLower(fieldValue))
		qs := core.Severity(strings.ToLower(queryValue))
		if fs.IsValid() && qs.IsValid() {
			return fs.Rank() - qs.Rank()
		}
	}

	ff, ferr := strconv.ParseFloat(fieldValue, 64)
	qf, qerr := strconv.ParseFloat(queryValue, 64)
	if ferr == nil && qerr == nil {
		switch {
		case ff > qf:
			return 1
		case ff < qf:
			return -1
		}
		return 0
	}

	return strings.Compare(fieldValue, queryValue)
}
