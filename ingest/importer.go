package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/metrics"

	"go.uber.org/zap"
)

// maxLineBytes bounds a single raw log line during batch import.
const maxLineBytes = 1 << 20

// LogWriter is the slice of log storage the importer needs.
type LogWriter interface {
	CreateLog(ctx context.Context, rec *core.LogRecord) error
}

// ImportResult summarizes a batch import: how many lines became records,
// how many were rejected, and how many alerts the rule engine raised.
type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
	Alerts   int `json:"alerts"`
}

// Importer ingests raw log lines: parse, persist, then run the rule engine
// over each stored record.
type Importer struct {
	logs   LogWriter
	engine *Engine
	logger *zap.SugaredLogger
}

// NewImporter creates a log importer.
func NewImporter(logs LogWriter, engine *Engine, logger *zap.SugaredLogger) *Importer {
	return &Importer{
		logs:   logs,
		engine: engine,
		logger: logger,
	}
}

// IngestLine parses, stores, and evaluates a single raw log line.
func (im *Importer) IngestLine(ctx context.Context, raw, accountID, hostID string) (*core.LogRecord, []core.Alert, error) {
	format := DetectFormat(raw)

	rec, err := ParseLine(raw, accountID, hostID)
	if err != nil {
		metrics.LogsRejected.WithLabelValues(string(format)).Inc()
		return nil, nil, err
	}

	if err := im.logs.CreateLog(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("failed to store log record: %w", err)
	}
	metrics.LogsIngested.WithLabelValues(string(format)).Inc()

	alerts, err := im.engine.EvaluateRecord(ctx, rec)
	if err != nil {
		// The record is already stored; surface the engine failure but keep
		// the record.
		im.logger.Errorw("rule evaluation failed for ingested record",
			"log_id", rec.ID, "error", err)
	}

	return rec, alerts, nil
}

// ImportBatch reads newline-delimited raw logs and ingests each line.
// Malformed lines are counted and skipped; the batch keeps going. Only
// storage or read failures abort the import.
func (im *Importer) ImportBatch(ctx context.Context, r io.Reader, accountID, hostID string) (*ImportResult, error) {
	result := &ImportResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		_, alerts, err := im.IngestLine(ctx, line, accountID, hostID)
		if err != nil {
			result.Failed++
			im.logger.Debugw("rejected log line during import", "error", err)
			continue
		}
		result.Imported++
		result.Alerts += len(alerts)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read import payload: %w", err)
	}

	im.logger.Infow("log import finished",
		"account_id", accountID,
		"imported", result.Imported,
		"failed", result.Failed,
		"alerts", result.Alerts)

	return result, nil
}
