package search

import (
	"context"
	"fmt"
	"time"

	"github.com/borelli28/SIEM/core"
	"github.com/borelli28/SIEM/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// astCacheSize bounds the parsed-query cache.
	astCacheSize = 512

	// DefaultBatchSize is the store page size used while scanning.
	DefaultBatchSize = 1000

	// DefaultMaxResults caps the records a single search returns.
	DefaultMaxResults = 10000
)

// LogReader is the slice of the log store the executor needs: pages of an
// account's records ordered ascending by (created_at, id) within an
// optional time window. Zero bounds leave the window open on that side.
type LogReader interface {
	ListLogsRange(ctx context.Context, accountID string, start, end time.Time, offset, limit int) ([]core.LogRecord, error)
}

// Executor runs parsed queries against the log store. Records are pulled in
// fixed-size batches so a search over a large log volume never materializes
// the full table, and results are capped at maxResults. Parsed expression
// trees are cached in an LRU keyed by the query string.
type Executor struct {
	logs       LogReader
	eval       *Evaluator
	astCache   *lru.Cache[string, *ASTNode]
	batchSize  int
	maxResults int
	logger     *zap.SugaredLogger
}

// NewExecutor creates a query executor over the given log store. Zero
// batchSize or maxResults fall back to the package defaults.
func NewExecutor(logs LogReader, batchSize, maxResults int, logger *zap.SugaredLogger) (*Executor, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	cache, err := lru.New[string, *ASTNode](astCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Executor{
		logs:       logs,
		eval:       NewEvaluator(),
		astCache:   cache,
		batchSize:  batchSize,
		maxResults: maxResults,
		logger:     logger,
	}, nil
}

// parseCached returns the expression tree for a query, parsing on cache miss.
func (ex *Executor) parseCached(query string) (*ASTNode, error) {
	if ast, ok := ex.astCache.Get(query); ok {
		return ast, nil
	}

	ast, err := NewParser(query).Parse()
	if err != nil {
		return nil, err
	}

	ex.astCache.Add(query, ast)
	return ast, nil
}

// Search evaluates a query over an account's logs within the given time
// window and returns matching records ascending by (created_at, id). An
// empty result is not an error. Returns *ParseError for malformed queries.
func (ex *Executor) Search(ctx context.Context, accountID, query string, start, end time.Time) ([]core.LogRecord, error) {
	began := time.Now()

	ast, err := ex.parseCached(query)
	if err != nil {
		metrics.SearchErrors.Inc()
		return nil, err
	}

	results := make([]core.LogRecord, 0)
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := ex.logs.ListLogsRange(ctx, accountID, start, end, offset, ex.batchSize)
		if err != nil {
			metrics.SearchErrors.Inc()
			return nil, fmt.Errorf("failed to scan logs: %w", err)
		}

		for i := range batch {
			if ex.eval.Evaluate(ast, &batch[i]) {
				results = append(results, batch[i])
				if len(results) >= ex.maxResults {
					ex.logger.Warnw("search result cap reached",
						"account_id", accountID,
						"max_results", ex.maxResults)
					metrics.SearchesExecuted.Inc()
					metrics.SearchDuration.Observe(time.Since(began).Seconds())
					return results, nil
				}
			}
		}

		if len(batch) < ex.batchSize {
			break
		}
		offset += ex.batchSize
	}

	metrics.SearchesExecuted.Inc()
	metrics.SearchDuration.Observe(time.Since(began).Seconds())
	return results, nil
}

// Matches evaluates a query against a single record. Used by the rule
// engine to test rule conditions on ingested logs.
func (ex *Executor) Matches(query string, rec *core.LogRecord) (bool, error) {
	ast, err := ex.parseCached(query)
	if err != nil {
		return false, err
	}
	return ex.eval.Evaluate(ast, rec), nil
}

// ValidateQuery parses a query without executing it, returning any
// *ParseError. Used when storing rule conditions.
func ValidateQuery(query string) error {
	_, err := NewParser(query).Parse()
	return err
}
