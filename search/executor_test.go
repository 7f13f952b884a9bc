package search

import (
	"context"
	"testing"
	"time"

	"github.com/borelli28/SIEM/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memLogReader pages records out of a slice the way the store does.
type memLogReader struct {
	records []core.LogRecord
}

func (m *memLogReader) ListLogsRange(ctx context.Context, accountID string, start, end time.Time, offset, limit int) ([]core.LogRecord, error) {
	var window []core.LogRecord
	for _, r := range m.records {
		if r.AccountID != accountID {
			continue
		}
		if !start.IsZero() && r.CreatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && r.CreatedAt.After(end) {
			continue
		}
		window = append(window, r)
	}
	if offset >= len(window) {
		return nil, nil
	}
	window = window[offset:]
	if len(window) > limit {
		window = window[:limit]
	}
	return window, nil
}

func testRecords(n int) []core.LogRecord {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	records := make([]core.LogRecord, 0, n)
	for i := 0; i < n; i++ {
		sev := core.SeverityLow
		if i%2 == 0 {
			sev = core.SeverityHigh
		}
		records = append(records, core.LogRecord{
			ID:        string(rune('a' + i%26)),
			AccountID: "acct",
			Severity:  sev,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return records
}

func newTestExecutor(t *testing.T, reader LogReader, batchSize, maxResults int) *Executor {
	t.Helper()
	ex, err := NewExecutor(reader, batchSize, maxResults, zap.NewNop().Sugar())
	require.NoError(t, err)
	return ex
}

func TestExecutor_SearchFiltersRecords(t *testing.T) {
	ex := newTestExecutor(t, &memLogReader{records: testRecords(10)}, 3, 0)

	results, err := ex.Search(context.Background(), "acct", `severity = "high"`, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, core.SeverityHigh, r.Severity)
	}
}

func TestExecutor_EmptyResultIsNotAnError(t *testing.T) {
	ex := newTestExecutor(t, &memLogReader{records: testRecords(4)}, 10, 0)

	results, err := ex.Search(context.Background(), "acct", `severity = "critical"`, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExecutor_ParseErrorPropagates(t *testing.T) {
	ex := newTestExecutor(t, &memLogReader{}, 10, 0)

	_, err := ex.Search(context.Background(), "acct", `garbage`, time.Time{}, time.Time{})
	require.Error(t, err)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestExecutor_MaxResultsCap(t *testing.T) {
	ex := newTestExecutor(t, &memLogReader{records: testRecords(20)}, 5, 3)

	results, err := ex.Search(context.Background(), "acct", `severity = "high"`, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestExecutor_TimeWindow(t *testing.T) {
	records := testRecords(10)
	ex := newTestExecutor(t, &memLogReader{records: records}, 100, 0)

	start := records[2].CreatedAt
	end := records[5].CreatedAt

	results, err := ex.Search(context.Background(), "acct", `id != ""`, start, end)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestExecutor_Matches(t *testing.T) {
	ex := newTestExecutor(t, &memLogReader{}, 10, 0)

	rec := &core.LogRecord{Severity: core.SeverityHigh}
	ok, err := ex.Matches(`severity = "high"`, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ex.Matches(`severity = "low"`, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ex.Matches(`bad query`, rec)
	assert.Error(t, err)
}

func TestExecutor_CancelledContext(t *testing.T) {
	ex := newTestExecutor(t, &memLogReader{records: testRecords(5)}, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Search(ctx, "acct", `severity = "high"`, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}
