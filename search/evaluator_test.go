package search

import (
	"testing"
	"time"

	"github.com/borelli28/SIEM/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, query string) *ASTNode {
	t.Helper()
	ast, err := NewParser(query).Parse()
	require.NoError(t, err)
	return ast
}

func sampleRecord() *core.LogRecord {
	return &core.LogRecord{
		ID:           "log-1",
		AccountID:    "acct",
		HostID:       "host-1",
		DeviceVendor: "cisco",
		SignatureID:  "500",
		Name:         "failed_login",
		Severity:     core.SeverityHigh,
		Extensions:   map[string]string{"src": "10.0.0.1"},
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluator_Equals(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord()

	assert.True(t, e.Evaluate(mustParse(t, `severity = "high"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `severity = "low"`), rec))
}

func TestEvaluator_NotEquals(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord()

	assert.True(t, e.Evaluate(mustParse(t, `device_vendor != "juniper"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `device_vendor != "cisco"`), rec))
}

func TestEvaluator_MissingFieldFailsAnyOperator(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord()
	rec.DeviceProduct = ""

	assert.False(t, e.Evaluate(mustParse(t, `device_product = "asa"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `device_product != "asa"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `extensions.dst = "x"`), rec))
}

func TestEvaluator_SeverityOrdering(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord() // high

	assert.True(t, e.Evaluate(mustParse(t, `severity > "medium"`), rec))
	assert.True(t, e.Evaluate(mustParse(t, `severity < "critical"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `severity > "critical"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `severity < "high"`), rec))
}

func TestEvaluator_CreatedAtComparesAsTime(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord() // 2026-03-01T12:00:00Z

	assert.True(t, e.Evaluate(mustParse(t, `created_at > "2026-02-01T00:00:00Z"`), rec))
	assert.True(t, e.Evaluate(mustParse(t, `created_at < "2026-04-01"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `created_at > "2026-04-01"`), rec))
}

func TestEvaluator_NumericComparison(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord()
	rec.Extensions["count"] = "9"

	// 9 < 10 numerically even though "9" > "10" lexicographically.
	assert.True(t, e.Evaluate(mustParse(t, `extensions.count < "10"`), rec))
}

func TestEvaluator_AndOrChains(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord()

	assert.True(t, e.Evaluate(mustParse(t, `severity = "high" AND device_vendor = "cisco"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `severity = "high" AND device_vendor = "juniper"`), rec))
	assert.True(t, e.Evaluate(mustParse(t, `severity = "low" OR device_vendor = "cisco"`), rec))
	assert.False(t, e.Evaluate(mustParse(t, `severity = "low" OR device_vendor = "juniper"`), rec))
}

func TestEvaluator_StrictLeftToRight(t *testing.T) {
	e := NewEvaluator()
	rec := sampleRecord()

	// ((low OR cisco) AND juniper) = false; with OR binding looser it would
	// be (low OR (cisco AND juniper)) which differs for other records, so
	// also check a record where the two readings disagree.
	assert.False(t, e.Evaluate(mustParse(t, `severity = "low" OR device_vendor = "cisco" AND device_vendor = "juniper"`), rec))

	rec2 := sampleRecord()
	rec2.Severity = core.SeverityLow
	// ((low OR cisco) AND cisco) = true
	assert.True(t, e.Evaluate(mustParse(t, `severity = "low" OR device_vendor = "juniper" OR device_vendor = "cisco"`), rec2))
}

func TestEvaluator_ThreeRecordExample(t *testing.T) {
	e := NewEvaluator()
	ast := mustParse(t, `severity = "high" AND device_vendor = "cisco"`)

	match := sampleRecord()

	wrongVendor := sampleRecord()
	wrongVendor.DeviceVendor = "juniper"

	wrongSeverity := sampleRecord()
	wrongSeverity.Severity = core.SeverityLow

	assert.True(t, e.Evaluate(ast, match))
	assert.False(t, e.Evaluate(ast, wrongVendor))
	assert.False(t, e.Evaluate(ast, wrongSeverity))
}

func TestEvaluator_Deterministic(t *testing.T) {
	e := NewEvaluator()
	ast := mustParse(t, `severity = "high" AND extensions.src = "10.0.0.1"`)
	rec := sampleRecord()

	first := e.Evaluate(ast, rec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(ast, rec))
	}
}
