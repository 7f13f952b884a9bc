package storage

import (
	"context"
	"testing"
	"time"

	"github.com/borelli28/SIEM/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testStores struct {
	sqlite   *SQLite
	logs     *SQLiteLogStorage
	alerts   *SQLiteAlertStorage
	cases    *SQLiteCaseStorage
	comments *SQLiteCommentStorage
	hosts    *SQLiteHostStorage
	rules    *SQLiteRuleStorage
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	sugar := zap.NewNop().Sugar()

	sqlite, err := NewSQLite(":memory:", sugar)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	logs, err := NewSQLiteLogStorage(sqlite, sugar)
	require.NoError(t, err)
	alerts, err := NewSQLiteAlertStorage(sqlite, sugar)
	require.NoError(t, err)
	cases, err := NewSQLiteCaseStorage(sqlite, sugar)
	require.NoError(t, err)
	comments, err := NewSQLiteCommentStorage(sqlite, sugar)
	require.NoError(t, err)
	hosts, err := NewSQLiteHostStorage(sqlite, sugar)
	require.NoError(t, err)
	rules, err := NewSQLiteRuleStorage(sqlite, sugar)
	require.NoError(t, err)

	return &testStores{
		sqlite:   sqlite,
		logs:     logs,
		alerts:   alerts,
		cases:    cases,
		comments: comments,
		hosts:    hosts,
		rules:    rules,
	}
}

func testLog(accountID string, created time.Time) *core.LogRecord {
	rec := core.NewLogRecord(accountID, "host-1")
	rec.Name = "failed_login"
	rec.Severity = core.SeverityHigh
	rec.SignatureID = "500"
	rec.Extensions["src"] = "10.0.0.1"
	rec.CreatedAt = created
	return rec
}

func testAlert(accountID string) *core.Alert {
	rule := core.NewRule(accountID, "brute force", "many failed logins", `name = "failed_login"`, core.SeverityHigh)
	return core.NewAlert(rule, &core.LogRecord{})
}

func TestLogStorage_CreateGetList(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := testLog("acct", base)
	second := testLog("acct", base.Add(time.Minute))
	other := testLog("other", base)

	require.NoError(t, s.logs.CreateLog(ctx, first))
	require.NoError(t, s.logs.CreateLog(ctx, second))
	require.NoError(t, s.logs.CreateLog(ctx, other))

	got, err := s.logs.GetLog(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "10.0.0.1", got.Extensions["src"])
	assert.Equal(t, base, got.CreatedAt)

	_, err = s.logs.GetLog(ctx, "missing")
	assert.ErrorIs(t, err, ErrLogNotFound)

	records, err := s.logs.ListLogsRange(ctx, "acct", time.Time{}, time.Time{}, 0, 100)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID, "logs list ascending by created_at")
	assert.Equal(t, second.ID, records[1].ID)
}

func TestLogStorage_RangeAndPagination(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.logs.CreateLog(ctx, testLog("acct", base.Add(time.Duration(i)*time.Minute))))
	}

	window, err := s.logs.ListLogsRange(ctx, "acct", base.Add(time.Minute), base.Add(3*time.Minute), 0, 100)
	require.NoError(t, err)
	assert.Len(t, window, 3)

	page1, err := s.logs.ListLogsRange(ctx, "acct", time.Time{}, time.Time{}, 0, 2)
	require.NoError(t, err)
	page2, err := s.logs.ListLogsRange(ctx, "acct", time.Time{}, time.Time{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestLogStorage_ListBySignatureAndPurge(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := testLog("acct", base)
	recent := testLog("acct", base.Add(48*time.Hour))
	recent.SignatureID = "600"

	require.NoError(t, s.logs.CreateLog(ctx, old))
	require.NoError(t, s.logs.CreateLog(ctx, recent))

	matches, err := s.logs.ListLogsBySignature(ctx, "acct", "500", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, old.ID, matches[0].ID)

	purged, err := s.logs.PurgeLogsBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	count, err := s.logs.CountLogs(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAlertStorage_Lifecycle(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	alert := testAlert("acct")
	require.NoError(t, s.alerts.CreateAlert(ctx, alert))

	got, err := s.alerts.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.False(t, got.Acknowledged)
	assert.Empty(t, got.CaseID)

	require.NoError(t, s.alerts.AcknowledgeAlert(ctx, alert.ID))
	got, err = s.alerts.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, got.Acknowledged)

	require.NoError(t, s.alerts.SetAlertCase(ctx, alert.ID, "case-1"))
	got, err = s.alerts.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "case-1", got.CaseID)

	require.NoError(t, s.alerts.ClearAlertCase(ctx, alert.ID))
	got, err = s.alerts.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CaseID)

	require.NoError(t, s.alerts.DeleteAlert(ctx, alert.ID))
	_, err = s.alerts.GetAlert(ctx, alert.ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)

	assert.ErrorIs(t, s.alerts.AcknowledgeAlert(ctx, "missing"), ErrAlertNotFound)
	assert.ErrorIs(t, s.alerts.DeleteAlert(ctx, "missing"), ErrAlertNotFound)
}

func TestAlertStorage_ClearCaseFromAlerts(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	linked := testAlert("acct")
	alsoLinked := testAlert("acct")
	other := testAlert("acct")
	require.NoError(t, s.alerts.CreateAlert(ctx, linked))
	require.NoError(t, s.alerts.CreateAlert(ctx, alsoLinked))
	require.NoError(t, s.alerts.CreateAlert(ctx, other))

	require.NoError(t, s.alerts.SetAlertCase(ctx, linked.ID, "case-1"))
	require.NoError(t, s.alerts.SetAlertCase(ctx, alsoLinked.ID, "case-1"))
	require.NoError(t, s.alerts.SetAlertCase(ctx, other.ID, "case-2"))

	require.NoError(t, s.alerts.ClearCaseFromAlerts(ctx, "case-1"))

	for _, id := range []string{linked.ID, alsoLinked.ID} {
		got, err := s.alerts.GetAlert(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got.CaseID)
	}

	got, err := s.alerts.GetAlert(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "case-2", got.CaseID)

	// Clearing a case nothing references is a no-op, not an error.
	require.NoError(t, s.alerts.ClearCaseFromAlerts(ctx, "missing"))
}

func TestAlertStorage_ListNewestFirst(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	older := testAlert("acct")
	older.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := testAlert("acct")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, s.alerts.CreateAlert(ctx, older))
	require.NoError(t, s.alerts.CreateAlert(ctx, newer))

	alerts, err := s.alerts.ListAlerts(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, newer.ID, alerts[0].ID)
}

func TestCaseStorage_CreateGetUpdateDelete(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	c := core.NewCase("acct")
	require.NoError(t, s.cases.CreateCase(ctx, c))

	got, err := s.cases.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Investigation", got.Title)
	assert.Equal(t, core.CaseStatusOpen, got.Status)
	assert.Empty(t, got.Observables)

	got.Title = "Suspicious logins"
	got.Status = core.CaseStatusInProgress
	got.AnalystAssigned = "rivera"
	require.NoError(t, s.cases.UpdateCase(ctx, got))

	updated, err := s.cases.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Suspicious logins", updated.Title)
	assert.Equal(t, core.CaseStatusInProgress, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

	require.NoError(t, s.cases.DeleteCase(ctx, c.ID))
	_, err = s.cases.GetCase(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCaseNotFound)

	assert.ErrorIs(t, s.cases.UpdateCase(ctx, got), ErrCaseNotFound)
	assert.ErrorIs(t, s.cases.DeleteCase(ctx, c.ID), ErrCaseNotFound)
}

func TestCaseStorage_ObservableUniqueness(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	c := core.NewCase("acct")
	require.NoError(t, s.cases.CreateCase(ctx, c))

	o := &core.Observable{CaseID: c.ID, Type: core.ObservableTypeIP, Value: "10.0.0.1"}
	require.NoError(t, s.cases.AddObservable(ctx, o))

	err := s.cases.AddObservable(ctx, o)
	assert.ErrorIs(t, err, ErrDuplicateObservable)

	got, err := s.cases.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Observables, 1)

	// Same value under a different type is distinct evidence.
	domain := &core.Observable{CaseID: c.ID, Type: core.ObservableTypeDomain, Value: "10.0.0.1"}
	require.NoError(t, s.cases.AddObservable(ctx, domain))

	got, err = s.cases.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Observables, 2)
}

func TestCaseStorage_ObservableForeignKey(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	o := &core.Observable{CaseID: "no-such-case", Type: core.ObservableTypeIP, Value: "10.0.0.1"}
	assert.ErrorIs(t, s.cases.AddObservable(ctx, o), ErrCaseNotFound)
}

func TestCaseStorage_DeleteCascadesObservables(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	c := core.NewCase("acct")
	require.NoError(t, s.cases.CreateCase(ctx, c))
	require.NoError(t, s.cases.AddObservable(ctx, &core.Observable{
		CaseID: c.ID, Type: core.ObservableTypeIP, Value: "10.0.0.1",
	}))

	require.NoError(t, s.cases.DeleteCase(ctx, c.ID))

	var count int
	err := s.sqlite.DB.QueryRow(
		"SELECT COUNT(*) FROM case_observables WHERE case_id = ?", c.ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCaseStorage_DeleteObservable(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	c := core.NewCase("acct")
	require.NoError(t, s.cases.CreateCase(ctx, c))
	require.NoError(t, s.cases.AddObservable(ctx, &core.Observable{
		CaseID: c.ID, Type: core.ObservableTypeIP, Value: "10.0.0.1",
	}))

	require.NoError(t, s.cases.DeleteObservable(ctx, c.ID, core.ObservableTypeIP, "10.0.0.1"))
	err := s.cases.DeleteObservable(ctx, c.ID, core.ObservableTypeIP, "10.0.0.1")
	assert.ErrorIs(t, err, ErrObservableNotFound)
}

func TestCaseStorage_ListObservablesByType(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	mine := core.NewCase("acct")
	theirs := core.NewCase("other")
	require.NoError(t, s.cases.CreateCase(ctx, mine))
	require.NoError(t, s.cases.CreateCase(ctx, theirs))

	require.NoError(t, s.cases.AddObservable(ctx, &core.Observable{
		CaseID: mine.ID, Type: core.ObservableTypeLog, Value: `{"log_id":"l1"}`,
	}))
	require.NoError(t, s.cases.AddObservable(ctx, &core.Observable{
		CaseID: mine.ID, Type: core.ObservableTypeIP, Value: "10.0.0.1",
	}))
	require.NoError(t, s.cases.AddObservable(ctx, &core.Observable{
		CaseID: theirs.ID, Type: core.ObservableTypeLog, Value: `{"log_id":"l2"}`,
	}))

	observables, err := s.cases.ListObservablesByType(ctx, "acct", core.ObservableTypeLog)
	require.NoError(t, err)
	require.Len(t, observables, 1)
	assert.Equal(t, mine.ID, observables[0].CaseID)
}

func TestCommentStorage_Lifecycle(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	c := core.NewCase("acct")
	require.NoError(t, s.cases.CreateCase(ctx, c))

	comment := core.NewComment(c.ID, "initial triage done")
	require.NoError(t, s.comments.CreateComment(ctx, comment))

	orphan := core.NewComment("no-such-case", "text")
	assert.ErrorIs(t, s.comments.CreateComment(ctx, orphan), ErrCaseNotFound)

	require.NoError(t, s.comments.UpdateComment(ctx, comment.ID, "triage complete"))
	got, err := s.comments.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "triage complete", got.Text)

	comments, err := s.comments.ListComments(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	require.NoError(t, s.comments.DeleteComment(ctx, comment.ID))
	assert.ErrorIs(t, s.comments.DeleteComment(ctx, comment.ID), ErrCommentNotFound)

	// Deleting the case removes its comments.
	comment2 := core.NewComment(c.ID, "another note")
	require.NoError(t, s.comments.CreateComment(ctx, comment2))
	require.NoError(t, s.cases.DeleteCase(ctx, c.ID))
	_, err = s.comments.GetComment(ctx, comment2.ID)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestHostStorage_Lifecycle(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	h := core.NewHost("acct", "web-01", "192.168.1.10")
	require.NoError(t, s.hosts.CreateHost(ctx, h))

	got, err := s.hosts.GetHost(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "web-01", got.Hostname)

	got.Hostname = "web-02"
	require.NoError(t, s.hosts.UpdateHost(ctx, got))

	hosts, err := s.hosts.ListHosts(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "web-02", hosts[0].Hostname)

	require.NoError(t, s.hosts.DeleteHost(ctx, h.ID))
	_, err = s.hosts.GetHost(ctx, h.ID)
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestRuleStorage_Lifecycle(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	enabled := core.NewRule("acct", "brute force", "", `name = "failed_login"`, core.SeverityHigh)
	disabled := core.NewRule("acct", "old rule", "", `severity = "low"`, core.SeverityLow)
	disabled.Enabled = false

	require.NoError(t, s.rules.CreateRule(ctx, enabled))
	require.NoError(t, s.rules.CreateRule(ctx, disabled))

	all, err := s.rules.ListRules(ctx, "acct")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.rules.ListEnabledRules(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, enabled.ID, active[0].ID)

	enabled.Name = "brute force v2"
	enabled.Enabled = false
	require.NoError(t, s.rules.UpdateRule(ctx, enabled))

	active, err = s.rules.ListEnabledRules(ctx, "acct")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.rules.DeleteRule(ctx, enabled.ID))
	_, err = s.rules.GetRule(ctx, enabled.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}
