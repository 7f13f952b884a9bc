package ingest

import (
	"strings"
	"testing"

	"github.com/borelli28/SIEM/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCEF, DetectFormat("CEF:0|Cisco|ASA|9.1|106023|Deny|7|src=10.0.0.1"))
	assert.Equal(t, FormatSyslog, DetectFormat("<34>Mar  1 12:00:00 web-01 sshd[123]: Failed password"))
	assert.Equal(t, FormatJSON, DetectFormat(`{"name":"failed_login"}`))
	assert.Equal(t, FormatUnknown, DetectFormat("just some text"))
}

func TestParseCEF(t *testing.T) {
	raw := `CEF:0|Cisco|ASA|9.1|106023|Deny tcp connection|7|src=10.0.0.1 dst=192.168.1.5 msg="Denied by policy"`

	rec, err := ParseCEF(raw, "acct", "host-1")
	require.NoError(t, err)

	assert.Equal(t, "0", rec.Version)
	assert.Equal(t, "Cisco", rec.DeviceVendor)
	assert.Equal(t, "ASA", rec.DeviceProduct)
	assert.Equal(t, "9.1", rec.DeviceVersion)
	assert.Equal(t, "106023", rec.SignatureID)
	assert.Equal(t, "Deny tcp connection", rec.Name)
	assert.Equal(t, core.SeverityHigh, rec.Severity)
	assert.Equal(t, "10.0.0.1", rec.Extensions["src"])
	assert.Equal(t, "192.168.1.5", rec.Extensions["dst"])
	assert.Equal(t, "Denied by policy", rec.Extensions["msg"])
	assert.Equal(t, "acct", rec.AccountID)
	assert.Equal(t, "host-1", rec.HostID)
}

func TestParseCEF_SeverityMapping(t *testing.T) {
	cases := map[string]core.Severity{
		"0":  core.SeverityLow,
		"5":  core.SeverityMedium,
		"8":  core.SeverityHigh,
		"10": core.SeverityCritical,
	}
	for raw, want := range cases {
		rec, err := ParseCEF("CEF:0|v|p|1|100|name|"+raw+"|src=1.2.3.4", "acct", "h")
		require.NoError(t, err)
		assert.Equal(t, want, rec.Severity, "severity %s", raw)
	}
}

func TestParseCEF_Invalid(t *testing.T) {
	_, err := ParseCEF("CEF:0|only|three|parts", "acct", "h")
	assert.Error(t, err)

	_, err = ParseCEF("NOTCEF:0|a|b|c|d|e|f|g", "acct", "h")
	assert.Error(t, err)
}

func TestParseCEF_SanitizesHTML(t *testing.T) {
	rec, err := ParseCEF(`CEF:0|<script>|p|1|100|name|5|msg=<b>hi</b>`, "acct", "h")
	require.NoError(t, err)
	assert.Equal(t, "&lt;script&gt;", rec.DeviceVendor)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", rec.Extensions["msg"])
}

func TestParseSyslog(t *testing.T) {
	raw := "<38>Mar  1 12:00:00 web-01 sshd[2412]: Failed password for root from 10.0.0.99 port 22 ssh2"

	rec, err := ParseSyslog(raw, "acct", "host-1")
	require.NoError(t, err)

	assert.Equal(t, "failed_login", rec.Name)
	// priority 38: severity code 6 -> low
	assert.Equal(t, core.SeverityLow, rec.Severity)
	assert.Equal(t, "38", rec.Extensions["priority"])
	assert.Equal(t, "4", rec.Extensions["facility"])
	assert.Equal(t, "web-01", rec.Extensions["hostname"])
	assert.Equal(t, "10.0.0.99", rec.Extensions["src_ip"])
}

func TestParseSyslog_SeverityFromPriority(t *testing.T) {
	cases := map[string]core.Severity{
		"<2>":  core.SeverityCritical, // code 2
		"<11>": core.SeverityHigh,     // code 3
		"<12>": core.SeverityMedium,   // code 4
		"<14>": core.SeverityLow,      // code 6
	}
	for pri, want := range cases {
		rec, err := ParseSyslog(pri+"Mar  1 12:00:00 host kernel: something happened", "acct", "h")
		require.NoError(t, err)
		assert.Equal(t, want, rec.Severity, "priority %s", pri)
		assert.Equal(t, "kernel_event", rec.Name)
	}
}

func TestParseSyslog_Invalid(t *testing.T) {
	_, err := ParseSyslog("no header here", "acct", "h")
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	raw := `{"name":"failed_login","severity":"high","signature_id":"500","device_vendor":"cisco","src_ip":"10.0.0.1","attempts":3,"success":false}`

	rec, err := ParseJSON(raw, "acct", "host-1")
	require.NoError(t, err)

	assert.Equal(t, "failed_login", rec.Name)
	assert.Equal(t, core.SeverityHigh, rec.Severity)
	assert.Equal(t, "500", rec.SignatureID)
	assert.Equal(t, "cisco", rec.DeviceVendor)
	assert.Equal(t, "10.0.0.1", rec.Extensions["src_ip"])
	assert.Equal(t, "3", rec.Extensions["attempts"])
	assert.Equal(t, "false", rec.Extensions["success"])
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON("{not json", "acct", "h")
	assert.Error(t, err)
}

func TestParseLine_MultilineCollapsed(t *testing.T) {
	raw := "CEF:0|v|p|1|100|name|5|src=1.2.3.4\n   dst=5.6.7.8"

	rec, err := ParseLine(raw, "acct", "h")
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", rec.Extensions["dst"])
}

func TestParseLine_Unknown(t *testing.T) {
	_, err := ParseLine("free text line", "acct", "h")
	assert.Error(t, err)
}

func TestSanitizeValue_Truncates(t *testing.T) {
	long := strings.Repeat("a", maxFieldLength+100)
	got := sanitizeValue(long)
	assert.Len(t, got, maxFieldLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
