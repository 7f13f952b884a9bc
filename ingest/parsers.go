// Package ingest turns raw log lines into normalized LogRecords and runs
// them through the rule engine. Three input formats are recognized: CEF,
// RFC3164 syslog, and flat JSON objects.
package ingest

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/borelli28/SIEM/core"
)

const maxFieldLength = 50000

// Format identifies the wire format of a raw log line.
type Format string

const (
	FormatCEF     Format = "cef"
	FormatSyslog  Format = "syslog"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

// DetectFormat guesses the format of a raw log line. CEF lines start with
// "CEF:", syslog lines with an RFC3164 <priority> header, JSON lines with
// an object brace.
func DetectFormat(raw string) Format {
	cleaned := cleanLine(raw)
	switch {
	case strings.HasPrefix(cleaned, "CEF:"):
		return FormatCEF
	case syslogHeaderRe.MatchString(cleaned):
		return FormatSyslog
	case strings.HasPrefix(cleaned, "{"):
		return FormatJSON
	}
	return FormatUnknown
}

// ParseLine normalizes a raw log line into a LogRecord for the given account
// and host. The format is auto-detected; unknown formats are an error.
func ParseLine(raw, accountID, hostID string) (*core.LogRecord, error) {
	cleaned := cleanLine(raw)
	switch DetectFormat(cleaned) {
	case FormatCEF:
		return ParseCEF(cleaned, accountID, hostID)
	case FormatSyslog:
		return ParseSyslog(cleaned, accountID, hostID)
	case FormatJSON:
		return ParseJSON(cleaned, accountID, hostID)
	}
	return nil, fmt.Errorf("unknown log format")
}

// cleanLine collapses a possibly multi-line raw log into one trimmed line.
func cleanLine(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " ")
}

// sanitizeValue escapes HTML to keep stored values inert when rendered and
// truncates oversized fields.
func sanitizeValue(v string) string {
	sanitized := html.EscapeString(v)
	if len(sanitized) > maxFieldLength {
		sanitized = sanitized[:maxFieldLength] + "..."
	}
	return sanitized
}

func sanitizeExtensions(ext map[string]string) {
	for k, v := range ext {
		ext[k] = sanitizeValue(v)
	}
}

// ParseCEF parses a CEF line:
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
// The extension part is key=value pairs separated by spaces, with quoted
// values allowed to contain spaces.
func ParseCEF(raw, accountID, hostID string) (*core.LogRecord, error) {
	parts := strings.SplitN(raw, "|", 8)
	if len(parts) != 8 || !strings.HasPrefix(parts[0], "CEF:") {
		return nil, fmt.Errorf("invalid CEF format")
	}

	rec := core.NewLogRecord(accountID, hostID)
	rec.Version = strings.TrimPrefix(parts[0], "CEF:")
	rec.DeviceVendor = sanitizeValue(parts[1])
	rec.DeviceProduct = sanitizeValue(parts[2])
	rec.DeviceVersion = sanitizeValue(parts[3])
	rec.SignatureID = sanitizeValue(parts[4])
	rec.Name = sanitizeValue(parts[5])
	rec.Severity = core.NormalizeSeverity(parts[6])
	rec.Extensions = parseCEFExtensions(parts[7])
	sanitizeExtensions(rec.Extensions)

	return rec, nil
}

// parseCEFExtensions splits the CEF extension blob into key=value pairs.
// Spaces inside double quotes do not terminate a pair.
func parseCEFExtensions(ext string) map[string]string {
	extensions := make(map[string]string)
	var current strings.Builder
	inQuotes := false

	flush := func() {
		pair := current.String()
		current.Reset()
		if pair == "" {
			return
		}
		if k, v, ok := strings.Cut(pair, "="); ok {
			extensions[k] = strings.Trim(v, `"`)
		}
	}

	for _, c := range ext {
		switch {
		case c == '"':
			inQuotes = !inQuotes
			current.WriteRune(c)
		case c == ' ' && !inQuotes:
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return extensions
}

var (
	// RFC3164: <pri>MMM dd hh:mm:ss hostname message
	syslogHeaderRe = regexp.MustCompile(`^<(\d+)>(\w{3}\s+\d+\s+\d+:\d+:\d+)\s+(\S+)\s+(.+)$`)
	syslogSrcRe    = regexp.MustCompile(`(?:SRC|from|client)\s*=?\s*(\d+\.\d+\.\d+\.\d+)`)
	syslogDstRe    = regexp.MustCompile(`DST=(\d+\.\d+\.\d+\.\d+)`)
)

// syslogEventType classifies a syslog message body by its originating
// daemon, matching the event names analysts query on.
func syslogEventType(message string) string {
	switch {
	case strings.Contains(message, "sshd"):
		if strings.Contains(message, "Failed password") {
			return "failed_login"
		}
		if strings.Contains(message, "Accepted password") {
			return "successful_login"
		}
		return "ssh_event"
	case strings.Contains(message, "systemd"):
		return "systemd_event"
	case strings.Contains(message, "kernel"):
		return "kernel_event"
	case strings.Contains(message, "crond"):
		return "cron_job"
	case strings.Contains(message, "sudo"):
		return "sudo_command"
	case strings.Contains(message, "apache2"):
		return "apache_error"
	}
	return ""
}

// syslogSeverity maps the RFC3164 severity code (priority % 8) onto the
// normalized scale.
func syslogSeverity(code int) core.Severity {
	switch code {
	case 0, 1, 2:
		return core.SeverityCritical
	case 3:
		return core.SeverityHigh
	case 4:
		return core.SeverityMedium
	}
	return core.SeverityLow
}

// ParseSyslog parses an RFC3164 syslog line. The daemon name becomes the
// record name where recognizable, and any SRC/DST addresses in the message
// land in the extension map.
func ParseSyslog(raw, accountID, hostID string) (*core.LogRecord, error) {
	matches := syslogHeaderRe.FindStringSubmatch(cleanLine(raw))
	if len(matches) != 5 {
		return nil, fmt.Errorf("invalid syslog format")
	}

	pri, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid syslog priority: %w", err)
	}
	message := matches[4]

	rec := core.NewLogRecord(accountID, hostID)
	rec.Name = syslogEventType(message)
	rec.Severity = syslogSeverity(pri % 8)
	rec.Extensions["priority"] = matches[1]
	rec.Extensions["facility"] = strconv.Itoa(pri / 8)
	rec.Extensions["timestamp"] = matches[2]
	rec.Extensions["hostname"] = matches[3]
	rec.Extensions["message"] = message

	if cap := syslogSrcRe.FindStringSubmatch(message); cap != nil {
		rec.Extensions["src_ip"] = cap[1]
	}
	if cap := syslogDstRe.FindStringSubmatch(message); cap != nil {
		rec.Extensions["dst_ip"] = cap[1]
	}
	sanitizeExtensions(rec.Extensions)

	return rec, nil
}

// ParseJSON parses a flat JSON object line. Well-known keys map onto record
// columns; everything else lands in the extension map. Non-string values are
// rendered back to their JSON text.
func ParseJSON(raw, accountID, hostID string) (*core.LogRecord, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	rec := core.NewLogRecord(accountID, hostID)
	for key, value := range fields {
		str := jsonValueString(value)
		switch key {
		case "name", "event", "event_type":
			rec.Name = sanitizeValue(str)
		case "severity":
			rec.Severity = core.NormalizeSeverity(str)
		case "signature_id":
			rec.SignatureID = sanitizeValue(str)
		case "device_vendor":
			rec.DeviceVendor = sanitizeValue(str)
		case "device_product":
			rec.DeviceProduct = sanitizeValue(str)
		case "device_version":
			rec.DeviceVersion = sanitizeValue(str)
		case "version":
			rec.Version = sanitizeValue(str)
		default:
			rec.Extensions[key] = sanitizeValue(str)
		}
	}

	return rec, nil
}

func jsonValueString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}
