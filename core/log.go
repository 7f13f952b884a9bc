package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity is the normalized severity of a log record, alert, or case.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is one of the known levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the ordinal position of the severity, for range comparisons
// in search queries (low < medium < high < critical). Unknown severities
// rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// NormalizeSeverity maps free-form severity strings, including CEF numeric
// severities (0-10), onto the Severity enum. Unrecognized input maps to low.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "0", "1", "2", "3", "informational", "info":
		return SeverityLow
	case "medium", "4", "5", "6", "warning":
		return SeverityMedium
	case "high", "7", "8", "error":
		return SeverityHigh
	case "critical", "9", "10", "very-high":
		return SeverityCritical
	}
	return SeverityLow
}

// LogRecord is a normalized log entry. Records are immutable once ingested:
// they are created by the ingest pipeline and only removed by retention.
type LogRecord struct {
	ID            string            `json:"id"`
	AccountID     string            `json:"account_id"`
	HostID        string            `json:"host_id"`
	Version       string            `json:"version,omitempty"`
	DeviceVendor  string            `json:"device_vendor,omitempty"`
	DeviceProduct string            `json:"device_product,omitempty"`
	DeviceVersion string            `json:"device_version,omitempty"`
	SignatureID   string            `json:"signature_id,omitempty"`
	Name          string            `json:"name,omitempty"`
	Severity      Severity          `json:"severity,omitempty"`
	Extensions    map[string]string `json:"extensions,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewLogRecord creates an empty log record with a generated ID for the
// given account and host.
func NewLogRecord(accountID, hostID string) *LogRecord {
	return &LogRecord{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		HostID:     hostID,
		Extensions: make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
}

// extensionsPrefix addresses the free-form extension map in search queries.
const extensionsPrefix = "extensions."

// queryableLogFields is the allow-list of LogRecord fields a search query
// may reference. Field names are matched case-sensitively.
var queryableLogFields = map[string]bool{
	"id":             true,
	"host_id":        true,
	"version":        true,
	"device_vendor":  true,
	"device_product": true,
	"device_version": true,
	"signature_id":   true,
	"name":           true,
	"severity":       true,
	"created_at":     true,
}

// IsQueryableField reports whether field may appear in a search query.
// Besides the fixed columns, "extensions.<key>" addresses the extension map.
func IsQueryableField(field string) bool {
	if queryableLogFields[field] {
		return true
	}
	return strings.HasPrefix(field, extensionsPrefix) && len(field) > len(extensionsPrefix)
}

// QueryableFields returns the fixed queryable field names, for error messages.
func QueryableFields() []string {
	fields := make([]string, 0, len(queryableLogFields))
	for f := range queryableLogFields {
		fields = append(fields, f)
	}
	return fields
}

// Field returns the string value of a named record field and whether the
// field is present on this record. created_at is rendered as RFC3339.
func (l *LogRecord) Field(name string) (string, bool) {
	switch name {
	case "id":
		return l.ID, true
	case "host_id":
		return l.HostID, true
	case "version":
		return l.Version, l.Version != ""
	case "device_vendor":
		return l.DeviceVendor, l.DeviceVendor != ""
	case "device_product":
		return l.DeviceProduct, l.DeviceProduct != ""
	case "device_version":
		return l.DeviceVersion, l.DeviceVersion != ""
	case "signature_id":
		return l.SignatureID, l.SignatureID != ""
	case "name":
		return l.Name, l.Name != ""
	case "severity":
		return string(l.Severity), l.Severity != ""
	case "created_at":
		return l.CreatedAt.UTC().Format(time.RFC3339), true
	}
	if strings.HasPrefix(name, extensionsPrefix) {
		v, ok := l.Extensions[strings.TrimPrefix(name, extensionsPrefix)]
		return v, ok
	}
	return "", false
}
