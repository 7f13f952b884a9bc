package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeRangeParser parses the start_time/end_time expressions bounding a
// search: absolute ISO8601 timestamps or relative expressions like
// "last 24h" and "last 7d".
type TimeRangeParser struct{}

// NewTimeRangeParser creates a new time range parser.
func NewTimeRangeParser() *TimeRangeParser {
	return &TimeRangeParser{}
}

var relativePattern = regexp.MustCompile(`^last\s+(\d+)\s*(h|d|w|hour|hours|day|days|week|weeks)$`)

// ParseRelativeTime parses relative expressions like "last 24h" into the
// instant that far in the past.
func (trp *TimeRangeParser) ParseRelativeTime(expr string) (time.Time, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	matches := relativePattern.FindStringSubmatch(expr)
	if len(matches) != 3 {
		return time.Time{}, fmt.Errorf("invalid relative time expression: %s (expected format: 'last 24h' or 'last 7d')", expr)
	}

	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time amount: %s", matches[1])
	}

	var duration time.Duration
	switch matches[2] {
	case "h", "hour", "hours":
		duration = time.Duration(amount) * time.Hour
	case "d", "day", "days":
		duration = time.Duration(amount) * 24 * time.Hour
	case "w", "week", "weeks":
		duration = time.Duration(amount) * 7 * 24 * time.Hour
	}

	return time.Now().UTC().Add(-duration), nil
}

var absoluteFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseAbsoluteTime parses absolute timestamps in ISO8601 and a few common
// date formats, always returning UTC.
func (trp *TimeRangeParser) ParseAbsoluteTime(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)

	for _, format := range absoluteFormats {
		if t, err := time.Parse(format, expr); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s (expected ISO8601)", expr)
}

// ParseTimeRange parses either a relative or an absolute time expression.
func (trp *TimeRangeParser) ParseTimeRange(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("time expression cannot be empty")
	}

	if strings.HasPrefix(strings.ToLower(expr), "last") {
		return trp.ParseRelativeTime(expr)
	}

	return trp.ParseAbsoluteTime(expr)
}

// ParseWindow parses the optional start/end expressions of a search window.
// Empty expressions leave the corresponding bound open (zero time).
func (trp *TimeRangeParser) ParseWindow(startExpr, endExpr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if startExpr != "" {
		start, err = trp.ParseTimeRange(startExpr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
		}
	}

	if endExpr != "" {
		end, err = trp.ParseTimeRange(endExpr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
		}
	}

	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end time %s is before start time %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	return start, end, nil
}

// parseQueryTime parses a timestamp value appearing inside a query
// condition on created_at.
func parseQueryTime(value string) (time.Time, error) {
	return NewTimeRangeParser().ParseAbsoluteTime(value)
}
