// Package format holds pure string conversions used when presenting domain values.
package format

import (
	"strings"
	"time"
)

// Date converts "YYYY-MM-DD" into "DD.MM.YYYY".
// An empty input yields "". Inputs that are not three dash-separated parts are
// returned unchanged.
func Date(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	return parts[2] + "." + parts[1] + "." + parts[0]
}

// DateOnly returns the calendar-date prefix of an ISO timestamp
// ("2024-05-01T10:00:00Z" -> "2024-05-01"). Strings without a "T" are
// returned as-is.
func DateOnly(iso string) string {
	day, _, _ := strings.Cut(iso, "T")
	return day
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses the timestamp shapes the backend emits (RFC3339 with or
// without a zone, or a bare date). Empty or unparseable input yields fallback.
func ParseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
