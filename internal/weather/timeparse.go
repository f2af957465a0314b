package weather

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order. They cover the compact forms the
// station and grid APIs emit as well as the usual ISO-8601 renderings.
var timestampLayouts = []string{
	"20060102",
	"20060102T1504",
	"20060102T150405",
	"200601021504",
	"20060102150405",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseTimestamp parses a date-like string from the weather APIs.
// Times without a zone are returned in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrParse, s)
}

// parseRangeStart parses a grid time string, collapsing "start-end" ranges
// to their start.
func parseRangeStart(s string) (time.Time, error) {
	if before, _, found := strings.Cut(s, "-"); found {
		s = before
	}
	return ParseTimestamp(s)
}

// validateCalendarDate checks that raw begins with an 8-digit YYYYMMDD date.
func validateCalendarDate(raw string) error {
	if len(raw) < 8 {
		return fmt.Errorf("%w: time %q does not start with a YYYYMMDD date", ErrParse, raw)
	}
	if _, err := time.Parse("20060102", raw[:8]); err != nil {
		return fmt.Errorf("%w: time %q does not start with a YYYYMMDD date", ErrParse, raw)
	}
	return nil
}
