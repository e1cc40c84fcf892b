package util

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the reported-date spellings seen across mandi exports.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"02-Jan-2006",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate parses a reported date. Day-first layouts win over month-first
// ones; unix seconds are accepted as a last resort. Returns (t, true) if any worked.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
