package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. Numeric day/month layouts read month first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2",
	"2006.1.2",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1-2-2006",
	"1/2/06",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Jan 2006",
	"January 2006",
	"2006-01",
}

// Spreadsheet serial dates count days from this epoch.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const (
	minSerialDay = 10000   // 1927-05-18; smaller integers are ambiguous
	maxSerialDay = 2958465 // 9999-12-31
)

// ParseDate converts a cell into a calendar date at UTC midnight. A bare
// four digit year maps to January 1st of that year. Spreadsheet serial day
// numbers are accepted. Any other unparsable input reports false.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDay(t), true
		}
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil && y >= 1000 {
			return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		days := math.Floor(f)
		if days >= minSerialDay && days <= maxSerialDay {
			return serialEpoch.AddDate(0, 0, int(days)), true
		}
	}
	return time.Time{}, false
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
