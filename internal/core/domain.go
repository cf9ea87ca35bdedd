package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Column names the aggregation relies on. Any other column is carried through
// untouched in Record.Fields.
const (
	ColumnDate           = "Date"
	ColumnAmount         = "Amount"
	ColumnCategory       = "Category"
	ColumnInvestmentType = "Investment Type"
)

type (
	// RawRecord is one spreadsheet row keyed by header name.
	RawRecord map[string]string

	Money struct {
		Cents int64
	}

	// Record is a RawRecord with typed Amount and Date. HasAmount and HasDate
	// report whether the raw value could be parsed; when HasDate is false the
	// derived calendar fields are zero.
	Record struct {
		Fields    RawRecord
		Amount    Money
		HasAmount bool
		Date      time.Time
		HasDate   bool
		Year      int
		Month     int
		YearMonth string
	}
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrAuthentication    = errors.New("invalid credentials")
	ErrSourceUnavailable = errors.New("record source unavailable")
	ErrNotFound          = errors.New("not found")
)

// Get returns the value stored under col. Header cells are matched exactly
// first, then case-insensitively with surrounding spaces ignored.
func (r RawRecord) Get(col string) string {
	if v, ok := r[col]; ok {
		return v
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		if strings.EqualFold(strings.TrimSpace(k), col) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	// several loose matches: pick one in a fixed order
	slices.Sort(keys)
	return r[keys[0]]
}

// DateKey returns the record date as YYYY-MM-DD, or "" when the date is null.
func (r Record) DateKey() string {
	if !r.HasDate {
		return ""
	}
	return r.Date.Format("2006-01-02")
}

// Field returns a trimmed raw column value.
func (r Record) Field(col string) string {
	return strings.TrimSpace(r.Fields.Get(col))
}

// Normalize coerces Amount and Date on every row and derives Year, Month and
// YearMonth. Malformed values become nulls; Normalize never fails and keeps
// input order.
func Normalize(raw []RawRecord) []Record {
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		rec := Record{Fields: r}
		rec.Amount, rec.HasAmount = ParseAmount(r.Get(ColumnAmount))
		if d, ok := ParseDate(r.Get(ColumnDate)); ok {
			rec.Date = d
			rec.HasDate = true
			rec.Year = d.Year()
			rec.Month = int(d.Month())
			rec.YearMonth = d.Format("2006-01")
		}
		out = append(out, rec)
	}
	return out
}
