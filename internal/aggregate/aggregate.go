// Package aggregate derives grouped-and-summed views from normalised records.
//
// Every function here is a pure function of its input: the same records always
// produce the same tables, rows sorted by key tuple ascending. Records whose
// Date is null are left out of date-keyed groupings and counted in Stats.
package aggregate

import (
	"slices"
	"strings"

	"spendboard/internal/core"
)

// Grouping dimension names. Anything else is looked up as a raw column.
const (
	DimYearMonth = "Year-Month"
	DimYear      = "Year"
	DimDate      = "Date"
)

type (
	// Row is one group: its key values in Dimensions order and the summed Amount.
	Row struct {
		Keys   []string
		Amount core.Money
	}

	// Table is an Aggregate View.
	Table struct {
		Dimensions []string
		Rows       []Row
	}

	// Stats describes the input a set of views was computed from.
	Stats struct {
		Records     int
		UndatedRows int
		NullAmounts int
	}

	ExpenseViews struct {
		Monthly         Table
		CategoryMonthly Table
		Yearly          Table
		Daily           Table
		Stats           Stats
	}

	InvestmentViews struct {
		MonthlyByType Table
		YearlyByType  Table
		Stats         Stats
	}
)

// Expenses computes the four expense views.
func Expenses(records []core.Record) ExpenseViews {
	return ExpenseViews{
		Monthly:         GroupSum(records, DimYearMonth),
		CategoryMonthly: GroupSum(records, DimYearMonth, core.ColumnCategory),
		Yearly:          GroupSum(records, DimYear),
		Daily:           GroupSum(records, DimDate),
		Stats:           statsOf(records),
	}
}

// Investments computes the monthly and yearly totals by investment type.
func Investments(records []core.Record) InvestmentViews {
	return InvestmentViews{
		MonthlyByType: GroupSum(records, DimYearMonth, core.ColumnInvestmentType),
		YearlyByType:  GroupSum(records, DimYear, core.ColumnInvestmentType),
		Stats:         statsOf(records),
	}
}

// GroupSum groups records by the given dimensions and sums Amount, counting a
// null Amount as zero. A group is created even if all its amounts are null.
func GroupSum(records []core.Record, dims ...string) Table {
	sums := make(map[string]*Row)
	for _, r := range records {
		keys, ok := keyOf(r, dims)
		if !ok {
			continue
		}
		id := strings.Join(keys, "\x00")
		row, found := sums[id]
		if !found {
			row = &Row{Keys: keys}
			sums[id] = row
		}
		if r.HasAmount {
			row.Amount = row.Amount.Add(r.Amount)
		}
	}

	t := Table{Dimensions: slices.Clone(dims), Rows: make([]Row, 0, len(sums))}
	for _, row := range sums {
		t.Rows = append(t.Rows, *row)
	}
	slices.SortFunc(t.Rows, func(a, b Row) int {
		return slices.Compare(a.Keys, b.Keys)
	})
	return t
}

// keyOf returns false when a date dimension is requested for an undated record.
func keyOf(r core.Record, dims []string) ([]string, bool) {
	keys := make([]string, len(dims))
	for i, d := range dims {
		switch d {
		case DimYearMonth:
			if !r.HasDate {
				return nil, false
			}
			keys[i] = r.YearMonth
		case DimYear:
			if !r.HasDate {
				return nil, false
			}
			keys[i] = r.Date.Format("2006")
		case DimDate:
			if !r.HasDate {
				return nil, false
			}
			keys[i] = r.DateKey()
		default:
			keys[i] = r.Field(d)
		}
	}
	return keys, true
}

func statsOf(records []core.Record) Stats {
	s := Stats{Records: len(records)}
	for _, r := range records {
		if !r.HasDate {
			s.UndatedRows++
		}
		if !r.HasAmount {
			s.NullAmounts++
		}
	}
	return s
}

// Total sums Amount over all rows.
func (t Table) Total() core.Money {
	var m core.Money
	for _, r := range t.Rows {
		m = m.Add(r.Amount)
	}
	return m
}

// Lookup returns the amount stored under keys.
func (t Table) Lookup(keys ...string) (core.Money, bool) {
	for _, r := range t.Rows {
		if slices.Equal(r.Keys, keys) {
			return r.Amount, true
		}
	}
	return core.Money{}, false
}

// Groups returns the distinct values of dimension i in first-sorted order.
func (t Table) Groups(i int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		if i >= len(r.Keys) {
			continue
		}
		if _, ok := seen[r.Keys[i]]; ok {
			continue
		}
		seen[r.Keys[i]] = struct{}{}
		out = append(out, r.Keys[i])
	}
	slices.Sort(out)
	return out
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}
