package core

import "testing"

func TestNormalizeDerivesCalendarFields(t *testing.T) {
	recs := Normalize([]RawRecord{
		{"Date": "2024-01-05", "Amount": "100", "Category": "Food"},
		{"Date": "garbage", "Amount": "x", "Category": "Food"},
		{"Category": "Travel"},
	})
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	r := recs[0]
	if !r.HasDate || !r.HasAmount {
		t.Fatalf("first record should be fully parsed: %+v", r)
	}
	if r.Year != 2024 || r.Month != 1 || r.YearMonth != "2024-01" || r.DateKey() != "2024-01-05" {
		t.Fatalf("unexpected derived fields: %+v", r)
	}
	if r.Amount.Cents != 10000 {
		t.Fatalf("amount cents: %d", r.Amount.Cents)
	}
	if r.Field(ColumnCategory) != "Food" {
		t.Fatalf("category lost: %q", r.Field(ColumnCategory))
	}

	for i, r := range recs[1:] {
		if r.HasDate || r.HasAmount {
			t.Fatalf("record %d should have null date and amount: %+v", i+1, r)
		}
		if r.Year != 0 || r.YearMonth != "" || r.DateKey() != "" {
			t.Fatalf("null date must not derive fields: %+v", r)
		}
	}
}

func TestNormalizeKeepsOrderAndEmptyInput(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %v", got)
	}
	recs := Normalize([]RawRecord{{"Amount": "1"}, {"Amount": "2"}, {"Amount": "3"}})
	for i, r := range recs {
		if r.Amount.Cents != int64(i+1)*100 {
			t.Fatalf("order changed at %d: %+v", i, r)
		}
	}
}

func TestRawRecordGetFallsBackToLooseHeaderMatch(t *testing.T) {
	r := RawRecord{" amount ": "5"}
	if got := r.Get(ColumnAmount); got != "5" {
		t.Fatalf("expected loose header match, got %q", got)
	}
	if got := r.Get("Missing"); got != "" {
		t.Fatalf("expected empty for missing column, got %q", got)
	}
}

func TestRawRecordGetLooseMatchIsDeterministic(t *testing.T) {
	r := RawRecord{"amount": "1", "AMOUNT": "2", " Amount ": "3"}
	for i := 0; i < 50; i++ {
		if got := r.Get("aMoUnT"); got != "3" {
			t.Fatalf("run %d: expected first key in sorted order, got %q", i, got)
		}
	}
	if got := r.Get("amount"); got != "1" {
		t.Fatalf("exact header should win, got %q", got)
	}
}
