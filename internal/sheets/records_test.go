package sheets

import (
	"strings"
	"testing"
)

func TestToRecordsMapsHeaderAndPadsShortRows(t *testing.T) {
	recs, err := ToRecords([][]string{
		{"Date", "Amount", "Category", ""},
		{"2024-01-05", "100", "Food"},
		{"2024-01-06"},
		{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0]["Category"] != "Food" || recs[0]["Amount"] != "100" {
		t.Fatalf("row 1 mismatch: %v", recs[0])
	}
	if v, ok := recs[1]["Category"]; !ok || v != "" {
		t.Fatalf("short row not padded: %v", recs[1])
	}
	if len(recs[2]) != 3 {
		t.Fatalf("blank row should keep every column: %v", recs[2])
	}
}

func TestToRecordsRejectsBadHeaders(t *testing.T) {
	cases := map[string][][]string{
		"duplicate": {{"Date", "Amount", "Date"}},
		"blank":     {{"Date", "", "Amount"}},
		"case only": {{"Date", "amount", "AMOUNT"}},
		"spacing":   {{"Date", "Amount", " amount "}},
	}
	for name, values := range cases {
		if _, err := ToRecords(values); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := ToRecords([][]string{{"A", "A"}})
	if err == nil || !strings.Contains(err.Error(), "repeated") {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = ToRecords([][]string{{"Category", "category"}})
	if err == nil || !strings.Contains(err.Error(), "columns 1 and 2") {
		t.Fatalf("case-only duplicate not reported: %v", err)
	}
}

func TestToRecordsEmptySheet(t *testing.T) {
	recs, err := ToRecords(nil)
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected no records, got %v (err=%v)", recs, err)
	}
	recs, err = ToRecords([][]string{{"Date", "Amount"}})
	if err != nil || len(recs) != 0 {
		t.Fatalf("header only sheet: %v (err=%v)", recs, err)
	}
}
