package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spendboard/internal/core"
)

func TestStoreFetchAndIsolation(t *testing.T) {
	s := New(map[string][]core.RawRecord{
		"Expenses": {{"Date": "2024-01-05", "Amount": "100"}},
	})
	recs, err := s.FetchRecords(context.Background(), "Expenses")
	if err != nil || len(recs) != 1 {
		t.Fatalf("unexpected fetch: recs=%v err=%v", recs, err)
	}
	recs[0]["Amount"] = "999"
	again, _ := s.FetchRecords(context.Background(), "Expenses")
	if again[0]["Amount"] != "100" {
		t.Fatalf("caller mutation leaked into store: %v", again[0])
	}
}

func TestStoreUnknownSheet(t *testing.T) {
	s := New(nil)
	_, err := s.FetchRecords(context.Background(), "Missing")
	if !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	s.Set("Missing", nil)
	if _, err := s.FetchRecords(context.Background(), "Missing"); err != nil {
		t.Fatalf("expected empty sheet after Set, got %v", err)
	}
	s.Delete("Missing")
	if _, err := s.FetchRecords(context.Background(), "Missing"); !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable after Delete, got %v", err)
	}
}

func TestStoreCanceledContext(t *testing.T) {
	s := New(map[string][]core.RawRecord{"Expenses": nil})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.FetchRecords(ctx, "Expenses"); !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestNewFromDirSeedsCSV(t *testing.T) {
	dir := t.TempDir()
	content := "Date,Amount,Category\n2024-01-05,\"1,200.50\",Food\n2024-02-01,30\n"
	if err := os.WriteFile(filepath.Join(dir, "Expenses.csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromDir(dir, "Expenses", "Mutual Funds and Investments")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	recs, err := s.FetchRecords(context.Background(), "Expenses")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 2 || recs[0]["Amount"] != "1,200.50" || recs[1]["Category"] != "" {
		t.Fatalf("unexpected records: %v", recs)
	}
	if _, err := s.FetchRecords(context.Background(), "Mutual Funds and Investments"); !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("missing seed file should leave sheet unknown, got %v", err)
	}
}

func TestNewFromDirRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Expenses.csv"), []byte("Date,Date\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromDir(dir, "Expenses"); err == nil {
		t.Fatal("expected error for duplicate header")
	}
}
