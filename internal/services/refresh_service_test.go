package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spendboard/internal/core"
	"spendboard/internal/sheets/memory"
)

type flakySource struct {
	mu       sync.Mutex
	calls    map[string]int
	failFor  map[string]int // number of leading calls that fail, -1 = always
	tables   map[string][]core.RawRecord
	release  chan struct{}
	inFlight atomic.Int32
}

func newFlakySource(tables map[string][]core.RawRecord) *flakySource {
	return &flakySource{calls: map[string]int{}, failFor: map[string]int{}, tables: tables}
}

func (f *flakySource) FetchRecords(ctx context.Context, sheet string) ([]core.RawRecord, error) {
	f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sheet]++
	if n := f.failFor[sheet]; n < 0 || f.calls[sheet] <= n {
		return nil, core.ErrSourceUnavailable
	}
	return f.tables[sheet], nil
}

func (f *flakySource) callsFor(sheet string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sheet]
}

func testConfig() RefreshConfig {
	return RefreshConfig{
		ExpensesSheet:    "Expenses",
		InvestmentsSheet: "Investments",
		SourceTimeout:    time.Second,
		Retries:          2,
		Backoff:          time.Millisecond,
	}
}

func sampleTables() map[string][]core.RawRecord {
	return map[string][]core.RawRecord{
		"Expenses": {
			{"Date": "2024-01-05", "Amount": "100", "Category": "Food"},
			{"Date": "2024-01-20", "Amount": "50", "Category": "Food"},
			{"Date": "2024-02-01", "Amount": "30", "Category": "Transport"},
		},
		"Investments": {
			{"Date": "2024-01-10", "Amount": "500", "Investment Type": "Index Fund"},
		},
	}
}

func TestNewRefresherStartsEmpty(t *testing.T) {
	r := NewRefresher(memory.New(nil), testConfig(), nil)
	snap := r.Current()
	if snap == nil {
		t.Fatal("Current must never be nil")
	}
	if r.Loaded() || snap.Version != 0 {
		t.Fatalf("expected unloaded snapshot, got version %d", snap.Version)
	}
	if !snap.Expenses.Monthly.Empty() {
		t.Fatal("expected empty views before first refresh")
	}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	r := NewRefresher(memory.New(sampleTables()), testConfig(), nil)
	snap, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap != r.Current() || !r.Loaded() || snap.Version != 1 {
		t.Fatalf("snapshot not published: %+v", snap)
	}
	if got, ok := snap.Expenses.Monthly.Lookup("2024-01"); !ok || got.Cents != 15000 {
		t.Fatalf("2024-01 total = %v (found %v), want 15000 cents", got, ok)
	}
	if got, ok := snap.Investments.MonthlyByType.Lookup("2024-01", "Index Fund"); !ok || got.Cents != 50000 {
		t.Fatalf("investment total = %v (found %v)", got, ok)
	}
	if snap.RefreshedAt.IsZero() {
		t.Fatal("RefreshedAt not set")
	}
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	src := memory.New(sampleTables())
	r := NewRefresher(src, testConfig(), nil)
	first, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	src.Delete("Investments")
	_, err = r.Refresh(context.Background())
	if !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if r.Current() != first {
		t.Fatal("failed refresh must leave the previous snapshot in place")
	}
}

func TestRefreshFailureBeforeFirstSuccessKeepsEmpty(t *testing.T) {
	r := NewRefresher(memory.New(nil), testConfig(), nil)
	if _, err := r.Refresh(context.Background()); !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if r.Loaded() {
		t.Fatal("refresher should still be unloaded")
	}
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	src := newFlakySource(sampleTables())
	src.failFor["Expenses"] = 2
	r := NewRefresher(src, testConfig(), nil)

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh should succeed after retries: %v", err)
	}
	if got := src.callsFor("Expenses"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRefreshGivesUpAfterRetries(t *testing.T) {
	src := newFlakySource(sampleTables())
	src.failFor["Investments"] = -1
	r := NewRefresher(src, testConfig(), nil)

	if _, err := r.Refresh(context.Background()); !errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if got := src.callsFor("Investments"); got != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", got)
	}
}

func TestConcurrentRefreshSharesOneRun(t *testing.T) {
	src := newFlakySource(sampleTables())
	src.release = make(chan struct{})
	r := NewRefresher(src, testConfig(), nil)

	var wg sync.WaitGroup
	results := make([]*Snapshot, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := r.Refresh(context.Background())
			if err != nil {
				t.Errorf("refresh %d: %v", i, err)
			}
			results[i] = snap
		}(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.inFlight.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if got := src.callsFor("Expenses"); got != 1 {
		t.Fatalf("expected one shared fetch, got %d", got)
	}
	for i, s := range results {
		if s == nil || s.Version != 1 {
			t.Fatalf("result %d: unexpected snapshot %+v", i, s)
		}
	}
}

func TestRefreshReturnsCallerCancellationUnwrapped(t *testing.T) {
	src := newFlakySource(sampleTables())
	src.release = make(chan struct{})
	r := NewRefresher(src, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.Refresh(ctx)
		errc <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for src.inFlight.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	var err error
	select {
	case err = <-errc:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not return after cancel")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, core.ErrSourceUnavailable) {
		t.Fatalf("cancellation must not look like a source outage: %v", err)
	}

	// the shared run is detached from ctx and still publishes
	close(src.release)
	deadline = time.Now().Add(2 * time.Second)
	for !r.Loaded() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !r.Loaded() {
		t.Fatal("detached refresh never published")
	}
}

func TestReadersSeeCompleteSnapshots(t *testing.T) {
	r := NewRefresher(memory.New(sampleTables()), testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _ = r.Refresh(ctx)
		}
	}()
	for i := 0; i < 200; i++ {
		snap := r.Current()
		if snap.Loaded() && snap.Expenses.Monthly.Total().Cents != 18000 {
			t.Fatalf("torn snapshot: total %d", snap.Expenses.Monthly.Total().Cents)
		}
	}
	wg.Wait()
}

func TestRunStopsOnCancel(t *testing.T) {
	r := NewRefresher(memory.New(sampleTables()), testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !r.Loaded() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !r.Loaded() {
		t.Fatal("periodic refresh never ran")
	}
}

func TestRunDisabledWithZeroInterval(t *testing.T) {
	r := NewRefresher(memory.New(sampleTables()), testConfig(), nil)
	r.Run(context.Background(), 0)
	if r.Loaded() {
		t.Fatal("zero interval must not refresh")
	}
}

func TestDefaultRefreshConfig(t *testing.T) {
	c := DefaultRefreshConfig()
	if c.SourceTimeout != 15*time.Second || c.Retries != 3 || c.Backoff != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.ExpensesSheet != "Expenses" || c.InvestmentsSheet != "Mutual Funds and Investments" {
		t.Fatalf("unexpected sheet defaults: %+v", c)
	}
}
