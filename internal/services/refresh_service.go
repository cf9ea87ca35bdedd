package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"spendboard/internal/aggregate"
	"spendboard/internal/core"
	"spendboard/internal/log"
	"spendboard/internal/sheets"
)

// RefreshConfig holds configuration for the refresher
type RefreshConfig struct {
	ExpensesSheet    string
	InvestmentsSheet string

	// SourceTimeout bounds each individual fetch attempt (default: 15s)
	SourceTimeout time.Duration

	// Retries is the number of extra attempts after a failed fetch (default: 3)
	Retries int

	// Backoff is the base delay of the exponential backoff (default: 500ms)
	Backoff time.Duration
}

// DefaultRefreshConfig returns sensible defaults
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		ExpensesSheet:    "Expenses",
		InvestmentsSheet: "Mutual Funds and Investments",
		SourceTimeout:    15 * time.Second,
		Retries:          3,
		Backoff:          500 * time.Millisecond,
	}
}

// Snapshot is one complete set of views computed from a single refresh.
// It is never modified after being published.
type Snapshot struct {
	Version     uint64
	RefreshedAt time.Time
	Expenses    aggregate.ExpenseViews
	Investments aggregate.InvestmentViews
}

// Loaded reports whether the snapshot came from a successful refresh.
func (s *Snapshot) Loaded() bool {
	return s.Version > 0
}

// Refresher owns the published snapshot. Readers call Current; writers
// replace the snapshot wholesale through Refresh.
type Refresher struct {
	source  sheets.RecordSource
	config  RefreshConfig
	logger  *log.Logger
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	group   singleflight.Group
	now     func() time.Time
}

// NewRefresher creates a refresher holding an empty snapshot.
func NewRefresher(source sheets.RecordSource, config RefreshConfig, logger *log.Logger) *Refresher {
	defaults := DefaultRefreshConfig()
	if config.ExpensesSheet == "" {
		config.ExpensesSheet = defaults.ExpensesSheet
	}
	if config.InvestmentsSheet == "" {
		config.InvestmentsSheet = defaults.InvestmentsSheet
	}
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = defaults.SourceTimeout
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.Backoff <= 0 {
		config.Backoff = defaults.Backoff
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	r := &Refresher{
		source: source,
		config: config,
		logger: logger.WithComponent(log.ComponentRefresh),
		now:    time.Now,
	}
	r.current.Store(&Snapshot{
		Expenses:    aggregate.Expenses(nil),
		Investments: aggregate.Investments(nil),
	})
	return r
}

// Current returns the latest published snapshot. It is never nil.
func (r *Refresher) Current() *Snapshot {
	return r.current.Load()
}

// Loaded reports whether at least one refresh has succeeded.
func (r *Refresher) Loaded() bool {
	return r.Current().Loaded()
}

// Refresh re-reads both sheets and publishes a new snapshot. Concurrent
// callers share a single in-flight run. On failure the previous snapshot
// stays published and the returned error wraps core.ErrSourceUnavailable.
// When ctx ends first the shared run keeps going and ctx.Err() is returned
// as is.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	ch := r.group.DoChan("refresh", func() (interface{}, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (r *Refresher) refresh(ctx context.Context) (*Snapshot, error) {
	start := r.now()
	r.logger.InfoContext(ctx, "Refresh started",
		log.FieldOperation, log.OpRefresh,
		"expenses_sheet", r.config.ExpensesSheet,
		"investments_sheet", r.config.InvestmentsSheet)

	var expenses, investments []core.RawRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := r.fetch(gctx, r.config.ExpensesSheet)
		expenses = recs
		return err
	})
	g.Go(func() error {
		recs, err := r.fetch(gctx, r.config.InvestmentsSheet)
		investments = recs
		return err
	})
	if err := g.Wait(); err != nil {
		r.logger.ErrorContext(ctx, "Refresh failed, keeping previous snapshot",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err,
			log.FieldVersion, r.Current().Version,
			log.FieldDuration, r.now().Sub(start).Milliseconds())
		return nil, err
	}

	snap := &Snapshot{
		Version:     r.version.Add(1),
		RefreshedAt: r.now(),
		Expenses:    aggregate.Expenses(core.Normalize(expenses)),
		Investments: aggregate.Investments(core.Normalize(investments)),
	}
	r.current.Store(snap)

	r.logger.InfoContext(ctx, "Refresh completed",
		log.FieldOperation, log.OpRefresh,
		log.FieldVersion, snap.Version,
		"expense_rows", snap.Expenses.Stats.Records,
		"investment_rows", snap.Investments.Stats.Records,
		log.FieldUndatedRows, snap.Expenses.Stats.UndatedRows+snap.Investments.Stats.UndatedRows,
		log.FieldNullAmounts, snap.Expenses.Stats.NullAmounts+snap.Investments.Stats.NullAmounts,
		log.FieldDuration, r.now().Sub(start).Milliseconds())
	return snap, nil
}

// fetch reads one sheet, bounding every attempt by SourceTimeout and retrying
// with exponential backoff.
func (r *Refresher) fetch(ctx context.Context, sheet string) ([]core.RawRecord, error) {
	backoff := retry.WithMaxRetries(uint64(r.config.Retries), retry.NewExponential(r.config.Backoff))

	var recs []core.RawRecord
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, r.config.SourceTimeout)
		defer cancel()

		got, err := r.source.FetchRecords(actx, sheet)
		if err != nil {
			r.logger.WarnContext(ctx, "Sheet fetch failed",
				log.FieldSheet, sheet,
				log.FieldAttempt, attempt,
				log.FieldError, err)
			return retry.RetryableError(err)
		}
		recs = got
		return nil
	})
	if err != nil {
		if !errors.Is(err, core.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("fetch %q: %w", sheet, err)
	}

	r.logger.DebugContext(ctx, "Sheet fetched", log.NewFields().WithSheet(sheet, len(recs)).ToSlice()...)
	return recs, nil
}

// Run refreshes every interval until ctx is cancelled. A non-positive
// interval disables the loop.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.logger.InfoContext(ctx, "Periodic refresh enabled", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are already logged by refresh.
			_, _ = r.Refresh(ctx)
		}
	}
}
