package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spendboard/internal/amqp"
	"spendboard/internal/core"
	"spendboard/internal/log"
	"spendboard/internal/services"
)

type stubRefresher struct {
	err   error
	calls int
}

func (s *stubRefresher) Refresh(context.Context) (*services.Snapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &services.Snapshot{Version: uint64(s.calls)}, nil
}

func newWorker(r Refresher) *RefreshWorker {
	return NewRefreshWorker(r, log.New(log.Config{Output: io.Discard}))
}

func TestHandleRefreshes(t *testing.T) {
	r := &stubRefresher{}
	err := newWorker(r).Handle(context.Background(), amqp.NewRefreshRequestMessage("cron", "nightly"))
	assert.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestHandleAcksSourceFailures(t *testing.T) {
	r := &stubRefresher{err: fmt.Errorf("fetch Expenses: %w", core.ErrSourceUnavailable)}
	err := newWorker(r).Handle(context.Background(), amqp.NewRefreshRequestMessage("cron", ""))
	assert.NoError(t, err, "source failures must not requeue")
}

func TestHandleRequeuesOtherFailures(t *testing.T) {
	r := &stubRefresher{err: context.DeadlineExceeded}
	err := newWorker(r).Handle(context.Background(), amqp.NewRefreshRequestMessage("cron", ""))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type blockingSource struct{ release chan struct{} }

func (b blockingSource) FetchRecords(ctx context.Context, sheet string) ([]core.RawRecord, error) {
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestHandleRequeuesWhenShuttingDown(t *testing.T) {
	src := blockingSource{release: make(chan struct{})}
	t.Cleanup(func() { close(src.release) })
	refresher := services.NewRefresher(src, services.RefreshConfig{
		ExpensesSheet:    "Expenses",
		InvestmentsSheet: "Investments",
		SourceTimeout:    time.Second,
		Retries:          1,
		Backoff:          time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newWorker(refresher).Handle(ctx, amqp.NewRefreshRequestMessage("cron", "shutdown"))
	assert.ErrorIs(t, err, context.Canceled, "interrupted refresh must be requeued")
	assert.False(t, errors.Is(err, core.ErrSourceUnavailable))
}
