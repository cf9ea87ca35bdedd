package worker

import (
	"context"
	"errors"

	"spendboard/internal/amqp"
	"spendboard/internal/core"
	"spendboard/internal/log"
	"spendboard/internal/services"
)

// Refresher is the part of services.Refresher the worker drives.
type Refresher interface {
	Refresh(ctx context.Context) (*services.Snapshot, error)
}

// RefreshWorker turns broker messages into snapshot refreshes
type RefreshWorker struct {
	refresher Refresher
	logger    *log.Logger
}

func NewRefreshWorker(refresher Refresher, logger *log.Logger) *RefreshWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RefreshWorker{refresher: refresher, logger: logger.WithComponent(log.ComponentWorker)}
}

// Handle refreshes the snapshot for one request. An unavailable spreadsheet
// is logged and swallowed so the message is acked; any other error requeues.
func (w *RefreshWorker) Handle(ctx context.Context, msg *amqp.RefreshRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh request",
		"requested_by", msg.RequestedBy,
		"reason", msg.Reason,
		"requested_at", msg.Timestamp)

	snap, err := w.refresher.Refresh(ctx)
	switch {
	case err == nil:
		w.logger.InfoContext(ctx, "Refresh request completed",
			log.FieldOperation, log.OpRefresh,
			log.FieldVersion, snap.Version)
		return nil
	case errors.Is(err, core.ErrSourceUnavailable):
		w.logger.WarnContext(ctx, "Refresh request failed, keeping previous snapshot",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		return nil
	default:
		return err
	}
}

// Run consumes refresh requests until ctx is cancelled.
func (w *RefreshWorker) Run(ctx context.Context, client *amqp.Client) error {
	err := client.ConsumeRefreshRequests(ctx, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
