package sheets

import (
	"context"

	"spendboard/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordSource returns all rows of a named sheet tab in sheet order.
	// Failures wrap core.ErrSourceUnavailable.
	RecordSource interface {
		FetchRecords(ctx context.Context, sheet string) ([]core.RawRecord, error)
	}
)
