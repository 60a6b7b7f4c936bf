package indexer

import (
	"context"

	"referral-indexer/internal/domain"
)

// PageSource provides one page of fee records from the indexing service.
type PageSource interface {
	// FetchPage returns up to pageSize records for referrer, filtered to
	// blockNumber >= blockFloor, offset by skip, in a stable total order.
	// A short page means the stream is exhausted at this position.
	FetchPage(ctx context.Context, referrer string, blockFloor uint64, skip, pageSize int) ([]domain.FeeRecord, error)
}

// Limiter gates outbound requests. One limiter is shared across every
// concurrent indexing run; the service throttles clients above its
// request ceiling, so this is a correctness constraint, not tuning.
type Limiter interface {
	Wait(ctx context.Context) error
}
