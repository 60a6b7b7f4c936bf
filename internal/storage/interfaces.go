package storage

import (
	"context"

	"referral-indexer/internal/domain"
)

// FeeEventStore persists raw accepted fee records. Attached as an optional
// sink: the indexing loop works without one.
type FeeEventStore interface {
	// InsertBulk adds a batch of records for a chain. Fails the entire
	// batch with ErrDuplicateKey if any (chain_id, id) already exists.
	InsertBulk(ctx context.Context, chainID string, records []domain.FeeRecord) error

	// CountByChain returns how many records are stored for a chain.
	CountByChain(ctx context.Context, chainID string) (uint64, error)
}

// AggregateStore persists per-run aggregate snapshots.
type AggregateStore interface {
	// InsertBulk adds snapshot rows atomically. Returns ErrDuplicateKey
	// if any (run_id, chain_id, referrer, fee_token) already exists.
	InsertBulk(ctx context.Context, snapshots []*domain.AggregateSnapshot) error

	// GetByRun retrieves all snapshots for a run, ordered by
	// (chain_id, referrer, fee_token). Returns an empty slice if none.
	GetByRun(ctx context.Context, runID string) ([]*domain.AggregateSnapshot, error)
}
