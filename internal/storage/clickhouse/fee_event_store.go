package clickhouse

import (
	"context"
	"fmt"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/storage"
)

// FeeEventStore implements storage.FeeEventStore using ClickHouse.
// The table uses ReplacingMergeTree keyed on (chain_id, id), so re-inserting
// records from a re-run collapses at merge time instead of failing;
// InsertBulk therefore never reports ErrDuplicateKey.
type FeeEventStore struct {
	conn *Conn
}

// NewFeeEventStore creates a new FeeEventStore.
func NewFeeEventStore(conn *Conn) *FeeEventStore {
	return &FeeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeeEventStore = (*FeeEventStore)(nil)

// InsertBulk adds a batch of records for a chain.
func (s *FeeEventStore) InsertBulk(ctx context.Context, chainID string, records []domain.FeeRecord) error {
	if chainID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fee_events (
			chain_id, id, block_number, fee_token, referrer, referrer_fee
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			chainID, r.ID, r.BlockNumber, r.FeeToken, r.Referrer, r.ReferrerFee,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountByChain returns how many records are stored for a chain.
// Counts are approximate until ReplacingMergeTree merges settle.
func (s *FeeEventStore) CountByChain(ctx context.Context, chainID string) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM fee_events FINAL WHERE chain_id = ?`, chainID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fee events: %w", err)
	}
	return count, nil
}
