package postgres

import (
	"context"
	"fmt"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/storage"
)

// AggregateStore implements storage.AggregateStore using PostgreSQL.
type AggregateStore struct {
	pool *Pool
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(pool *Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

// InsertBulk adds snapshot rows atomically. Fails entire batch on any
// duplicate (run_id, chain_id, referrer, fee_token).
func (s *AggregateStore) InsertBulk(ctx context.Context, snapshots []*domain.AggregateSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO aggregate_snapshots (
			run_id, chain_id, referrer, fee_token, total_fee, truncated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, snap := range snapshots {
		if snap == nil || snap.RunID == "" || snap.ChainID == "" || snap.Referrer == "" || snap.FeeToken == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			snap.RunID,
			snap.ChainID,
			snap.Referrer,
			snap.FeeToken,
			snap.TotalFee,
			snap.Truncated,
			snap.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert aggregate snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRun retrieves all snapshots for a run, ordered by
// (chain_id, referrer, fee_token).
func (s *AggregateStore) GetByRun(ctx context.Context, runID string) ([]*domain.AggregateSnapshot, error) {
	query := `
		SELECT run_id, chain_id, referrer, fee_token, total_fee, truncated, created_at
		FROM aggregate_snapshots
		WHERE run_id = $1
		ORDER BY chain_id, referrer, fee_token
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query aggregate snapshots: %w", err)
	}
	defer rows.Close()

	var out []*domain.AggregateSnapshot
	for rows.Next() {
		var snap domain.AggregateSnapshot
		if err := rows.Scan(
			&snap.RunID,
			&snap.ChainID,
			&snap.Referrer,
			&snap.FeeToken,
			&snap.TotalFee,
			&snap.Truncated,
			&snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan aggregate snapshot: %w", err)
		}
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate snapshots: %w", err)
	}

	return out, nil
}
