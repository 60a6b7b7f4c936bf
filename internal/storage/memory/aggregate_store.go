package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/storage"
)

// AggregateStore is an in-memory implementation of storage.AggregateStore.
type AggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AggregateSnapshot // keyed by composite key
}

// NewAggregateStore creates a new in-memory aggregate snapshot store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		data: make(map[string]*domain.AggregateSnapshot),
	}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

func snapshotKey(s *domain.AggregateSnapshot) string {
	return fmt.Sprintf("%s|%s|%s|%s", s.RunID, s.ChainID, s.Referrer, s.FeeToken)
}

// InsertBulk adds snapshot rows atomically. Fails the entire batch with
// ErrDuplicateKey on any existing or intra-batch duplicate key.
func (s *AggregateStore) InsertBulk(_ context.Context, snapshots []*domain.AggregateSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.RunID == "" || snap.ChainID == "" || snap.Referrer == "" || snap.FeeToken == "" {
			return storage.ErrInvalidInput
		}
		key := snapshotKey(snap)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, snap := range snapshots {
		snapCopy := *snap
		s.data[snapshotKey(snap)] = &snapCopy
	}

	return nil
}

// GetByRun retrieves all snapshots for a run, ordered by
// (chain_id, referrer, fee_token).
func (s *AggregateStore) GetByRun(_ context.Context, runID string) ([]*domain.AggregateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.AggregateSnapshot
	for _, snap := range s.data {
		if snap.RunID == runID {
			snapCopy := *snap
			out = append(out, &snapCopy)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		if out[i].Referrer != out[j].Referrer {
			return out[i].Referrer < out[j].Referrer
		}
		return out[i].FeeToken < out[j].FeeToken
	})

	return out, nil
}
