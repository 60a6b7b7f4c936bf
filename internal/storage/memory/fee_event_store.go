package memory

import (
	"context"
	"fmt"
	"sync"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/storage"
)

// FeeEventStore is an in-memory implementation of storage.FeeEventStore.
type FeeEventStore struct {
	mu   sync.RWMutex
	data map[string]domain.FeeRecord // keyed by chain_id|id
	byChain map[string]uint64
}

// NewFeeEventStore creates a new in-memory fee event store.
func NewFeeEventStore() *FeeEventStore {
	return &FeeEventStore{
		data:    make(map[string]domain.FeeRecord),
		byChain: make(map[string]uint64),
	}
}

// Compile-time interface check.
var _ storage.FeeEventStore = (*FeeEventStore)(nil)

func eventKey(chainID, id string) string {
	return fmt.Sprintf("%s|%s", chainID, id)
}

// InsertBulk adds a batch of records. Fails the entire batch with
// ErrDuplicateKey if any (chain_id, id) already exists.
func (s *FeeEventStore) InsertBulk(_ context.Context, chainID string, records []domain.FeeRecord) error {
	if chainID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return storage.ErrInvalidInput
		}
		key := eventKey(chainID, r.ID)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		s.data[eventKey(chainID, r.ID)] = r
	}
	s.byChain[chainID] += uint64(len(records))

	return nil
}

// CountByChain returns how many records are stored for a chain.
func (s *FeeEventStore) CountByChain(_ context.Context, chainID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byChain[chainID], nil
}
