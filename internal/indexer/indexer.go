// Package indexer implements the resilient paginated-fetch engine: it walks
// an externally paginated fee-event stream per chain, dedups page overlap,
// and folds records into per-referrer aggregates.
package indexer

import (
	"context"
	"errors"
	"log"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/observability"
	"referral-indexer/internal/storage"
)

// runState is the chain indexer's position in its fetch loop.
type runState int

const (
	stateFetching runState = iota
	stateAdvancing
	stateDone
)

// ChainIndexer drives one (chain, referrer) pair's paginated fetch to
// completion. It owns its cursor, dedup window, and aggregate table
// exclusively; no locking is needed.
type ChainIndexer struct {
	chain    domain.ChainConfig
	referrer string
	source   PageSource
	events   storage.FeeEventStore
	pageSize int
	maxSkip  int
	logger   *log.Logger
	metrics  *observability.Metrics
}

// ChainIndexerOptions configures a ChainIndexer.
type ChainIndexerOptions struct {
	Chain    domain.ChainConfig
	Referrer string

	// Source is the page source, already wrapped with retry policy.
	Source PageSource

	// Events optionally receives every accepted record.
	Events storage.FeeEventStore

	PageSize int
	MaxSkip  int
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// NewChainIndexer creates an indexer for one (chain, referrer) pair.
func NewChainIndexer(opts ChainIndexerOptions) *ChainIndexer {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	maxSkip := opts.MaxSkip
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &ChainIndexer{
		chain:    opts.Chain,
		referrer: opts.Referrer,
		source:   opts.Source,
		events:   opts.Events,
		pageSize: pageSize,
		maxSkip:  maxSkip,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Result summarizes one finished chain run.
type Result struct {
	Chain    domain.ChainConfig
	Referrer string

	// Aggregate holds the folded totals. Read-only after the run.
	Aggregate *domain.AggregateTable

	PagesFetched      int
	RecordsAccepted   int
	DuplicatesDropped int

	// Truncated is set when the run ended because retries were exhausted
	// rather than a genuine short page. The aggregate may be incomplete.
	Truncated bool
}

// Run executes the fetch loop until the stream is exhausted. The only error
// it returns is context cancellation; transient fetch failures are absorbed
// below and retry exhaustion degrades to end-of-data with Truncated set.
func (ix *ChainIndexer) Run(ctx context.Context) (*Result, error) {
	cursor := NewCursor(ix.pageSize, ix.maxSkip)
	window := NewWindow()
	table := domain.NewAggregateTable()

	result := &Result{
		Chain:    ix.chain,
		Referrer: ix.referrer,
	}

	var page []domain.FeeRecord

	for state := stateFetching; state != stateDone; {
		switch state {
		case stateFetching:
			var err error
			page, err = ix.source.FetchPage(ctx, ix.referrer, cursor.BlockNumber(), cursor.Skip(), ix.pageSize)
			if err != nil {
				if !errors.Is(err, ErrRetriesExhausted) {
					return nil, err
				}
				// Degrade to an empty page: observably the same as
				// end-of-data, but record that we gave up.
				ix.logger.Printf("Chain %s: giving up at block>=%d skip=%d, treating as end of data: %v",
					ix.chain.ChainID, cursor.BlockNumber(), cursor.Skip(), err)
				result.Truncated = true
				if ix.metrics != nil {
					ix.metrics.FetchFailures.WithLabelValues(ix.chain.ChainID).Inc()
				}
				page = nil
			}

			result.PagesFetched++
			if ix.metrics != nil {
				ix.metrics.PagesFetched.WithLabelValues(ix.chain.ChainID).Inc()
			}

			accepted := window.Filter(page)
			result.DuplicatesDropped += len(page) - len(accepted)
			table = foldPage(table, accepted, ix.logger)
			result.RecordsAccepted += len(accepted)

			if ix.metrics != nil {
				ix.metrics.RecordsAccepted.WithLabelValues(ix.chain.ChainID).Add(float64(len(accepted)))
				ix.metrics.DuplicatesDropped.WithLabelValues(ix.chain.ChainID).Add(float64(len(page) - len(accepted)))
			}

			ix.storeEvents(ctx, accepted)

			if len(page) < ix.pageSize {
				state = stateDone
			} else {
				state = stateAdvancing
			}

		case stateAdvancing:
			cursor.Advance(page[len(page)-1].BlockNumber)
			state = stateFetching
		}
	}

	result.Aggregate = table

	if ix.metrics != nil {
		ix.metrics.ChainsIndexed.Inc()
		if result.Truncated {
			ix.metrics.ChainsTruncated.Inc()
		}
	}

	ix.logger.Printf("Chain %s referrer %s: done, %d pages, %d records, %d duplicates dropped, truncated=%v",
		ix.chain.ChainID, ix.referrer, result.PagesFetched, result.RecordsAccepted, result.DuplicatesDropped, result.Truncated)

	return result, nil
}

// storeEvents forwards accepted records to the optional raw-event sink.
// Duplicates from earlier runs are expected and not an error; anything else
// is logged and does not abort the loop.
func (ix *ChainIndexer) storeEvents(ctx context.Context, records []domain.FeeRecord) {
	if ix.events == nil || len(records) == 0 {
		return
	}
	if err := ix.events.InsertBulk(ctx, ix.chain.ChainID, records); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			ix.logger.Printf("Chain %s: storing %d fee events: %v", ix.chain.ChainID, len(records), err)
		}
	}
}
