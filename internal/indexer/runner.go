package indexer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/export"
	"referral-indexer/internal/observability"
	"referral-indexer/internal/storage"
)

// Runner indexes every (referrer, chain) pair and hands the non-empty
// aggregates to the export collaborator. Referrers are processed
// sequentially; a referrer's chains run concurrently since they share no
// mutable state beyond the rate limiter, and all tasks are joined before
// export so shutdown is clean.
type Runner struct {
	chains    []domain.ChainConfig
	referrers []string
	newSource func(chain domain.ChainConfig) PageSource
	exporter  export.Exporter
	events    storage.FeeEventStore
	snapshots storage.AggregateStore
	pageSize  int
	maxSkip   int
	logger    *log.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Chains    []domain.ChainConfig
	Referrers []string

	// NewSource builds the (retry-wrapped) page source for a chain.
	NewSource func(chain domain.ChainConfig) PageSource

	// Exporter receives each non-empty aggregate once its chain is done.
	Exporter export.Exporter

	// Events optionally persists raw accepted records.
	Events storage.FeeEventStore

	// Snapshots optionally persists per-run aggregate rows.
	Snapshots storage.AggregateStore

	PageSize int
	MaxSkip  int
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// NewRunner creates a runner over the configured chains and referrers.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		chains:    opts.Chains,
		referrers: opts.Referrers,
		newSource: opts.NewSource,
		exporter:  opts.Exporter,
		events:    opts.Events,
		snapshots: opts.Snapshots,
		pageSize:  opts.PageSize,
		maxSkip:   opts.MaxSkip,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic snapshot timestamps.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunSummary reports the outcome of one full indexing run.
type RunSummary struct {
	RunID           string
	ChainsIndexed   int
	RecordsAccepted int
	ExportsWritten  int

	// TruncatedChains lists chain ids whose runs ended on retry
	// exhaustion; their totals may undercount.
	TruncatedChains []string
}

// Run indexes all (referrer, chain) pairs, exports the aggregates, and
// returns a summary. It fails only on context cancellation or a broken
// export/persistence collaborator; fetch-side trouble is absorbed below.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.NewString()}

	r.logger.Printf("Run %s: indexing %d referrer(s) across %d chain(s)", summary.RunID, len(r.referrers), len(r.chains))

	for _, referrer := range r.referrers {
		results := make([]*Result, len(r.chains))

		g, gctx := errgroup.WithContext(ctx)
		for i, chain := range r.chains {
			g.Go(func() error {
				ix := NewChainIndexer(ChainIndexerOptions{
					Chain:    chain,
					Referrer: referrer,
					Source:   r.newSource(chain),
					Events:   r.events,
					PageSize: r.pageSize,
					MaxSkip:  r.maxSkip,
					Logger:   r.logger,
					Metrics:  r.metrics,
				})
				res, err := ix.Run(gctx)
				if err != nil {
					return fmt.Errorf("chain %s referrer %s: %w", chain.ChainID, referrer, err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, res := range results {
			if err := r.finish(ctx, summary, res); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Printf("Run %s: %d chain run(s), %d records, %d export(s), %d truncated",
		summary.RunID, summary.ChainsIndexed, summary.RecordsAccepted, summary.ExportsWritten, len(summary.TruncatedChains))

	return summary, nil
}

// finish folds one chain result into the summary, exports its aggregate,
// and persists the snapshot rows.
func (r *Runner) finish(ctx context.Context, summary *RunSummary, res *Result) error {
	summary.ChainsIndexed++
	summary.RecordsAccepted += res.RecordsAccepted
	if res.Truncated {
		summary.TruncatedChains = append(summary.TruncatedChains, res.Chain.ChainID)
	}

	// Empty aggregates are skipped entirely, truncated or not.
	if res.Aggregate.Empty() {
		return nil
	}

	if r.exporter != nil {
		if err := r.exporter.Write(ctx, res.Chain.ChainID, res.Referrer, res.Aggregate); err != nil {
			if r.metrics != nil {
				r.metrics.ExportErrors.Inc()
			}
			return fmt.Errorf("export chain %s referrer %s: %w", res.Chain.ChainID, res.Referrer, err)
		}
		summary.ExportsWritten++
		if r.metrics != nil {
			r.metrics.ExportsWritten.Inc()
		}
	}

	if r.snapshots != nil {
		if err := r.snapshots.InsertBulk(ctx, r.snapshotRows(summary.RunID, res)); err != nil {
			return fmt.Errorf("persist snapshots for chain %s: %w", res.Chain.ChainID, err)
		}
	}

	return nil
}

// snapshotRows flattens a chain result into persistable snapshot rows.
func (r *Runner) snapshotRows(runID string, res *Result) []*domain.AggregateSnapshot {
	rows := res.Aggregate.Rows()
	snapshots := make([]*domain.AggregateSnapshot, len(rows))
	for i, row := range rows {
		snapshots[i] = &domain.AggregateSnapshot{
			RunID:     runID,
			ChainID:   res.Chain.ChainID,
			Referrer:  row.Referrer,
			FeeToken:  row.FeeToken,
			TotalFee:  row.TotalFee,
			Truncated: res.Truncated,
			CreatedAt: r.now(),
		}
	}
	return snapshots
}
