package indexer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-indexer/internal/domain"
	"referral-indexer/internal/export"
	"referral-indexer/internal/storage/memory"
)

// collectExporter records every export it receives.
type collectExporter struct {
	mu     sync.Mutex
	writes map[string][]domain.AggregateRow // keyed by chainID|referrer
}

func newCollectExporter() *collectExporter {
	return &collectExporter{writes: make(map[string][]domain.AggregateRow)}
}

var _ export.Exporter = (*collectExporter)(nil)

func (e *collectExporter) Write(_ context.Context, chainID, referrer string, table *domain.AggregateTable) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes[chainID+"|"+referrer] = table.Rows()
	return nil
}

func chainPair() []domain.ChainConfig {
	return []domain.ChainConfig{
		{ChainID: "alpha", Endpoint: "https://indexer.test/alpha"},
		{ChainID: "beta", Endpoint: "https://indexer.test/beta"},
	}
}

func TestRunner_IndexesAllChainsAndExports(t *testing.T) {
	datasets := map[string][]domain.FeeRecord{
		"alpha": feeDataset(25, "0xref", func(i int) uint64 { return uint64(i + 1) }),
		"beta":  feeDataset(7, "0xref", func(i int) uint64 { return uint64(i + 100) }),
	}

	exporter := newCollectExporter()
	snapshots := memory.NewAggregateStore()

	runner := NewRunner(RunnerOptions{
		Chains:    chainPair(),
		Referrers: []string{"0xref"},
		NewSource: func(chain domain.ChainConfig) PageSource {
			return newStubService(datasets[chain.ChainID])
		},
		Exporter:  exporter,
		Snapshots: snapshots,
		PageSize:  10,
		MaxSkip:   50,
		Logger:    quietLogger(),
	}).WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.ChainsIndexed)
	assert.Equal(t, 32, summary.RecordsAccepted)
	assert.Equal(t, 2, summary.ExportsWritten)
	assert.Empty(t, summary.TruncatedChains)

	alphaRows := exporter.writes["alpha|0xref"]
	require.Len(t, alphaRows, 1)
	assert.Equal(t, "25", alphaRows[0].TotalFee)

	betaRows := exporter.writes["beta|0xref"]
	require.Len(t, betaRows, 1)
	assert.Equal(t, "7", betaRows[0].TotalFee)

	stored, err := snapshots.GetByRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "alpha", stored[0].ChainID)
	assert.Equal(t, "25", stored[0].TotalFee)
	assert.Equal(t, "beta", stored[1].ChainID)
	assert.False(t, stored[0].Truncated)
}

func TestRunner_SkipsExportForEmptyAggregates(t *testing.T) {
	exporter := newCollectExporter()

	runner := NewRunner(RunnerOptions{
		Chains:    chainPair(),
		Referrers: []string{"0xref"},
		NewSource: func(chain domain.ChainConfig) PageSource {
			return newStubService(nil)
		},
		Exporter: exporter,
		PageSize: 10,
		Logger:   quietLogger(),
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ChainsIndexed)
	assert.Zero(t, summary.ExportsWritten)
	assert.Empty(t, exporter.writes)
}

func TestRunner_MarksTruncatedChains(t *testing.T) {
	// alpha's upstream is dead: its retrier gives up every round, so the
	// run degrades to an empty (truncated) result while beta completes.
	datasets := map[string][]domain.FeeRecord{
		"beta": feeDataset(3, "0xref", func(i int) uint64 { return uint64(i + 1) }),
	}

	exporter := newCollectExporter()

	runner := NewRunner(RunnerOptions{
		Chains:    chainPair(),
		Referrers: []string{"0xref"},
		NewSource: func(chain domain.ChainConfig) PageSource {
			if chain.ChainID == "alpha" {
				service := newStubService(nil)
				service.failAll = true
				return NewRetrier(RetrierOptions{
					Source:      service,
					Limiter:     &countingLimiter{},
					MaxAttempts: 2,
					Delay:       time.Millisecond,
					Logger:      quietLogger(),
				})
			}
			return newStubService(datasets["beta"])
		},
		Exporter: exporter,
		PageSize: 10,
		Logger:   quietLogger(),
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err, "upstream failure must not fail the run")

	assert.Equal(t, []string{"alpha"}, summary.TruncatedChains)
	assert.Equal(t, 3, summary.RecordsAccepted)
	assert.Equal(t, 1, summary.ExportsWritten)
	assert.Contains(t, exporter.writes, "beta|0xref")
}

func TestRunner_MultipleReferrers(t *testing.T) {
	records := append(
		feeDataset(4, "0xaaa", func(i int) uint64 { return uint64(i + 1) }),
		feeDataset(2, "0xbbb", func(i int) uint64 { return uint64(i + 1) })...,
	)

	exporter := newCollectExporter()

	runner := NewRunner(RunnerOptions{
		Chains:    []domain.ChainConfig{{ChainID: "alpha", Endpoint: "https://indexer.test/alpha"}},
		Referrers: []string{"0xaaa", "0xbbb"},
		NewSource: func(chain domain.ChainConfig) PageSource {
			return newStubService(records)
		},
		Exporter: exporter,
		PageSize: 10,
		Logger:   quietLogger(),
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ChainsIndexed, "one run per (chain, referrer)")
	assert.Equal(t, 6, summary.RecordsAccepted)
	require.Contains(t, exporter.writes, "alpha|0xaaa")
	require.Contains(t, exporter.writes, "alpha|0xbbb")
	assert.Equal(t, "4", exporter.writes["alpha|0xaaa"][0].TotalFee)
	assert.Equal(t, "2", exporter.writes["alpha|0xbbb"][0].TotalFee)
}
