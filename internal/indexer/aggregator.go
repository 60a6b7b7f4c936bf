package indexer

import (
	"log"

	"referral-indexer/internal/domain"
)

// foldPage folds accepted records into the aggregate table and returns the
// updated table, which the caller passes forward to the next round. The
// fold adds every record exactly once; since big-int addition is
// associative and commutative, totals are independent of page order.
//
// Records with an unparseable amount are logged and skipped rather than
// aborting the run; the graph client validates amounts at decode time, so
// this only fires for records injected by other sources.
func foldPage(table *domain.AggregateTable, records []domain.FeeRecord, logger *log.Logger) *domain.AggregateTable {
	for _, r := range records {
		if err := table.AddRecord(r); err != nil {
			logger.Printf("Skipping record: %v", err)
		}
	}
	return table
}
