// Package export writes finished per-chain aggregates for downstream use.
package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"referral-indexer/internal/domain"
)

// Exporter receives one finished aggregate per (chain, referrer) pair.
// Implementations must treat the table as read-only.
type Exporter interface {
	Write(ctx context.Context, chainID, referrer string, table *domain.AggregateTable) error
}

// RenderCSV renders aggregate rows as a CSV string. Totals stay
// string-encoded so no precision is lost on the way out.
func RenderCSV(rows []domain.AggregateRow) string {
	var sb strings.Builder

	sb.WriteString("referrer,fee_token,total_fee\n")

	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s\n", row.Referrer, row.FeeToken, row.TotalFee))
	}

	return sb.String()
}

// CSVExporter writes one CSV file per (chain, referrer) pair into a
// directory, creating it on first use.
type CSVExporter struct {
	dir    string
	logger *log.Logger
}

// NewCSVExporter creates a CSV exporter rooted at dir.
func NewCSVExporter(dir string, logger *log.Logger) *CSVExporter {
	if logger == nil {
		logger = log.Default()
	}
	return &CSVExporter{dir: dir, logger: logger}
}

// Compile-time interface check.
var _ Exporter = (*CSVExporter)(nil)

// Write renders the table and writes <chain>_<referrer>.csv, replacing any
// file from a previous run.
func (e *CSVExporter) Write(_ context.Context, chainID, referrer string, table *domain.AggregateTable) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("%s_%s.csv", chainID, referrer))
	data := RenderCSV(table.Rows())

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}

	e.logger.Printf("Exported %s", path)
	return nil
}
