package export

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-indexer/internal/domain"
)

func TestRenderCSV(t *testing.T) {
	rows := []domain.AggregateRow{
		{Referrer: "0xref", FeeToken: "0xa", TotalFee: "123456789012345678901234567890"},
		{Referrer: "0xref", FeeToken: "0xb", TotalFee: "5"},
	}

	got := RenderCSV(rows)
	want := "referrer,fee_token,total_fee\n" +
		"0xref,0xa,123456789012345678901234567890\n" +
		"0xref,0xb,5\n"
	assert.Equal(t, want, got)
}

func TestRenderCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	assert.Equal(t, "referrer,fee_token,total_fee\n", RenderCSV(nil))
}

func TestCSVExporter_WritesFilePerChainReferrer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	table := domain.NewAggregateTable()
	table.Add("0xref", "0xtok", big.NewInt(42))

	exporter := NewCSVExporter(dir, nil)
	err := exporter.Write(context.Background(), "arbitrum", "0xref", table)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "arbitrum_0xref.csv"))
	require.NoError(t, err)
	assert.Equal(t, "referrer,fee_token,total_fee\n0xref,0xtok,42\n", string(data))
}

func TestCSVExporter_OverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	exporter := NewCSVExporter(dir, nil)

	first := domain.NewAggregateTable()
	first.Add("0xref", "0xtok", big.NewInt(1))
	require.NoError(t, exporter.Write(context.Background(), "c", "0xref", first))

	second := domain.NewAggregateTable()
	second.Add("0xref", "0xtok", big.NewInt(2))
	require.NoError(t, exporter.Write(context.Background(), "c", "0xref", second))

	data, err := os.ReadFile(filepath.Join(dir, "c_0xref.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ",2\n")
	assert.NotContains(t, string(data), ",1\n")
}
