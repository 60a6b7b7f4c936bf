package domain

import (
	"fmt"
	"math/big"
	"sort"
)

// AggregateTable accumulates referral fees per (referrer, fee token).
// Amounts use big.Int because fee values routinely exceed 64-bit range.
// A table is owned by exactly one indexing run and is never shared.
type AggregateTable struct {
	totals map[string]map[string]*big.Int // referrer -> fee token -> total
}

// NewAggregateTable creates an empty aggregate table.
func NewAggregateTable() *AggregateTable {
	return &AggregateTable{
		totals: make(map[string]map[string]*big.Int),
	}
}

// Add accumulates amount into the (referrer, feeToken) bucket.
// Addition is associative and commutative, so the final totals do not
// depend on the order records or pages are folded in.
func (t *AggregateTable) Add(referrer, feeToken string, amount *big.Int) {
	tokens, ok := t.totals[referrer]
	if !ok {
		tokens = make(map[string]*big.Int)
		t.totals[referrer] = tokens
	}

	total, ok := tokens[feeToken]
	if !ok {
		total = new(big.Int)
		tokens[feeToken] = total
	}
	total.Add(total, amount)
}

// AddRecord parses the record's decimal fee amount and accumulates it.
// Token and referrer strings are carried verbatim; no case or format
// normalization is applied.
func (t *AggregateTable) AddRecord(r FeeRecord) error {
	amount, ok := new(big.Int).SetString(r.ReferrerFee, 10)
	if !ok {
		return fmt.Errorf("record %s: invalid fee amount %q", r.ID, r.ReferrerFee)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("record %s: negative fee amount %q", r.ID, r.ReferrerFee)
	}
	t.Add(r.Referrer, r.FeeToken, amount)
	return nil
}

// Total returns the accumulated amount for (referrer, feeToken), or nil
// if nothing was accumulated. The returned value must not be mutated.
func (t *AggregateTable) Total(referrer, feeToken string) *big.Int {
	return t.totals[referrer][feeToken]
}

// Empty reports whether no fees were accumulated.
func (t *AggregateTable) Empty() bool {
	return len(t.totals) == 0
}

// AggregateRow is one flattened (referrer, fee token, total) entry.
// The total is string-encoded to preserve precision across export.
type AggregateRow struct {
	Referrer string
	FeeToken string
	TotalFee string
}

// Rows flattens the table into rows sorted by (referrer, fee token) for
// deterministic export output.
func (t *AggregateTable) Rows() []AggregateRow {
	var rows []AggregateRow
	for referrer, tokens := range t.totals {
		for token, total := range tokens {
			rows = append(rows, AggregateRow{
				Referrer: referrer,
				FeeToken: token,
				TotalFee: total.String(),
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Referrer != rows[j].Referrer {
			return rows[i].Referrer < rows[j].Referrer
		}
		return rows[i].FeeToken < rows[j].FeeToken
	})

	return rows
}
