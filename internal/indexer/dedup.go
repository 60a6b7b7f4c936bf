package indexer

import "referral-indexer/internal/domain"

// Window strips already-processed records at page boundaries. Floor resets
// and retried requests can make a page restart at or before records that
// were already folded in; because the service's ordering is stable, that
// overlap is always a contiguous prefix of the new page, so holding the ids
// of just the previous accepted page is enough to make re-processing
// idempotent. Duplicates deeper than one page boundary are out of scope.
type Window struct {
	prev map[string]struct{}
}

// NewWindow creates an empty dedup window.
func NewWindow() *Window {
	return &Window{prev: make(map[string]struct{})}
}

// Filter returns the suffix of page that has not been processed yet: it
// scans from the start for the first id absent from the previous accepted
// page and discards everything before it. The window is then re-seeded with
// the ids of exactly the records accepted this round. A round that accepts
// nothing keeps the current window, since the most recently accepted page
// is still the one it holds.
func (w *Window) Filter(page []domain.FeeRecord) []domain.FeeRecord {
	start := 0
	for start < len(page) {
		if _, seen := w.prev[page[start].ID]; !seen {
			break
		}
		start++
	}

	accepted := page[start:]
	if len(accepted) == 0 {
		return nil
	}

	next := make(map[string]struct{}, len(accepted))
	for _, r := range accepted {
		next[r.ID] = struct{}{}
	}
	w.prev = next

	return accepted
}
