package indexer

// Default pagination geometry, matching the indexing service's limits.
const (
	DefaultPageSize = 1000
	DefaultMaxSkip  = 5000
)

// Cursor tracks position in a result set that only exposes a bounded skip
// offset. The service caps skip at maxSkip, so once the cap is reached the
// cursor trades the offset for a block-number floor: it re-anchors at the
// last block it has seen and resets skip to zero. Records at the boundary
// block are fetched twice; the dedup window strips them.
//
// Invariants: blockNumber never decreases, skip never exceeds maxSkip.
type Cursor struct {
	blockNumber uint64
	skip        int
	pageSize    int
	maxSkip     int
}

// NewCursor creates a cursor at position (block 0, skip 0).
func NewCursor(pageSize, maxSkip int) *Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	return &Cursor{pageSize: pageSize, maxSkip: maxSkip}
}

// BlockNumber returns the current block-number floor.
func (c *Cursor) BlockNumber() uint64 {
	return c.blockNumber
}

// Skip returns the current pagination offset.
func (c *Cursor) Skip() int {
	return c.skip
}

// Advance moves the cursor past one full accepted page. lastBlock is the
// block number of the last record in that page. While the next page still
// fits under the skip ceiling the offset grows; otherwise the floor jumps
// to lastBlock and the offset resets, which re-scans from a point that is
// guaranteed to include every not-yet-seen record.
func (c *Cursor) Advance(lastBlock uint64) {
	if c.skip+c.pageSize <= c.maxSkip {
		c.skip += c.pageSize
		return
	}
	if lastBlock > c.blockNumber {
		c.blockNumber = lastBlock
	}
	c.skip = 0
}
