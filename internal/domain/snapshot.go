package domain

import "time"

// AggregateSnapshot is one persisted (referrer, fee token) total from a
// finished chain run, tagged with the run it came from.
type AggregateSnapshot struct {
	RunID    string
	ChainID  string
	Referrer string
	FeeToken string

	// TotalFee is a decimal string to preserve arbitrary precision.
	TotalFee string

	// Truncated marks runs that ended on retry exhaustion rather than a
	// true end-of-stream, so downstream consumers can discount them.
	Truncated bool

	CreatedAt time.Time
}
