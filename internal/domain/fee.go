package domain

// FeeRecord is a single referral-fee event as returned by the indexing
// service. Records are immutable once fetched.
type FeeRecord struct {
	// ID uniquely identifies the event across the whole stream.
	ID string

	// BlockNumber is the block the fee was paid in.
	BlockNumber uint64

	// FeeToken is the address of the asset the fee was paid in,
	// preserved exactly as the service returned it.
	FeeToken string

	// Referrer is the address attributed the fee.
	Referrer string

	// ReferrerFee is the fee amount as a non-negative decimal string.
	// Amounts routinely exceed native integer precision, so the string
	// form is kept until aggregation parses it into a big.Int.
	ReferrerFee string
}
