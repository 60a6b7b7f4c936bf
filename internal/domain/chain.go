package domain

// ChainConfig identifies one indexed chain and the endpoint serving its
// fee events. Supplied by the chain registry at startup, read-only after.
type ChainConfig struct {
	ChainID  string
	Endpoint string
}
