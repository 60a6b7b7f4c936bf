// Package registry loads the read-only chain configuration supplied at
// process start. A bad registry is fatal before any indexing begins.
package registry

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"referral-indexer/internal/domain"
)

// Registry maps chain identifiers to their indexing endpoints.
type Registry struct {
	chains []domain.ChainConfig
	byID   map[string]domain.ChainConfig
}

// fileSchema is the YAML registry file shape:
//
//	chains:
//	  - id: arbitrum
//	    endpoint: https://indexer.example.com/fees/arbitrum
type fileSchema struct {
	Chains []chainEntry `yaml:"chains"`
}

type chainEntry struct {
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML registry content.
func Parse(data []byte) (*Registry, error) {
	var file fileSchema
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	if len(file.Chains) == 0 {
		return nil, fmt.Errorf("registry defines no chains")
	}

	r := &Registry{
		chains: make([]domain.ChainConfig, 0, len(file.Chains)),
		byID:   make(map[string]domain.ChainConfig, len(file.Chains)),
	}

	for i, entry := range file.Chains {
		if entry.ID == "" {
			return nil, fmt.Errorf("chain %d: missing id", i)
		}
		if _, exists := r.byID[entry.ID]; exists {
			return nil, fmt.Errorf("chain %q: duplicate id", entry.ID)
		}
		if err := validateEndpoint(entry.Endpoint); err != nil {
			return nil, fmt.Errorf("chain %q: %w", entry.ID, err)
		}

		chain := domain.ChainConfig{ChainID: entry.ID, Endpoint: entry.Endpoint}
		r.chains = append(r.chains, chain)
		r.byID[entry.ID] = chain
	}

	return r, nil
}

// Chains returns all chains in file order. The slice must not be mutated.
func (r *Registry) Chains() []domain.ChainConfig {
	return r.chains
}

// Get looks up a chain by id.
func (r *Registry) Get(id string) (domain.ChainConfig, bool) {
	chain, ok := r.byID[id]
	return chain, ok
}

// Len returns the number of configured chains.
func (r *Registry) Len() int {
	return len(r.chains)
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: missing host", endpoint)
	}
	return nil
}
