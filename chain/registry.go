package chain

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	chainsel "github.com/smartcontractkit/chain-selectors"
)

// Registry resolves chain ids and names to descriptors. It always knows the expected network.
type Registry struct {
	mu        sync.RWMutex
	expected  ChainDescriptor
	chains    map[uint64]ChainDescriptor
	wellKnown bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithChains registers additional descriptors.
func WithChains(descs ...ChainDescriptor) RegistryOption {
	return func(r *Registry) {
		for _, d := range descs {
			r.chains[d.ID] = d
		}
	}
}

// WithNetworks registers every descriptor of a loaded manifest.
func WithNetworks(n *Networks) RegistryOption {
	return func(r *Registry) {
		if n == nil {
			return
		}
		maps.Copy(r.chains, n.chains)
	}
}

// WithWellKnownNames enables labelling chain ids unknown to the registry with their name from
// the chain-selectors catalogue of EVM chains.
func WithWellKnownNames() RegistryOption {
	return func(r *Registry) {
		r.wellKnown = true
	}
}

// NewRegistry creates a registry whose expected network is expected. The expected descriptor
// always wins over a manifest entry with the same id.
func NewRegistry(expected ChainDescriptor, opts ...RegistryOption) *Registry {
	r := &Registry{
		expected: expected,
		chains:   make(map[uint64]ChainDescriptor),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.chains[expected.ID] = expected

	return r
}

// Expected returns the network the application requires.
func (r *Registry) Expected() ChainDescriptor {
	return r.expected
}

// IsExpected reports whether id is the expected network's chain id.
func (r *Registry) IsExpected(id uint64) bool {
	return id == r.expected.ID
}

// ByID returns the descriptor for a chain id.
func (r *Registry) ByID(id uint64) (ChainDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.chains[id]

	return d, ok
}

// ByName returns the descriptor whose name matches, ignoring case. When several chains share
// the name the one with the lowest chain id wins.
func (r *Registry) ByName(name string) (ChainDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range slices.Sorted(maps.Keys(r.chains)) {
		if d := r.chains[id]; strings.EqualFold(d.Name, name) {
			return d, true
		}
	}

	return ChainDescriptor{}, false
}

// Lookup returns the descriptor for a chain id given in decimal or hex form.
func (r *Registry) Lookup(id string) (ChainDescriptor, bool) {
	n, err := ParseChainID(id)
	if err != nil {
		return ChainDescriptor{}, false
	}

	return r.ByID(n)
}

// Label returns the human name of a chain id. Ids the registry does not know are labelled
// "Chain ID: {id}", unless well-known names are enabled and chain-selectors knows the chain.
func (r *Registry) Label(id uint64) string {
	if d, ok := r.ByID(id); ok {
		return d.Name
	}

	if r.wellKnown {
		details, err := chainsel.GetChainDetailsByChainIDAndFamily(strconv.FormatUint(id, 10), chainsel.FamilyEVM)
		if err == nil && details.ChainName != "" {
			return details.ChainName
		}
	}

	return fmt.Sprintf("Chain ID: %d", id)
}

// Add registers a descriptor at runtime, e.g. after a custom network was added to the wallet.
// The expected network cannot be replaced.
func (r *Registry) Add(d ChainDescriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid chain %d: %w", d.ID, err)
	}

	if d.ID == r.expected.ID {
		return fmt.Errorf("chain %d is the expected network and cannot be replaced", d.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains[d.ID] = d

	return nil
}

// Chains returns every registered descriptor ordered by chain id.
func (r *Registry) Chains() []ChainDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(r.chains))
	out := make([]ChainDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.chains[id])
	}

	return out
}
