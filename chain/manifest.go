package chain

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML representation of a network manifest.
type Manifest struct {
	// A YAML array of networks.
	Networks []ChainDescriptor `yaml:"networks"`
}

// Networks is a collection of descriptors loaded from manifest files, keyed by chain id so that
// ids are unique and lookups are cheap.
type Networks struct {
	chains map[uint64]ChainDescriptor
}

// NewNetworks creates a collection from a slice of descriptors. Duplicate chain ids are
// overwritten by the later entry.
func NewNetworks(descs []ChainDescriptor) *Networks {
	m := make(map[uint64]ChainDescriptor, len(descs))
	for _, d := range descs {
		m[d.ID] = d
	}

	return &Networks{chains: m}
}

// Validate ensures that all networks are valid.
func (n *Networks) Validate() error {
	for _, d := range n.Chains() {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("network %d: %w", d.ID, err)
		}
	}

	return nil
}

// Chains returns the descriptors ordered by chain id.
func (n *Networks) Chains() []ChainDescriptor {
	ids := slices.Sorted(maps.Keys(n.chains))
	out := make([]ChainDescriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, n.chains[id])
	}

	return out
}

// ChainByID retrieves a descriptor by chain id.
func (n *Networks) ChainByID(id uint64) (ChainDescriptor, error) {
	d, ok := n.chains[id]
	if !ok {
		return ChainDescriptor{}, fmt.Errorf("network with chain id %d not found in manifest", id)
	}

	return d, nil
}

// Len returns the number of networks.
func (n *Networks) Len() int {
	return len(n.chains)
}

// Merge merges another collection into this one, overwriting networks with the same chain id.
func (n *Networks) Merge(other *Networks) {
	maps.Copy(n.chains, other.chains)
}

// MarshalYAML implements the yaml.Marshaler interface.
func (n *Networks) MarshalYAML() (any, error) {
	return Manifest{Networks: n.Chains()}, nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (n *Networks) UnmarshalYAML(value *yaml.Node) error {
	m := Manifest{}
	if err := value.Decode(&m); err != nil {
		return err
	}

	*n = *NewNetworks(m.Networks)

	return nil
}

// NetworkFilter reports whether a network should be kept.
type NetworkFilter func(ChainDescriptor) bool

// FilterWith returns a new collection containing only networks that pass every filter.
func (n *Networks) FilterWith(filters ...NetworkFilter) *Networks {
	descs := n.Chains()
	for _, filter := range filters {
		descs = slices.DeleteFunc(descs, func(d ChainDescriptor) bool {
			return !filter(d)
		})
	}

	return NewNetworks(descs)
}

// NameFilter matches networks whose name equals one of names, ignoring case.
func NameFilter(names ...string) NetworkFilter {
	return func(d ChainDescriptor) bool {
		return slices.ContainsFunc(names, func(name string) bool {
			return strings.EqualFold(name, d.Name)
		})
	}
}

// ChainIDFilter matches the network with the given chain id.
func ChainIDFilter(id uint64) NetworkFilter {
	return func(d ChainDescriptor) bool {
		return d.ID == id
	}
}

// LoadManifest loads and merges the manifest files in order, then validates the result.
func LoadManifest(filePaths []string, opts ...LoadOption) (*Networks, error) {
	loadCfg := &loadConfig{}
	for _, opt := range opts {
		opt(loadCfg)
	}

	networks := NewNetworks(nil)
	for _, fp := range filePaths {
		data, err := os.ReadFile(fp)
		if err != nil {
			return nil, fmt.Errorf("failed to read networks file: %w", err)
		}

		var fileNetworks Networks
		if err := yaml.Unmarshal(data, &fileNetworks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal networks YAML: %w", err)
		}

		networks.Merge(&fileNetworks)
	}

	if loadCfg.rpcURLTransformer != nil {
		networks.transformRPCURLs(loadCfg.rpcURLTransformer)
	}

	if err := networks.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate networks manifest: %w", err)
	}

	return networks, nil
}

// transformRPCURLs rewrites every RPC URL in place.
func (n *Networks) transformRPCURLs(transform URLTransformer) {
	for id, d := range n.chains {
		urls := make([]string, len(d.RPCURLs))
		for i, u := range d.RPCURLs {
			urls[i] = transform(u)
		}
		d.RPCURLs = urls

		n.chains[id] = d
	}
}

// LoadOption modifies how a manifest is loaded.
type LoadOption func(*loadConfig)

type loadConfig struct {
	rpcURLTransformer URLTransformer
}

// URLTransformer is a function that transforms a URL.
type URLTransformer func(string) string

// WithRPCURLTransformer transforms the RPC URLs of every network after loading, e.g. to inject
// API keys from the environment.
func WithRPCURLTransformer(t URLTransformer) LoadOption {
	return func(c *loadConfig) {
		c.rpcURLTransformer = t
	}
}
