package network

import (
	"context"
	"math"
	"strings"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/walleterr"
)

// DefaultDecimals is used when a custom network leaves the currency decimals unset.
const DefaultDecimals = 18

// CustomNetwork is a network entered by the user.
type CustomNetwork struct {
	// ChainID is the chain id as a 0x prefixed hex string.
	ChainID          string
	ChainName        string
	CurrencyName     string
	CurrencySymbol   string
	CurrencyDecimals int
	RPCURL           string
	BlockExplorerURL string
}

// Descriptor validates the network and converts it to a chain descriptor.
func (c CustomNetwork) Descriptor() (chain.ChainDescriptor, error) {
	const op = "addNetwork"

	invalid := func(msg string) (chain.ChainDescriptor, error) {
		return chain.ChainDescriptor{}, walleterr.New(walleterr.ValidationError, op, msg)
	}

	if !strings.HasPrefix(c.ChainID, "0x") {
		return invalid("Chain ID must be a hex string starting with 0x")
	}

	id, err := chain.ParseChainID(c.ChainID)
	if err != nil || id == 0 {
		return invalid("Chain ID must be a hex string starting with 0x")
	}

	if c.ChainName == "" {
		return invalid("Network name is required")
	}

	if c.CurrencyName == "" || c.CurrencySymbol == "" {
		return invalid("Currency name and symbol are required")
	}

	if c.RPCURL == "" {
		return invalid("RPC URL is required")
	}

	decimals := c.CurrencyDecimals
	if decimals <= 0 {
		decimals = DefaultDecimals
	}
	if decimals > math.MaxUint8 {
		return invalid("Currency decimals must not exceed 255")
	}

	desc := chain.ChainDescriptor{
		ID:   id,
		Name: c.ChainName,
		NativeCurrency: chain.NativeCurrency{
			Name:     c.CurrencyName,
			Symbol:   c.CurrencySymbol,
			Decimals: uint8(decimals),
		},
		RPCURLs: []string{c.RPCURL},
	}
	if c.BlockExplorerURL != "" {
		desc.ExplorerURLs = []string{c.BlockExplorerURL}
	}

	return desc, nil
}

// AddCustomNetwork validates network, adds it to the wallet and registers it. The wallet must be
// connected.
func (n *Negotiator) AddCustomNetwork(ctx context.Context, view ChainView, network CustomNetwork) (chain.ChainDescriptor, error) {
	const op = "addNetwork"

	if n.provider == nil {
		return chain.ChainDescriptor{}, walleterr.New(walleterr.ProviderUnavailable, op, walleterr.MsgProviderUnavailable)
	}

	if _, ok := view.ChainID(); !ok {
		return chain.ChainDescriptor{}, walleterr.New(walleterr.ValidationError, op, "Please connect your wallet first")
	}

	desc, err := network.Descriptor()
	if err != nil {
		return chain.ChainDescriptor{}, err
	}

	if err = n.addChain(ctx, desc); err != nil {
		return chain.ChainDescriptor{}, walleterr.Classify(op, err)
	}

	if !n.registry.IsExpected(desc.ID) {
		if err = n.registry.Add(desc); err != nil {
			return chain.ChainDescriptor{}, walleterr.Wrap(walleterr.ValidationError, op, err)
		}
	}

	n.lggr.Infow("Added custom network", "network", desc.Name, "chainID", desc.HexID())

	return desc, nil
}
