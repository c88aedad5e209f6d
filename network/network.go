// Package network makes the wallet use the network the application needs.
//
// Negotiation only talks to the wallet. The session learns about the new network from the
// chainChanged notification the wallet emits afterwards.
package network

import (
	"context"
	"errors"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/walleterr"
)

// ChainView exposes the chain the wallet is on, as last reported to the session.
type ChainView interface {
	ChainID() (uint64, bool)
}

// Config holds the configuration of a Negotiator.
type Config struct {
	// Optional: Provider is the wallet provider. Without one every operation fails with
	// walleterr.ProviderUnavailable.
	Provider eip1193.Provider
	// Required: Registry holds the expected network. Added custom networks are registered in it.
	Registry *chain.Registry
	// Optional: Logger is the logger to use. Defaults to a no-op logger.
	Logger logger.Logger
}

func (c Config) validate() error {
	if c.Registry == nil {
		return errors.New("chain registry is required")
	}

	return nil
}

// Negotiator switches the wallet between networks.
type Negotiator struct {
	provider eip1193.Provider
	registry *chain.Registry
	lggr     logger.Logger
}

// New returns a Negotiator.
func New(cfg Config) (*Negotiator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Negotiator{
		provider: cfg.Provider,
		registry: cfg.Registry,
		lggr:     lggr.Named("network"),
	}, nil
}

// EnsureExpectedChain makes the wallet use the expected network. Nothing is sent to the wallet
// when view already reports the expected chain. Failures are NetworkSwitchRejected.
func (n *Negotiator) EnsureExpectedChain(ctx context.Context, view ChainView) error {
	const op = "ensureNetwork"

	expected := n.registry.Expected()
	if id, ok := view.ChainID(); ok && id == expected.ID {
		return nil
	}

	if err := n.switchTo(ctx, op, expected); err != nil {
		if walleterr.KindOf(err) == walleterr.ProviderUnavailable {
			return err
		}

		n.lggr.Warnw("Failed to switch to the expected network", "network", expected.Name, "error", err)

		return &walleterr.Error{
			Kind:    walleterr.NetworkSwitchRejected,
			Op:      op,
			Message: walleterr.MsgWrongNetwork,
			Err:     err,
		}
	}

	return nil
}

// SwitchTo asks the wallet to switch to desc and adds the network to the wallet when the wallet
// does not know it.
func (n *Negotiator) SwitchTo(ctx context.Context, desc chain.ChainDescriptor) error {
	const op = "switchNetwork"

	err := n.switchTo(ctx, op, desc)
	if err == nil || walleterr.KindOf(err) != walleterr.Unknown {
		return err
	}

	return walleterr.Wrap(walleterr.NetworkSwitchRejected, op, err)
}

func (n *Negotiator) switchTo(ctx context.Context, op string, desc chain.ChainDescriptor) error {
	if n.provider == nil {
		return walleterr.New(walleterr.ProviderUnavailable, op, walleterr.MsgProviderUnavailable)
	}

	n.lggr.Infow("Switching wallet network", "network", desc.Name, "chainID", desc.HexID())

	err := n.provider.Request(ctx, eip1193.MethodSwitchChain, []any{eip1193.SwitchChainParameter{ChainID: desc.HexID()}}, nil)
	if code, ok := eip1193.CodeOf(err); ok && code == eip1193.CodeUnrecognizedChain {
		n.lggr.Infow("Wallet does not know the network, adding it", "network", desc.Name)

		return n.addChain(ctx, desc)
	}

	return err
}

func (n *Negotiator) addChain(ctx context.Context, desc chain.ChainDescriptor) error {
	return n.provider.Request(ctx, eip1193.MethodAddChain, []any{eip1193.AddChainParameterFor(desc)}, nil)
}
