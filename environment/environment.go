// Package environment builds the SagaSynth components from a loaded configuration: the chain
// registry, the wallet provider, the session, the network negotiator and the transaction
// driver and reader of the contract.
package environment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sagasynth/sagasynth/backend"
	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/eip1193/keyed"
	"github.com/sagasynth/sagasynth/eip1193/rpcprovider"
	"github.com/sagasynth/sagasynth/network"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/session"
	"github.com/sagasynth/sagasynth/txdriver"
)

// Environment holds the wired components. Close releases them.
type Environment struct {
	Config     *config.Config
	Logger     logger.Logger
	Registry   *chain.Registry
	Provider   eip1193.Provider
	Marker     session.MarkerStore
	Session    *session.Manager
	Negotiator *network.Negotiator
	Driver     *txdriver.Driver
	Reader     *txdriver.Reader

	closers []func()
}

// Load validates cfg and builds an environment from it. The wallet provider is dialed unless
// one is passed with WithProvider.
func Load(ctx context.Context, cfg *config.Config, opts ...LoadEnvironmentOption) (*Environment, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	loadCfg := &LoadConfig{}
	loadCfg.Configure(opts)

	// An injected provider makes the wallet section irrelevant.
	if loadCfg.provider != nil {
		if err := cfg.Contract.Validate(); err != nil {
			return nil, fmt.Errorf("invalid contract config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lggr := loadCfg.lggr
	if lggr == nil {
		var err error
		lggr, err = NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	registry, err := NewRegistry(cfg.Chain)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Config:   cfg,
		Logger:   lggr,
		Registry: registry,
	}

	provider, providerName := loadCfg.provider, loadCfg.providerName
	if provider == nil {
		var closeFn func()
		provider, closeFn, err = newProvider(ctx, cfg.Wallet, registry, lggr, loadCfg)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, closeFn)
		providerName = cfg.Wallet.Provider
	}
	env.Provider = provider

	env.Marker = loadCfg.marker
	if env.Marker == nil {
		path := cfg.Session.MarkerPath
		if path == "" {
			if path, err = session.DefaultMarkerPath(); err != nil {
				env.Close()
				return nil, err
			}
		}
		env.Marker = session.NewFileMarker(path)
	}

	env.Session, err = session.NewManager(session.Config{
		Provider:     provider,
		ProviderName: providerName,
		Registry:     registry,
		Marker:       env.Marker,
		Logger:       lggr,
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	env.closers = append(env.closers, env.Session.Close)

	env.Negotiator, err = network.New(network.Config{
		Provider: provider,
		Registry: registry,
		Logger:   lggr,
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to create network negotiator: %w", err)
	}

	contract := common.HexToAddress(cfg.Contract.Address)

	env.Driver, err = txdriver.New(txdriver.Config{
		Session:      env.Session,
		Negotiator:   env.Negotiator,
		Contract:     contract,
		Observer:     loadCfg.observer,
		PollInterval: cfg.Contract.ReceiptPollInterval,
		Logger:       lggr,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Reader, err = txdriver.NewReader(provider, contract)
	if err != nil {
		env.Close()
		return nil, err
	}

	lggr.Debugw("Environment loaded",
		"provider", providerName,
		"expected", registry.Expected().String(),
		"contract", contract.Hex(),
	)

	return env, nil
}

// Close stops the session and closes the providers the environment dialed, in reverse order.
func (e *Environment) Close() {
	for _, closeFn := range slices.Backward(e.closers) {
		closeFn()
	}
	e.closers = nil
}

// NewLogger builds the logger described by the log section.
func NewLogger(cfg config.LogConfig) (logger.Logger, error) {
	lggr, err := (&logger.Config{Level: cfg.Level, Development: cfg.Development}).New()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return lggr, nil
}

// NewRegistry loads the network manifests and resolves the expected network. RPC URLs in the
// manifests may reference environment variables, e.g. "https://rpc.example.com/${RPC_API_KEY}".
func NewRegistry(cfg config.ChainConfig) (*chain.Registry, error) {
	var networks *chain.Networks
	if len(cfg.Manifests) > 0 {
		var err error
		networks, err = chain.LoadManifest(cfg.Manifests, chain.WithRPCURLTransformer(os.ExpandEnv))
		if err != nil {
			return nil, err
		}
	}

	expected, err := resolveExpected(cfg.Expected, networks)
	if err != nil {
		return nil, err
	}

	opts := []chain.RegistryOption{chain.WithNetworks(networks)}
	if cfg.WellKnownNames {
		opts = append(opts, chain.WithWellKnownNames())
	}

	return chain.NewRegistry(expected, opts...), nil
}

// resolveExpected finds the expected network by chain id or name. QSaga is used when ref is
// empty.
func resolveExpected(ref string, networks *chain.Networks) (chain.ChainDescriptor, error) {
	qsaga := chain.QSaga()
	if ref == "" {
		return qsaga, nil
	}

	known := []chain.ChainDescriptor{qsaga}
	if networks != nil {
		// manifest entries win over the built-in descriptor
		known = append(networks.Chains(), qsaga)
	}

	if id, err := chain.ParseChainID(ref); err == nil {
		for _, d := range known {
			if d.ID == id {
				return d, nil
			}
		}
	}

	for _, d := range known {
		if strings.EqualFold(d.Name, ref) {
			return d, nil
		}
	}

	return chain.ChainDescriptor{}, fmt.Errorf("expected network %q is not in the network manifests", ref)
}

// newProvider creates the wallet provider selected by the wallet section. The returned func
// closes it.
func newProvider(
	ctx context.Context,
	cfg config.WalletConfig,
	registry *chain.Registry,
	lggr logger.Logger,
	loadCfg *LoadConfig,
) (eip1193.Provider, func(), error) {
	switch cfg.Provider {
	case config.ProviderRPC:
		p, err := rpcprovider.Dial(ctx, rpcprovider.Config{
			URL:          cfg.RPCURL,
			PollInterval: cfg.PollInterval,
			Logger:       lggr,
		})
		if err != nil {
			return nil, nil, err
		}

		return p, p.Close, nil

	case config.ProviderKeyed:
		signer, err := newSigner(cfg)
		if err != nil {
			return nil, nil, err
		}

		w, err := keyed.New(keyed.Config{
			Signer:        signer,
			Chains:        registry.Chains(),
			ActiveChainID: registry.Expected().ID,
			Approver:      loadCfg.approver,
			Dialer:        loadCfg.dialer,
			Logger:        lggr,
		})
		if err != nil {
			return nil, nil, err
		}

		return w, w.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown wallet provider %q", cfg.Provider)
	}
}

func newSigner(cfg config.WalletConfig) (keyed.Signer, error) {
	if cfg.PrivateKey != "" {
		return keyed.SignerFromRawKey(cfg.PrivateKey)
	}

	signer, err := keyed.NewKMSSigner(cfg.KMS.KeyID, cfg.KMS.KeyRegion, cfg.KMS.AWSProfile)
	if err != nil {
		return nil, err
	}

	return signer, nil
}

// NewBackendClient creates the backend API client described by the backend section.
func NewBackendClient(cfg config.BackendConfig, lggr logger.Logger) (*backend.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	return backend.NewClient(backend.Config{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
		Logger:  lggr,
	})
}
