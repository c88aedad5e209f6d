// Package simenv loads environments whose keyed wallet runs on a simulated chain, for tests of
// the layers above the environment.
package simenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/chain/evm"
	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/eip1193/keyed"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

// Chain is the descriptor of the simulated chain. Its RPC URL is never dialed.
var Chain = chain.ChainDescriptor{
	ID:             evm.SimChainID.Uint64(),
	Name:           "Simulated",
	NativeCurrency: chain.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
	RPCURLs:        []string{"http://simulated.invalid"},
}

// Sim is a funded account on an auto committing simulated chain.
type Sim struct {
	Client  *evm.SimClient
	Account common.Address
	// Config selects a keyed wallet holding the account key, with Chain as the expected network.
	Config *config.Config
}

// NewSim starts a simulated chain and writes the network manifest and session marker of its
// configuration to a temporary directory.
func NewSim(t *testing.T) *Sim {
	t.Helper()

	client, account, rawKey := evm.NewFundedSimClient(t, true)

	dir := t.TempDir()
	manifest := filepath.Join(dir, "networks.yaml")

	b, err := yaml.Marshal(chain.NewNetworks([]chain.ChainDescriptor{Chain}))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifest, b, 0o600))

	return &Sim{
		Client:  client,
		Account: account,
		Config: &config.Config{
			Wallet: config.WalletConfig{
				Provider:   config.ProviderKeyed,
				PrivateKey: hexutil.Encode(rawKey)[2:],
			},
			Chain: config.ChainConfig{
				Expected:  Chain.Name,
				Manifests: []string{manifest},
			},
			Contract: config.ContractConfig{
				Address:             config.DefaultContractAddress,
				ReceiptPollInterval: 10 * time.Millisecond,
			},
			Session: config.SessionConfig{
				MarkerPath: filepath.Join(dir, "session.toml"),
			},
		},
	}
}

// Dialer returns the simulated client for Chain and fails for every other network.
func (s *Sim) Dialer() keyed.Dialer {
	return func(_ context.Context, desc chain.ChainDescriptor) (evm.OnchainClient, error) {
		if desc.ID != Chain.ID {
			return nil, errors.New("unreachable network")
		}

		return s.Client, nil
	}
}

// Load loads cfg with a keyed wallet dialing the simulated chain. The environment is closed when
// the test ends.
func (s *Sim) Load(t *testing.T, cfg *config.Config, opts ...environment.LoadEnvironmentOption) (*environment.Environment, error) {
	t.Helper()

	opts = append([]environment.LoadEnvironmentOption{
		environment.WithLogger(logger.Test(t)),
		environment.WithDialer(s.Dialer()),
	}, opts...)

	env, err := environment.Load(t.Context(), cfg, opts...)
	if err != nil {
		return nil, err
	}
	t.Cleanup(env.Close)

	return env, nil
}

// NewEnvironment loads the configuration of the simulated chain.
func (s *Sim) NewEnvironment(t *testing.T, opts ...environment.LoadEnvironmentOption) *environment.Environment {
	t.Helper()

	env, err := s.Load(t, s.Config, opts...)
	require.NoError(t, err)

	return env
}
