package environment_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/eip1193/keyed"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/internal/testing/simenv"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/session"
	"github.com/sagasynth/sagasynth/txdriver"
)

const manifestYAML = `networks:
  - chain_id: 1337
    name: Local
    native_currency:
      name: Ether
      symbol: ETH
      decimals: 18
    rpc_urls:
      - http://127.0.0.1:8545
  - chain_id: 2752562277992000
    name: QSaga Staging
    native_currency:
      name: Saga
      symbol: SQA
      decimals: 18
    rpc_urls:
      - https://rpc.example.com/${SAGASYNTH_TEST_RPC_KEY}
`

func writeManifest(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0o600))

	return path
}

func Test_NewRegistry(t *testing.T) {
	t.Parallel()

	manifest := writeManifest(t)

	tests := []struct {
		name         string
		give         config.ChainConfig
		wantExpected string
		wantChains   int
		wantErr      string
	}{
		{
			name:         "defaults to QSaga",
			give:         config.ChainConfig{},
			wantExpected: "QSaga",
			wantChains:   1,
		},
		{
			name:         "expected by name",
			give:         config.ChainConfig{Expected: "local", Manifests: []string{manifest}},
			wantExpected: "Local",
			wantChains:   2,
		},
		{
			name:         "expected by hex id",
			give:         config.ChainConfig{Expected: "0x539", Manifests: []string{manifest}},
			wantExpected: "Local",
			wantChains:   2,
		},
		{
			name:         "manifest entry replaces the built-in network",
			give:         config.ChainConfig{Expected: "2752562277992000", Manifests: []string{manifest}},
			wantExpected: "QSaga Staging",
			wantChains:   2,
		},
		{
			name:         "built-in network without manifest",
			give:         config.ChainConfig{Expected: "qsaga", WellKnownNames: true},
			wantExpected: "QSaga",
			wantChains:   1,
		},
		{
			name:    "unknown network",
			give:    config.ChainConfig{Expected: "Sepolia", Manifests: []string{manifest}},
			wantErr: `expected network "Sepolia" is not in the network manifests`,
		},
		{
			name:    "missing manifest",
			give:    config.ChainConfig{Manifests: []string{filepath.Join(t.TempDir(), "missing.yaml")}},
			wantErr: "failed to read networks file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := environment.NewRegistry(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantExpected, got.Expected().Name)
			assert.Len(t, got.Chains(), tt.wantChains)
		})
	}
}

func Test_NewRegistry_ExpandsRPCURLs(t *testing.T) {
	t.Setenv("SAGASYNTH_TEST_RPC_KEY", "secret")

	reg, err := environment.NewRegistry(config.ChainConfig{Manifests: []string{writeManifest(t)}})
	require.NoError(t, err)

	d, ok := reg.ByName("QSaga Staging")
	require.True(t, ok)
	assert.Equal(t, []string{"https://rpc.example.com/secret"}, d.RPCURLs)
}

func Test_Load_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    *config.Config
		wantErr string
	}{
		{
			name:    "nil config",
			wantErr: "config is required",
		},
		{
			name: "rpc wallet without url",
			give: &config.Config{
				Wallet:   config.WalletConfig{Provider: config.ProviderRPC},
				Contract: config.ContractConfig{Address: config.DefaultContractAddress},
			},
			wantErr: "invalid wallet config",
		},
		{
			name: "invalid private key",
			give: &config.Config{
				Wallet:   config.WalletConfig{Provider: config.ProviderKeyed, PrivateKey: "zz"},
				Contract: config.ContractConfig{Address: config.DefaultContractAddress},
				Session:  config.SessionConfig{MarkerPath: filepath.Join(t.TempDir(), "session.toml")},
			},
			wantErr: "failed to convert private key to ECDSA",
		},
		{
			name: "unknown expected network",
			give: &config.Config{
				Wallet:   config.WalletConfig{Provider: config.ProviderKeyed, PrivateKey: strings.Repeat("1", 64)},
				Chain:    config.ChainConfig{Expected: "Nowhere"},
				Contract: config.ContractConfig{Address: config.DefaultContractAddress},
			},
			wantErr: `expected network "Nowhere"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := environment.Load(t.Context(), tt.give, environment.WithLogger(logger.Test(t)))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func Test_Load_SimulatedWallet(t *testing.T) {
	t.Parallel()

	sim := simenv.NewSim(t)

	var states []txdriver.State
	env := sim.NewEnvironment(t, environment.WithObserver(func(tx txdriver.PendingTransaction) {
		states = append(states, tx.State)
	}))

	assert.Equal(t, simenv.Chain.ID, env.Registry.Expected().ID)
	assert.IsType(t, &keyed.Wallet{}, env.Provider)
	assert.IsType(t, &session.FileMarker{}, env.Marker)

	snap, err := env.Session.Connect(t.Context())
	require.NoError(t, err)
	require.True(t, snap.IsConnected())
	assert.Equal(t, sim.Account, *snap.Address)
	assert.True(t, snap.CorrectNetwork)
	assert.Equal(t, "Simulated", snap.NetworkName)

	marker, ok, err := env.Marker.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, config.ProviderKeyed, marker.Provider)
	assert.Equal(t, sim.Account.Hex(), marker.Address)

	tx, err := env.Driver.SendValue(t.Context(), "0x000000000000000000000000000000000000dEaD", "0.5")
	require.NoError(t, err)
	assert.Equal(t, txdriver.StateCompleted, tx.State)
	assert.Equal(t, []txdriver.State{
		txdriver.StatePreparing,
		txdriver.StateSubmitted,
		txdriver.StateConfirming,
		txdriver.StateCompleted,
	}, states)

	// the contract address holds no code on the simulated chain, so the mint succeeds without
	// emitting the metadata event
	mint, err := env.Driver.MintMetadata(t.Context(), txdriver.MintRequest{
		SourceURL:   "https://example.com/data.json",
		ContentHash: "0x1234",
		ContentLink: "https://example.com/content",
		TokenURI:    "https://example.com/metadata.json",
	})
	require.NoError(t, err)
	assert.Equal(t, txdriver.StateCompletedWithoutResult, mint.State)

	require.NoError(t, env.Session.Disconnect())
	_, ok, err = env.Marker.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Load_WithProvider(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	w, err := keyed.New(keyed.Config{
		Signer: keyed.SignerFromKey(key),
		Chains: []chain.ChainDescriptor{chain.QSaga()},
		Logger: logger.Test(t),
	})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	marker := &session.MemoryMarker{}

	// the wallet section is ignored when a provider is injected
	cfg := &config.Config{
		Wallet:   config.WalletConfig{Provider: config.ProviderRPC},
		Contract: config.ContractConfig{Address: config.DefaultContractAddress},
	}

	env, err := environment.Load(t.Context(), cfg,
		environment.WithLogger(logger.Test(t)),
		environment.WithProvider(w, "test"),
		environment.WithMarker(marker),
	)
	require.NoError(t, err)
	t.Cleanup(env.Close)

	assert.Same(t, w, env.Provider)
	assert.Same(t, marker, env.Marker)
	assert.Equal(t, chain.QSagaChainID, env.Registry.Expected().ID)

	var hexID string
	require.NoError(t, env.Provider.Request(t.Context(), eip1193.MethodChainID, nil, &hexID))
	assert.Equal(t, chain.QSaga().HexID(), hexID)

	// closing the environment leaves the injected provider open
	env.Close()
	require.NoError(t, w.Request(t.Context(), eip1193.MethodChainID, nil, &hexID))

	cfg.Contract.Address = "not-an-address"
	_, err = environment.Load(t.Context(), cfg, environment.WithProvider(w, "test"))
	require.ErrorContains(t, err, "invalid contract config")
}

func Test_PromptApprover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		wantErr string
	}{
		{name: "yes", give: "y\n"},
		{name: "yes spelled out", give: " YES \n"},
		{name: "answer without newline", give: "y"},
		{name: "no", give: "n\n", wantErr: "personal_sign was not approved"},
		{name: "empty answer", give: "\n", wantErr: "personal_sign was not approved"},
		{name: "no input", give: "", wantErr: "no answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			approve := environment.PromptApprover(strings.NewReader(tt.give), &out)

			err := approve(t.Context(), eip1193.MethodPersonalSign, nil)
			assert.Equal(t, "Approve personal_sign? [y/N]: ", out.String())
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
