package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// fileCfg is the config that is loaded from the testdata/config.yml file.
	fileCfg = &Config{
		Wallet: WalletConfig{
			Provider:   ProviderKeyed,
			RPCURL:     "http://localhost:8545",
			PrivateKey: "0xabc",
			KMS: KMSConfig{
				KeyID:      "f1a2b3c4",
				KeyRegion:  "us-west-1",
				AWSProfile: "sagasynth",
			},
			PollInterval: 3 * time.Second,
		},
		Chain: ChainConfig{
			Expected:       "QSaga",
			Manifests:      []string{"./networks.yml", "./networks-local.yml"},
			WellKnownNames: true,
		},
		Contract: ContractConfig{
			Address:             "0x0000000000000000000000000000000000000C0D",
			ReceiptPollInterval: 500 * time.Millisecond,
		},
		Backend: BackendConfig{
			URL:     "https://api.sagasynth.xyz",
			Timeout: 2 * time.Minute,
		},
		Session: SessionConfig{
			MarkerPath: "/tmp/sagasynth/session.toml",
		},
		Log: LogConfig{
			Level:       "debug",
			Development: true,
		},
	}

	// defaultCfg is the config without any file or env value.
	defaultCfg = &Config{
		Wallet:   WalletConfig{Provider: ProviderRPC},
		Contract: ContractConfig{Address: DefaultContractAddress},
	}

	// envVars is the environment variables that used to set the config.
	envVars = map[string]string{
		"SAGASYNTH_WALLET_PROVIDER":                "keyed",
		"SAGASYNTH_WALLET_RPC_URL":                 "http://wallet:8545",
		"SAGASYNTH_WALLET_PRIVATE_KEY":             "0x123",
		"SAGASYNTH_WALLET_KMS_KEY_ID":              "123",
		"SAGASYNTH_WALLET_KMS_KEY_REGION":          "us-east-1",
		"SAGASYNTH_WALLET_KMS_AWS_PROFILE":         "default",
		"SAGASYNTH_WALLET_POLL_INTERVAL":           "1s",
		"SAGASYNTH_CHAIN_EXPECTED":                 "0x9c770d8cd4640",
		"SAGASYNTH_CHAIN_MANIFESTS":                "./a.yml,./b.yml",
		"SAGASYNTH_CHAIN_WELL_KNOWN_NAMES":         "true",
		"SAGASYNTH_CONTRACT_ADDRESS":               "0x0000000000000000000000000000000000000123",
		"SAGASYNTH_CONTRACT_RECEIPT_POLL_INTERVAL": "2s",
		"SAGASYNTH_BACKEND_URL":                    "http://localhost:3000",
		"SAGASYNTH_BACKEND_TIMEOUT":                "30s",
		"SAGASYNTH_SESSION_MARKER_PATH":            "/tmp/marker.toml",
		"SAGASYNTH_LOG_LEVEL":                      "warn",
		"SAGASYNTH_LOG_DEVELOPMENT":                "false",
	}

	legacyEnvVars = map[string]string{
		"WALLET_RPC_URL":          "http://wallet:8545",
		"PRIVATE_KEY":             "0x123",
		"KMS_DEPLOYER_KEY_ID":     "123",
		"KMS_DEPLOYER_KEY_REGION": "us-east-1",
		"AWS_PROFILE":             "default",
		"VITE_CONTRACT_ADDRESS":   "0x0000000000000000000000000000000000000123",
		"VITE_API_BASE_URL":       "http://localhost:3000",
		"LOG_LEVEL":               "warn",
		// These values do not have a legacy equivalent
		"SAGASYNTH_WALLET_PROVIDER":                "keyed",
		"SAGASYNTH_WALLET_POLL_INTERVAL":           "1s",
		"SAGASYNTH_CHAIN_EXPECTED":                 "0x9c770d8cd4640",
		"SAGASYNTH_CHAIN_MANIFESTS":                "./a.yml,./b.yml",
		"SAGASYNTH_CHAIN_WELL_KNOWN_NAMES":         "true",
		"SAGASYNTH_CONTRACT_RECEIPT_POLL_INTERVAL": "2s",
		"SAGASYNTH_BACKEND_TIMEOUT":                "30s",
		"SAGASYNTH_SESSION_MARKER_PATH":            "/tmp/marker.toml",
	}

	// envCfg is the config that is loaded from the environment variables.
	envCfg = &Config{
		Wallet: WalletConfig{
			Provider:   ProviderKeyed,
			RPCURL:     "http://wallet:8545",
			PrivateKey: "0x123",
			KMS: KMSConfig{
				KeyID:      "123",
				KeyRegion:  "us-east-1",
				AWSProfile: "default",
			},
			PollInterval: time.Second,
		},
		Chain: ChainConfig{
			Expected:       "0x9c770d8cd4640",
			Manifests:      []string{"./a.yml", "./b.yml"},
			WellKnownNames: true,
		},
		Contract: ContractConfig{
			Address:             "0x0000000000000000000000000000000000000123",
			ReceiptPollInterval: 2 * time.Second,
		},
		Backend: BackendConfig{
			URL:     "http://localhost:3000",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			MarkerPath: "/tmp/marker.toml",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
)

func Test_Load(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	tests := []struct {
		name       string
		beforeFunc func(t *testing.T)
		givePath   string
		want       *Config
	}{
		{
			name:     "load from file",
			givePath: "./testdata/config.yml",
			want:     fileCfg,
		},
		{
			name:     "load from empty file",
			givePath: "./testdata/empty.yml",
			want:     defaultCfg,
		},
		{
			name: "override with env",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, envVars)
			},
			givePath: "./testdata/config.yml",
			want:     envCfg,
		},
		{
			name: "fallback to env when file not found",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, envVars)
			},
			givePath: "./testdata/invalid.yml",
			want:     envCfg,
		},
	}

	for _, tt := range tests { //nolint:paralleltest // see comment in setupEnvVars
		t.Run(tt.name, func(t *testing.T) {
			if tt.beforeFunc != nil {
				tt.beforeFunc(t)
			}

			got, err := Load(tt.givePath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_LoadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		givePath string
		want     *Config
		wantErr  string
	}{
		{
			name:     "load from file",
			givePath: "./testdata/config.yml",
			want:     fileCfg,
		},
		{
			name:     "load from file with invalid path",
			givePath: "./testdata/invalid.yml",
			wantErr:  "no such file or directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := LoadFile(tt.givePath)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_LoadEnv(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, envVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, envCfg, got)
}

func Test_LoadEnv_Legacy(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, legacyEnvVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, envCfg, got)
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		giveFn  func(c *Config)
		wantErr string
	}{
		{
			name: "rpc wallet",
		},
		{
			name: "keyed wallet with private key",
			giveFn: func(c *Config) {
				c.Wallet = WalletConfig{Provider: ProviderKeyed, PrivateKey: "0xabc"}
			},
		},
		{
			name: "keyed wallet with kms key",
			giveFn: func(c *Config) {
				c.Wallet = WalletConfig{Provider: ProviderKeyed, KMS: KMSConfig{KeyID: "123", KeyRegion: "us-east-1"}}
			},
		},
		{
			name: "rpc wallet without url",
			giveFn: func(c *Config) {
				c.Wallet.RPCURL = ""
			},
			wantErr: "rpc_url is required",
		},
		{
			name: "keyed wallet with both keys",
			giveFn: func(c *Config) {
				c.Wallet = WalletConfig{Provider: ProviderKeyed, PrivateKey: "0xabc", KMS: KMSConfig{KeyID: "123", KeyRegion: "us-east-1"}}
			},
			wantErr: "exactly one of private_key and kms.key_id",
		},
		{
			name: "keyed wallet without key",
			giveFn: func(c *Config) {
				c.Wallet = WalletConfig{Provider: ProviderKeyed}
			},
			wantErr: "exactly one of private_key and kms.key_id",
		},
		{
			name: "kms key without region",
			giveFn: func(c *Config) {
				c.Wallet = WalletConfig{Provider: ProviderKeyed, KMS: KMSConfig{KeyID: "123"}}
			},
			wantErr: "kms.key_region is required",
		},
		{
			name: "unknown provider",
			giveFn: func(c *Config) {
				c.Wallet.Provider = "metamask"
			},
			wantErr: `unknown wallet provider "metamask"`,
		},
		{
			name: "invalid contract address",
			giveFn: func(c *Config) {
				c.Contract.Address = "0x123"
			},
			wantErr: `invalid contract address "0x123"`,
		},
		{
			name: "invalid log level",
			giveFn: func(c *Config) {
				c.Log.Level = "loud"
			},
			wantErr: `invalid log level "loud"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{
				Wallet:   WalletConfig{Provider: ProviderRPC, RPCURL: "http://localhost:8545"},
				Contract: ContractConfig{Address: DefaultContractAddress},
			}
			if tt.giveFn != nil {
				tt.giveFn(cfg)
			}

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func Test_BackendConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, BackendConfig{URL: "http://localhost:3000"}.Validate())
	require.ErrorContains(t, BackendConfig{}.Validate(), "backend url is required")
	require.ErrorContains(t, BackendConfig{URL: "localhost"}.Validate(), `invalid backend url "localhost"`)
}

// setupEnvVars sets up the environment variables for the test.
//
// CAUTION: Because this function uses t.Setenv which affects the entire process, tests which call
// this function cannot be run in parallel.
func setupEnvVars(t *testing.T, envVars map[string]string) {
	t.Helper()

	for key, value := range envVars {
		t.Setenv(key, value)
	}
}
