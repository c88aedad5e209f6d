// Package config loads the SagaSynth configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/sagasynth/sagasynth/pkg/logger"
)

// Wallet provider kinds.
const (
	ProviderRPC   = "rpc"
	ProviderKeyed = "keyed"
)

// DefaultContractAddress is the SagaSynth contract on QSaga.
const DefaultContractAddress = "0x36D65942d98b6Ed2CA01A1f85e7ca7afA1C04CE6"

// KMSConfig is the configuration of an AWS KMS wallet key.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type KMSConfig struct {
	KeyID      string `mapstructure:"key_id" yaml:"key_id"`           // Secret: AWS KMS Key ID
	KeyRegion  string `mapstructure:"key_region" yaml:"key_region"`   // Secret: AWS KMS Key Region (e.g. us-west-1)
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"` // AWS shared config profile
}

// WalletConfig selects and configures the wallet provider.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type WalletConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"`           // "rpc" or "keyed"
	RPCURL       string        `mapstructure:"rpc_url" yaml:"rpc_url"`             // JSON-RPC endpoint of the remote wallet
	PrivateKey   string        `mapstructure:"private_key" yaml:"private_key"`     // Secret: hex key of the keyed wallet. Prefer KMS keys instead.
	KMS          KMSConfig     `mapstructure:"kms" yaml:"kms"`                     // KMS key of the keyed wallet
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"` // account and chain polling of the remote wallet
}

// ChainConfig describes the networks known to the application.
type ChainConfig struct {
	Expected       string   `mapstructure:"expected" yaml:"expected"`                 // name or id of the required network, QSaga when empty
	Manifests      []string `mapstructure:"manifests" yaml:"manifests"`               // network manifest files, merged in order
	WellKnownNames bool     `mapstructure:"well_known_names" yaml:"well_known_names"` // label unknown chain ids with public chain names
}

// ContractConfig locates the SagaSynth contract.
type ContractConfig struct {
	Address             string        `mapstructure:"address" yaml:"address"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval" yaml:"receipt_poll_interval"`
}

// BackendConfig locates the backend API.
type BackendConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SessionConfig configures the persisted session.
type SessionConfig struct {
	MarkerPath string `mapstructure:"marker_path" yaml:"marker_path"` // defaults to the user config dir
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Config wraps the entire configuration.
type Config struct {
	Wallet   WalletConfig   `mapstructure:"wallet" yaml:"wallet"`
	Chain    ChainConfig    `mapstructure:"chain" yaml:"chain"`
	Contract ContractConfig `mapstructure:"contract" yaml:"contract"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFile loads the config from a file.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("wallet.provider", ProviderRPC)
	v.SetDefault("contract.address", DefaultContractAddress)

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))

	return cfg, err
}

var (
	// envBindings maps a config key to the environment variables that can provide its value.
	// The first name is the preferred one, the second (if present) the name used by the web
	// frontend or an older release. Viper uses the first one that is set.
	envBindings = map[string][]string{
		"wallet.provider":                {"SAGASYNTH_WALLET_PROVIDER"},
		"wallet.rpc_url":                 {"SAGASYNTH_WALLET_RPC_URL", "WALLET_RPC_URL"},
		"wallet.private_key":             {"SAGASYNTH_WALLET_PRIVATE_KEY", "PRIVATE_KEY"},
		"wallet.kms.key_id":              {"SAGASYNTH_WALLET_KMS_KEY_ID", "KMS_DEPLOYER_KEY_ID"},
		"wallet.kms.key_region":          {"SAGASYNTH_WALLET_KMS_KEY_REGION", "KMS_DEPLOYER_KEY_REGION"},
		"wallet.kms.aws_profile":         {"SAGASYNTH_WALLET_KMS_AWS_PROFILE", "AWS_PROFILE"},
		"wallet.poll_interval":           {"SAGASYNTH_WALLET_POLL_INTERVAL"},
		"chain.expected":                 {"SAGASYNTH_CHAIN_EXPECTED"},
		"chain.manifests":                {"SAGASYNTH_CHAIN_MANIFESTS"},
		"chain.well_known_names":         {"SAGASYNTH_CHAIN_WELL_KNOWN_NAMES"},
		"contract.address":               {"SAGASYNTH_CONTRACT_ADDRESS", "VITE_CONTRACT_ADDRESS"},
		"contract.receipt_poll_interval": {"SAGASYNTH_CONTRACT_RECEIPT_POLL_INTERVAL"},
		"backend.url":                    {"SAGASYNTH_BACKEND_URL", "VITE_API_BASE_URL"},
		"backend.timeout":                {"SAGASYNTH_BACKEND_TIMEOUT"},
		"session.marker_path":            {"SAGASYNTH_SESSION_MARKER_PATH"},
		"log.level":                      {"SAGASYNTH_LOG_LEVEL", "LOG_LEVEL"},
		"log.development":                {"SAGASYNTH_LOG_DEVELOPMENT"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		// Prepend the config key to the env names
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the sections used by every command.
func (c *Config) Validate() error {
	if err := c.Wallet.Validate(); err != nil {
		return fmt.Errorf("invalid wallet config: %w", err)
	}
	if err := c.Contract.Validate(); err != nil {
		return fmt.Errorf("invalid contract config: %w", err)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}

// Validate checks that the selected provider is fully configured.
func (c WalletConfig) Validate() error {
	switch c.Provider {
	case ProviderRPC:
		if c.RPCURL == "" {
			return errors.New("rpc_url is required for the rpc wallet")
		}
	case ProviderKeyed:
		hasKey := c.PrivateKey != ""
		hasKMS := c.KMS.KeyID != ""
		if hasKey == hasKMS {
			return errors.New("exactly one of private_key and kms.key_id is required for the keyed wallet")
		}
		if hasKMS && c.KMS.KeyRegion == "" {
			return errors.New("kms.key_region is required with kms.key_id")
		}
	default:
		return fmt.Errorf("unknown wallet provider %q, expected %q or %q", c.Provider, ProviderRPC, ProviderKeyed)
	}

	if c.PollInterval < 0 {
		return errors.New("poll_interval must not be negative")
	}

	return nil
}

// Validate checks the contract address.
func (c ContractConfig) Validate() error {
	if !common.IsHexAddress(c.Address) {
		return fmt.Errorf("invalid contract address %q", c.Address)
	}
	if c.ReceiptPollInterval < 0 {
		return errors.New("receipt_poll_interval must not be negative")
	}

	return nil
}

// Validate checks the backend URL. It is only required by the backend commands.
func (c BackendConfig) Validate() error {
	if c.URL == "" {
		return errors.New("backend url is required")
	}

	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.URL)
	}

	return nil
}
