// Package backend provides CLI commands for the SagaSynth backend API: dataset sampling, prompt
// testing, generation, the marketplace listing and the bounties the backend manages.
package backend

import (
	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/backend"
	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands/cmdenv"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

// ClientLoaderFunc creates the backend client described by the backend section.
type ClientLoaderFunc func(cfg config.BackendConfig, lggr logger.Logger) (*backend.Client, error)

// Deps holds the injectable dependencies for backend commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader cmdenv.ConfigLoaderFunc

	// ClientLoader creates the backend client.
	// Default: environment.NewBackendClient
	ClientLoader ClientLoaderFunc

	// EnvironmentLoader builds the environment, used to mint generated datasets.
	// Default: environment.Load
	EnvironmentLoader cmdenv.EnvironmentLoaderFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.ClientLoader == nil {
		d.ClientLoader = environment.NewBackendClient
	}
	if d.EnvironmentLoader == nil {
		d.EnvironmentLoader = environment.Load
	}
}

func loadClient(cmd *cobra.Command, cfg Config) (*backend.Client, error) {
	deps := cfg.deps()

	appCfg, err := cmdenv.LoadConfig(cmd, deps.ConfigLoader)
	if err != nil {
		return nil, err
	}

	return deps.ClientLoader(appCfg.Backend, cfg.Logger)
}

func loadEnvironment(cmd *cobra.Command, cfg Config, opts ...environment.LoadEnvironmentOption) (*environment.Environment, error) {
	deps := cfg.deps()

	return cmdenv.LoadEnvironment(cmd, cfg.Logger, deps.ConfigLoader, deps.EnvironmentLoader, opts...)
}
