// Package contract provides CLI commands for the SagaSynth contract: the writes sent from the
// connected wallet and the reads of its state.
package contract

import (
	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands/cmdenv"
)

// Deps holds the injectable dependencies for contract commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader cmdenv.ConfigLoaderFunc

	// EnvironmentLoader builds the environment.
	// Default: environment.Load
	EnvironmentLoader cmdenv.EnvironmentLoaderFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.EnvironmentLoader == nil {
		d.EnvironmentLoader = environment.Load
	}
}

func loadEnvironment(cmd *cobra.Command, cfg Config, opts ...environment.LoadEnvironmentOption) (*environment.Environment, error) {
	deps := cfg.deps()

	return cmdenv.LoadEnvironment(cmd, cfg.Logger, deps.ConfigLoader, deps.EnvironmentLoader, opts...)
}
