// Package cmdenv loads the configuration and environment of a command from its persistent
// flags.
package cmdenv

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

// ConfigLoaderFunc loads the configuration file at path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// EnvironmentLoaderFunc builds the environment from a loaded configuration.
type EnvironmentLoaderFunc func(
	ctx context.Context,
	cfg *config.Config,
	opts ...environment.LoadEnvironmentOption,
) (*environment.Environment, error)

// LoadConfig loads the configuration named by --config.
func LoadConfig(cmd *cobra.Command, load ConfigLoaderFunc) (*config.Config, error) {
	path := flags.MustString(cmd.Flags().GetString("config"))

	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", path, err)
	}

	return cfg, nil
}

// LoadEnvironment loads the configuration named by --config and builds the environment with
// lggr. Keyed wallet requests are confirmed on the terminal unless --yes is set.
func LoadEnvironment(
	cmd *cobra.Command,
	lggr logger.Logger,
	loadConfig ConfigLoaderFunc,
	loadEnv EnvironmentLoaderFunc,
	opts ...environment.LoadEnvironmentOption,
) (*environment.Environment, error) {
	cfg, err := LoadConfig(cmd, loadConfig)
	if err != nil {
		return nil, err
	}

	base := []environment.LoadEnvironmentOption{environment.WithLogger(lggr)}
	if !flags.MustBool(cmd.Flags().GetBool("yes")) {
		base = append(base, environment.WithApprover(environment.PromptApprover(cmd.InOrStdin(), cmd.ErrOrStderr())))
	}

	env, err := loadEnv(cmd.Context(), cfg, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	return env, nil
}
