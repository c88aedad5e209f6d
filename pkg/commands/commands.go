// Package commands provides the command groups of the sagasynth CLI.
//
// There are two ways to use commands from this package:
//
// 1. Via the Commands factory (recommended for most use cases):
//
//	cmds := commands.New(lggr)
//	walletCmd, err := cmds.Wallet()
//	...
//	rootCmd.AddCommand(walletCmd)
//
// 2. Via direct package imports (for advanced DI/testing):
//
//	import "github.com/sagasynth/sagasynth/pkg/commands/wallet"
//
//	cmd, err := wallet.NewCommand(wallet.Config{
//	    Logger: lggr,
//	    Deps:   wallet.Deps{...}, // inject loaders for testing
//	})
package commands

import (
	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/pkg/commands/backend"
	"github.com/sagasynth/sagasynth/pkg/commands/contract"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/commands/wallet"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

// Commands provides a factory for creating CLI commands with shared configuration.
// This allows setting the logger once and reusing it across all commands.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger.
// The logger will be shared across all commands created by this factory.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Wallet creates the wallet command group.
func (c *Commands) Wallet() (*cobra.Command, error) {
	return wallet.NewCommand(wallet.Config{Logger: c.lggr})
}

// Contract creates the contract command group.
func (c *Commands) Contract() (*cobra.Command, error) {
	return contract.NewCommand(contract.Config{Logger: c.lggr})
}

// Backend creates the backend command group.
func (c *Commands) Backend() (*cobra.Command, error) {
	return backend.NewCommand(backend.Config{Logger: c.lggr})
}

// AddTo adds the persistent flags of the CLI and every command group to root.
func (c *Commands) AddTo(root *cobra.Command) error {
	flags.Config(root)
	flags.Yes(root)

	for _, newCmd := range []func() (*cobra.Command, error){c.Wallet, c.Contract, c.Backend} {
		cmd, err := newCmd()
		if err != nil {
			return err
		}
		root.AddCommand(cmd)
	}

	return nil
}
