package wallet

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

var (
	walletShort = "Wallet session and network commands"

	walletLong = text.LongDesc(`
		Commands for connecting the wallet selected in the configuration, inspecting the
		session and moving the wallet between networks.

		A successful connection is remembered, so later commands reconnect without asking
		for account access again until the wallet is disconnected.
	`)
)

// Config holds the configuration for wallet commands.
type Config struct {
	// Logger is the logger to use for command output. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	var missing []string

	if c.Logger == nil {
		missing = append(missing, "Logger")
	}

	if len(missing) > 0 {
		return errors.New("wallet.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates a new wallet command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: walletShort,
		Long:  walletLong,
	}

	cmd.AddCommand(newConnectCmd(cfg))
	cmd.AddCommand(newDisconnectCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newWatchCmd(cfg))
	cmd.AddCommand(newSwitchNetworkCmd(cfg))
	cmd.AddCommand(newAddNetworkCmd(cfg))
	cmd.AddCommand(newSendCmd(cfg))
	cmd.AddCommand(newSignCmd(cfg))

	return cmd, nil
}
