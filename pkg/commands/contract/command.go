package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/txdriver"
)

var (
	contractShort = "SagaSynth contract commands"

	contractLong = text.LongDesc(`
		Commands that send SagaSynth contract transactions from the connected wallet and read
		the contract state.

		Every transaction first makes sure the wallet is on the expected network, then waits
		until the transaction is mined and prints its outcome.
	`)
)

// Config holds the configuration for contract commands.
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
		return errors.New("contract.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates a new contract command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:   "contract",
		Short: contractShort,
		Long:  contractLong,
	}

	cmd.AddCommand(newMintCmd(cfg))
	cmd.AddCommand(newCreateBountyCmd(cfg))
	cmd.AddCommand(newAddContributorCmd(cfg))
	cmd.AddCommand(newDistributeBountyCmd(cfg))
	cmd.AddCommand(newDonateCmd(cfg))
	cmd.AddCommand(newApproveCmd(cfg))
	cmd.AddCommand(newSetApprovalForAllCmd(cfg))
	cmd.AddCommand(newTransferCmd(cfg))
	cmd.AddCommand(newSafeTransferCmd(cfg))
	cmd.AddCommand(newTransferOwnershipCmd(cfg))
	cmd.AddCommand(newRenounceOwnershipCmd(cfg))
	cmd.AddCommand(newReadCmd(cfg))

	return cmd, nil
}

// writeFunc sends one transaction through the driver.
type writeFunc func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error)

// runWrite connects the wallet, sends the transaction and prints its outcome. resultLabel names
// the value the transaction produces, if any.
func runWrite(cmd *cobra.Command, cfg Config, resultLabel string, write writeFunc) error {
	env, err := loadEnvironment(cmd, cfg, environment.WithObserver(func(tx txdriver.PendingTransaction) {
		cmd.PrintErrf("%s: %s\n", tx.Function, tx.State)
	}))
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()

	if _, err = env.Session.Connect(ctx); err != nil {
		return err
	}

	tx, err := write(ctx, env.Driver)
	if err != nil {
		return err
	}

	printTx(cmd, env.Registry, tx, resultLabel)

	return nil
}

func printTx(cmd *cobra.Command, registry *chain.Registry, tx *txdriver.PendingTransaction, resultLabel string) {
	cmd.Printf("Transaction: %s\n", tx.Hash.Hex())
	if tx.Receipt != nil && tx.Receipt.BlockNumber != nil {
		cmd.Printf("Block: %s\n", tx.Receipt.BlockNumber)
	}

	if resultLabel != "" {
		if tx.Result != nil {
			cmd.Printf("%s: %s\n", resultLabel, tx.Result)
		} else {
			cmd.Printf("%s: not found in the transaction logs\n", resultLabel)
		}
	}

	if link := registry.Expected().TxURL(tx.Hash.Hex()); link != "" {
		cmd.Printf("Explorer: %s\n", link)
	}
}

// parseID parses a token or bounty id in decimal or 0x prefixed hex form.
func parseID(what, s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", what, s)
	}

	return id, nil
}

// parseAmount parses an amount in native currency units into wei.
func parseAmount(s string) (*big.Int, error) {
	wei, err := chain.ParseEther(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	return wei, nil
}
