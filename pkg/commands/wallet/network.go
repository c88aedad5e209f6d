package wallet

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/network"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/commands/text"
)

var (
	switchNetworkShort = "Move the wallet to a network"

	switchNetworkLong = text.LongDesc(`
		Asks the wallet to switch to the named network, adding it to the wallet first when
		the wallet does not know it. Without a network the wallet is connected and moved to
		the network SagaSynth requires.
	`)

	switchNetworkExample = text.Examples(`
		# Move the wallet to the expected network
		sagasynth wallet switch-network

		# Move the wallet to a network of the manifests by name or chain id
		sagasynth wallet switch-network QSaga
		sagasynth wallet switch-network 0x9c77d5a6d4240
	`)

	addNetworkShort = "Add a custom network to the wallet"

	addNetworkExample = text.Examples(`
		sagasynth wallet add-network --chain-id 0x539 --name Local \
		  --currency-name Ether --currency-symbol ETH --rpc-url http://127.0.0.1:8545
	`)
)

// newSwitchNetworkCmd creates the "switch-network" subcommand.
func newSwitchNetworkCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:     "switch-network [network]",
		Short:   switchNetworkShort,
		Long:    switchNetworkLong,
		Example: switchNetworkExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) == 1 {
				ref = args[0]
			}

			return runSwitchNetwork(cmd, cfg, ref)
		},
	}
}

func runSwitchNetwork(cmd *cobra.Command, cfg Config, ref string) error {
	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()

	if ref == "" {
		if _, err = env.Session.Connect(ctx); err != nil {
			return err
		}
		if err = env.Negotiator.EnsureExpectedChain(ctx, env.Session); err != nil {
			return err
		}

		cmd.Printf("Wallet is on %s\n", env.Registry.Expected())

		return nil
	}

	desc, ok := env.Registry.ByName(ref)
	if !ok {
		desc, ok = env.Registry.Lookup(ref)
	}
	if !ok {
		return fmt.Errorf("unknown network %q, add it to a network manifest or with add-network", ref)
	}

	if err = env.Negotiator.SwitchTo(ctx, desc); err != nil {
		return err
	}

	cmd.Printf("Wallet switched to %s\n", desc)

	return nil
}

type addNetworkFlags struct {
	network network.CustomNetwork
}

// newAddNetworkCmd creates the "add-network" subcommand.
func newAddNetworkCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add-network",
		Short:   addNetworkShort,
		Example: addNetworkExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			decimals := flags.MustInt(cmd.Flags().GetInt("decimals"))

			f := addNetworkFlags{network: network.CustomNetwork{
				ChainID:          flags.MustString(cmd.Flags().GetString("chain-id")),
				ChainName:        flags.MustString(cmd.Flags().GetString("name")),
				CurrencyName:     flags.MustString(cmd.Flags().GetString("currency-name")),
				CurrencySymbol:   flags.MustString(cmd.Flags().GetString("currency-symbol")),
				CurrencyDecimals: decimals,
				RPCURL:           flags.MustString(cmd.Flags().GetString("rpc-url")),
				BlockExplorerURL: flags.MustString(cmd.Flags().GetString("explorer-url")),
			}}

			return runAddNetwork(cmd, cfg, f)
		},
	}

	cmd.Flags().String("chain-id", "", "Chain ID as a 0x prefixed hex string (required)")
	cmd.Flags().String("name", "", "Network name (required)")
	cmd.Flags().String("currency-name", "", "Native currency name")
	cmd.Flags().String("currency-symbol", "", "Native currency symbol")
	cmd.Flags().Int("decimals", network.DefaultDecimals, "Native currency decimals")
	cmd.Flags().String("rpc-url", "", "RPC URL (required)")
	cmd.Flags().String("explorer-url", "", "Block explorer URL")
	_ = cmd.MarkFlagRequired("chain-id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("rpc-url")

	return cmd
}

func runAddNetwork(cmd *cobra.Command, cfg Config, f addNetworkFlags) error {
	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()

	if _, err = env.Session.Connect(ctx); err != nil {
		return err
	}

	desc, err := env.Negotiator.AddCustomNetwork(ctx, env.Session, f.network)
	if err != nil {
		return err
	}

	cmd.Printf("Added network %s\n", desc)
	if len(desc.ExplorerURLs) > 0 {
		cmd.Printf("Explorer: %s\n", desc.ExplorerURLs[0])
	}

	return nil
}

// explorerLink returns the explorer link of a transaction on the expected network, if any.
func explorerLink(registry *chain.Registry, hash string) string {
	return registry.Expected().TxURL(hash)
}
