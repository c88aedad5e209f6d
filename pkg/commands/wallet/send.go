package wallet

import (
	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/txdriver"
)

var (
	sendShort = "Send native currency from the connected account"

	sendExample = text.Examples(`
		# Send 0.5 SQA
		sagasynth wallet send 0x36D65942d98b6Ed2CA01A1f85e7ca7afA1C04CE6 --amount 0.5
	`)

	signShort = "Sign a message with the connected account"
)

// newSendCmd creates the "send" subcommand.
func newSendCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "send <recipient>",
		Short:   sendShort,
		Example: sendExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, cfg, args[0], flags.MustString(cmd.Flags().GetString("amount")))
		},
	}

	flags.Amount(cmd, true)

	return cmd
}

func runSend(cmd *cobra.Command, cfg Config, recipient, amount string) error {
	env, err := loadEnvironment(cmd, cfg, environment.WithObserver(func(tx txdriver.PendingTransaction) {
		cmd.PrintErrf("%s\n", tx.State)
	}))
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err = env.Session.Connect(cmd.Context()); err != nil {
		return err
	}

	tx, err := env.Driver.SendValue(cmd.Context(), recipient, amount)
	if err != nil {
		return err
	}

	cmd.Printf("Sent %s %s to %s\n", amount, env.Registry.Expected().NativeCurrency.Symbol, recipient)
	cmd.Printf("Transaction: %s\n", tx.Hash.Hex())
	if link := explorerLink(env.Registry, tx.Hash.Hex()); link != "" {
		cmd.Printf("Explorer: %s\n", link)
	}

	return nil
}

// newSignCmd creates the "sign" subcommand.
func newSignCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <message>",
		Short: signShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, cfg)
			if err != nil {
				return err
			}
			defer env.Close()

			if _, err = env.Session.Connect(cmd.Context()); err != nil {
				return err
			}

			sig, err := env.Driver.SignMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Println(sig)

			return nil
		},
	}
}
