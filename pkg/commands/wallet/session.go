package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/session"
)

var (
	connectShort = "Connect the wallet"

	connectLong = text.LongDesc(`
		Requests account access from the configured wallet and shows the connected account,
		its network and balance. A wallet on another network than the expected one stays
		connected; use switch-network to move it.
	`)

	connectExample = text.Examples(`
		# Connect the wallet of the default configuration file
		sagasynth wallet connect

		# Connect a keyed wallet without confirming each request
		sagasynth wallet connect --config prod.yml --yes
	`)

	disconnectShort = "Disconnect the wallet and forget the session"

	statusShort = "Show the wallet session"

	statusLong = text.LongDesc(`
		Shows the remembered wallet session. When a previous connection is remembered the
		wallet is reconnected first, otherwise the session is reported as not connected.
	`)

	watchShort = "Follow session changes"

	watchLong = text.LongDesc(`
		Connects the wallet and prints the session after every change, such as the user
		switching accounts or networks in the wallet, until interrupted or --for elapses.
	`)
)

// newConnectCmd creates the "connect" subcommand.
func newConnectCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connect",
		Short:   connectShort,
		Long:    connectLong,
		Example: connectExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnect(cmd, cfg)
		},
	}

	return cmd
}

func runConnect(cmd *cobra.Command, cfg Config) error {
	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	snap, err := env.Session.Connect(cmd.Context())
	if err != nil {
		return err
	}

	printSnapshot(cmd, env.Registry, snap)

	return nil
}

// newDisconnectCmd creates the "disconnect" subcommand.
func newDisconnectCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: disconnectShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd, cfg)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Session.Disconnect(); err != nil {
				return err
			}

			cmd.Println("Wallet disconnected")

			return nil
		},
	}
}

// statusView is the JSON form of a session.
type statusView struct {
	Connected      bool   `json:"connected"`
	Address        string `json:"address,omitempty"`
	ChainID        uint64 `json:"chainId,omitempty"`
	Network        string `json:"network"`
	CorrectNetwork bool   `json:"correctNetwork"`
	Balance        string `json:"balance,omitempty"`
	Error          string `json:"error,omitempty"`
}

func newStatusView(snap session.Snapshot) statusView {
	v := statusView{
		Connected:      snap.IsConnected(),
		Network:        snap.NetworkName,
		CorrectNetwork: snap.CorrectNetwork,
	}
	if snap.Address != nil {
		v.Address = snap.Address.Hex()
	}
	if snap.ChainID != nil {
		v.ChainID = *snap.ChainID
	}
	if snap.Balance != nil {
		v.Balance = *snap.Balance
	}
	if snap.LastError != nil {
		v.Error = snap.LastError.Error()
	}

	return v
}

// newStatusCmd creates the "status" subcommand.
func newStatusCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShort,
		Long:  statusLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, flags.MustBool(cmd.Flags().GetBool("json")))
		},
	}

	flags.JSON(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, cfg Config, asJSON bool) error {
	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	_, remembered, err := env.Marker.Load()
	if err != nil {
		return err
	}

	snap := env.Session.Snapshot()
	if remembered {
		// the outcome is part of the printed session
		snap, _ = env.Session.Connect(cmd.Context())
	}

	if asJSON {
		b, err := json.MarshalIndent(newStatusView(snap), "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(b))

		return nil
	}

	printSnapshot(cmd, env.Registry, snap)

	return nil
}

type watchFlags struct {
	duration time.Duration
}

// newWatchCmd creates the "watch" subcommand.
func newWatchCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShort,
		Long:  watchLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := flags.MustDuration(cmd.Flags().GetDuration("for"))

			return runWatch(cmd, cfg, watchFlags{duration: d})
		},
	}

	cmd.Flags().Duration("for", 0, "Stop watching after this duration, 0 watches until interrupted")

	return cmd
}

func runWatch(cmd *cobra.Command, cfg Config, f watchFlags) error {
	ctx := cmd.Context()
	if f.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.duration)
		defer cancel()
	}

	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	updates := make(chan session.Snapshot, 16)
	sub := env.Session.Watch(updates)
	defer sub.Unsubscribe()

	if _, err = env.Session.Connect(ctx); err != nil {
		cmd.PrintErrf("Connect failed: %v\n", err)
	}

	for {
		select {
		case snap := <-updates:
			cmd.Printf("[%s] %s\n", time.Now().Format(time.TimeOnly), summary(env.Registry, snap))
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// summary describes a session on one line.
func summary(registry *chain.Registry, snap session.Snapshot) string {
	switch {
	case snap.Connecting:
		return "connecting"
	case !snap.IsConnected() && snap.LastError != nil:
		return "not connected: " + snap.LastError.Error()
	case !snap.IsConnected():
		return "not connected"
	}

	s := fmt.Sprintf("%s on %s", snap.Address.Hex(), snap.NetworkName)
	if snap.Balance != nil {
		s += fmt.Sprintf(", balance %s %s", *snap.Balance, currencySymbol(registry, snap))
	}
	if !snap.CorrectNetwork {
		s += fmt.Sprintf(" (wrong network, expected %s)", registry.Expected().Name)
	}

	return s
}

func currencySymbol(registry *chain.Registry, snap session.Snapshot) string {
	if snap.ChainID != nil {
		if d, ok := registry.ByID(*snap.ChainID); ok {
			return d.NativeCurrency.Symbol
		}
	}

	return ""
}

func printSnapshot(cmd *cobra.Command, registry *chain.Registry, snap session.Snapshot) {
	if !snap.IsConnected() {
		cmd.Println("Wallet not connected")
		if snap.LastError != nil {
			cmd.Printf("Last error: %v\n", snap.LastError)
		}

		return
	}

	cmd.Printf("Account: %s\n", snap.Address.Hex())
	cmd.Printf("Network: %s (%d)\n", snap.NetworkName, *snap.ChainID)
	if snap.Balance != nil {
		cmd.Printf("Balance: %s %s\n", *snap.Balance, currencySymbol(registry, snap))
	}

	if !snap.CorrectNetwork {
		cmd.Printf("⚠️  Wrong network, SagaSynth requires %s. Run `sagasynth wallet switch-network`.\n",
			registry.Expected().Name)
	}
}
