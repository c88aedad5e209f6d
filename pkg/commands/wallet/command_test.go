package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagasynth/sagasynth/config"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/internal/testing/simenv"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

func TestNewCommand_Structure(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand(Config{Logger: logger.Nop()})
	require.NoError(t, err)

	assert.Equal(t, "wallet", cmd.Use)

	subs := cmd.Commands()
	require.Len(t, subs, 8)

	uses := make([]string, 0, len(subs))
	for _, sub := range subs {
		uses = append(uses, sub.Use)
	}
	assert.ElementsMatch(t, []string{
		"connect",
		"disconnect",
		"status",
		"watch",
		"switch-network [network]",
		"add-network",
		"send <recipient>",
		"sign <message>",
	}, uses)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	err := Config{}.Validate()
	require.EqualError(t, err, "wallet.Config: missing required fields: Logger")

	_, err = NewCommand(Config{})
	require.Error(t, err)
}

func TestCommandFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      []string
		flag      string
		wantValue string
	}{
		{name: "status json default", args: []string{"status"}, flag: "json", wantValue: "false"},
		{name: "watch for default", args: []string{"watch"}, flag: "for", wantValue: "0s"},
		{name: "add-network decimals default", args: []string{"add-network"}, flag: "decimals", wantValue: "18"},
		{name: "add-network explorer default", args: []string{"add-network"}, flag: "explorer-url", wantValue: ""},
		{name: "send amount", args: []string{"send"}, flag: "amount", wantValue: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd, err := NewCommand(Config{Logger: logger.Nop()})
			require.NoError(t, err)

			sub, _, err := cmd.Find(tt.args)
			require.NoError(t, err)

			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "flag %q not found", tt.flag)
			assert.Equal(t, tt.wantValue, f.DefValue)
		})
	}
}

// newTestRoot wraps the wallet command in a root carrying the persistent flags of the CLI.
// Environments are loaded on sim whatever config file is named.
func newTestRoot(t *testing.T, sim *simenv.Sim) *cobra.Command {
	t.Helper()

	cmd, err := NewCommand(Config{
		Logger: logger.Test(t),
		Deps: Deps{
			ConfigLoader: func(string) (*config.Config, error) {
				return sim.Config, nil
			},
			EnvironmentLoader: func(_ context.Context, cfg *config.Config, opts ...environment.LoadEnvironmentOption) (*environment.Environment, error) {
				return sim.Load(t, cfg, opts...)
			},
		},
	})
	require.NoError(t, err)

	root := &cobra.Command{Use: "sagasynth", SilenceUsage: true, SilenceErrors: true}
	flags.Config(root)
	flags.Yes(root)
	root.AddCommand(cmd)

	return root
}

func execute(t *testing.T, root *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewBufferString(stdin))
	root.SetArgs(append([]string{"wallet"}, args...))

	err := root.ExecuteContext(t.Context())

	return out.String(), err
}

func TestConnectStatusDisconnect(t *testing.T) {
	t.Parallel()

	sim := simenv.NewSim(t)
	root := newTestRoot(t, sim)

	out, err := execute(t, root, "", "status", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet not connected")

	out, err = execute(t, root, "", "connect", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Account: "+sim.Account.Hex())
	assert.Contains(t, out, "Network: Simulated (1337)")
	assert.Contains(t, out, "Balance: 1000000.0 ETH")
	assert.NotContains(t, out, "Wrong network")

	// the remembered session is restored by a later command
	out, err = execute(t, root, "", "status", "--json", "-y")
	require.NoError(t, err)

	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.Connected)
	assert.Equal(t, sim.Account.Hex(), view.Address)
	assert.Equal(t, uint64(1337), view.ChainID)
	assert.True(t, view.CorrectNetwork)
	assert.Equal(t, "Simulated", view.Network)

	out, err = execute(t, root, "", "disconnect", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet disconnected")

	out, err = execute(t, root, "", "status", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet not connected")
}

func TestConnect_Prompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stdin   string
		wantOut string
		wantErr string
	}{
		{
			name:    "approved",
			stdin:   "y\n",
			wantOut: "Account: ",
		},
		{
			name:    "rejected",
			stdin:   "n\n",
			wantErr: "rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := newTestRoot(t, simenv.NewSim(t))

			out, err := execute(t, root, tt.stdin, "connect")
			assert.Contains(t, out, "Approve eth_requestAccounts")
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestLoadEnvironment_ConfigError(t *testing.T) {
	t.Parallel()

	cmd, err := NewCommand(Config{
		Logger: logger.Test(t),
		Deps: Deps{
			ConfigLoader: func(path string) (*config.Config, error) {
				return nil, errors.New("boom")
			},
		},
	})
	require.NoError(t, err)

	root := &cobra.Command{Use: "sagasynth", SilenceUsage: true, SilenceErrors: true}
	flags.Config(root)
	flags.Yes(root)
	root.AddCommand(cmd)

	_, err = execute(t, root, "", "connect", "-c", "custom.yml")
	require.EqualError(t, err, `failed to load config "custom.yml": boom`)
}

func TestSend(t *testing.T) {
	t.Parallel()

	root := newTestRoot(t, simenv.NewSim(t))

	out, err := execute(t, root, "", "send", "0x000000000000000000000000000000000000dEaD", "--amount", "1.5", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "preparing")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Sent 1.5 ETH to 0x000000000000000000000000000000000000dEaD")
	assert.Contains(t, out, "Transaction: 0x")
	assert.NotContains(t, out, "Explorer:")

	_, err = execute(t, root, "", "send", "0x000000000000000000000000000000000000dEaD", "--amount=-1", "-y")
	require.Error(t, err)

	_, err = execute(t, root, "", "send", "0x000000000000000000000000000000000000dEaD", "-y")
	require.ErrorContains(t, err, `required flag(s) "amount" not set`)
}

func TestSign(t *testing.T) {
	t.Parallel()

	root := newTestRoot(t, simenv.NewSim(t))

	out, err := execute(t, root, "", "sign", "hello", "-y")
	require.NoError(t, err)
	// 65 byte signature in hex
	assert.Regexp(t, `^0x[0-9a-f]{130}\n$`, out)
}

func TestSwitchNetwork(t *testing.T) {
	t.Parallel()

	root := newTestRoot(t, simenv.NewSim(t))

	out, err := execute(t, root, "", "switch-network", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet is on Simulated")

	_, err = execute(t, root, "", "switch-network", "Nowhere", "-y")
	require.ErrorContains(t, err, `unknown network "Nowhere"`)
}

func TestAddNetwork(t *testing.T) {
	t.Parallel()

	root := newTestRoot(t, simenv.NewSim(t))

	out, err := execute(t, root, "", "add-network",
		"--chain-id", "0x10",
		"--name", "Sixteen",
		"--currency-name", "Sixteen Ether",
		"--currency-symbol", "SXT",
		"--rpc-url", "https://rpc.sixteen.invalid",
		"--explorer-url", "https://explorer.sixteen.invalid",
		"-y",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Added network Sixteen")
	assert.Contains(t, out, "Explorer: https://explorer.sixteen.invalid")

	_, err = execute(t, root, "", "add-network", "--chain-id", "0x10", "-y")
	require.ErrorContains(t, err, "required flag(s)")
}

func TestWatch(t *testing.T) {
	t.Parallel()

	root := newTestRoot(t, simenv.NewSim(t))

	out, err := execute(t, root, "", "watch", "--for", "200ms", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "connecting")
}
