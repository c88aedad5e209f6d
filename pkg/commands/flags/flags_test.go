package flags

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMust(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a", MustString("a", errors.New("ignored")))
	assert.True(t, MustBool(true, nil))
	assert.Equal(t, []string{"a", "b"}, MustStringSlice([]string{"a", "b"}, nil))
	assert.Equal(t, 3, MustInt(3, nil))
	assert.InDelta(t, 0.5, MustFloat64(0.5, nil), 0)
	assert.Equal(t, time.Second, MustDuration(time.Second, nil))
}

func TestMustInt64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    []string
		want    int64
		wantErr string
	}{
		{name: "default", want: 0},
		{name: "set", give: []string{"--created-at", "1714564800"}, want: 1714564800},
		{name: "malformed", give: []string{"--created-at", "yesterday"}, wantErr: `invalid argument "yesterday" for "--created-at"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got int64
			cmd := &cobra.Command{Use: "test", RunE: func(cmd *cobra.Command, _ []string) error {
				got = MustInt64(cmd.Flags().GetInt64("created-at"))
				return nil
			}}
			cmd.Flags().Int64("created-at", 0, "")
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			cmd.SetArgs(tt.give)

			err := cmd.Execute()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()

	t.Run("flag properties", func(t *testing.T) {
		t.Parallel()

		cmd := &cobra.Command{Use: "test"}
		Config(cmd)

		f := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, f)
		assert.Equal(t, "c", f.Shorthand)
		assert.Equal(t, DefaultConfigPath, f.DefValue)
	})

	t.Run("inherited by subcommands", func(t *testing.T) {
		t.Parallel()

		var got string
		root := &cobra.Command{Use: "root"}
		Config(root)
		root.AddCommand(&cobra.Command{
			Use: "sub",
			Run: func(cmd *cobra.Command, _ []string) {
				got = MustString(cmd.Flags().GetString("config"))
			},
		})

		root.SetArgs([]string{"sub", "-c", "custom.yml"})
		require.NoError(t, root.Execute())
		assert.Equal(t, "custom.yml", got)
	})
}

func TestYes(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	Yes(cmd)

	f := cmd.PersistentFlags().Lookup("yes")
	require.NotNil(t, f)
	assert.Equal(t, "y", f.Shorthand)
	assert.Equal(t, "false", f.DefValue)

	cmd.SetArgs([]string{"-y"})
	require.NoError(t, cmd.Execute())
	assert.True(t, MustBool(cmd.Flags().GetBool("yes")))
}

func TestJSON(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test"}
	JSON(cmd)

	f := cmd.Flags().Lookup("json")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}

func TestAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		required bool
		wantErr  bool
	}{
		{name: "required", required: true, wantErr: true},
		{name: "optional", required: false, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := &cobra.Command{Use: "test"}
			Amount(cmd, tt.required)

			require.NotNil(t, cmd.Flags().Lookup("amount"))

			err := cmd.ValidateRequiredFlags()
			if tt.wantErr {
				require.ErrorContains(t, err, "amount")
				return
			}
			require.NoError(t, err)
		})
	}
}
