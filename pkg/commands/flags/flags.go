// Package flags provides reusable flag helpers for CLI commands.
//
// This package should only contain common flags that can be used by multiple commands
// to ensure unified naming and consistent behavior across the CLI.
// Command-specific flags should be defined locally in the command file.
package flags

import (
	"time"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is the configuration file read when --config is not given.
const DefaultConfigPath = "sagasynth.yml"

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// MustStringSlice returns the string slice value, ignoring the error.
func MustStringSlice(s []string, _ error) []string { return s }

// MustInt returns the int value, ignoring the error.
func MustInt(i int, _ error) int { return i }

// MustInt64 returns the int64 value, ignoring the error.
// Safe to use with registered flags, pflag rejects a malformed value while parsing.
func MustInt64(i int64, _ error) int64 { return i }

// MustFloat64 returns the float64 value, ignoring the error.
func MustFloat64(f float64, _ error) float64 { return f }

// MustDuration returns the duration value, ignoring the error.
func MustDuration(d time.Duration, _ error) time.Duration { return d }

// Config adds the persistent --config/-c flag naming the configuration file. A missing file
// is not an error, the configuration then comes from the environment only.
// Retrieve the value with cmd.Flags().GetString("config").
func Config(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", DefaultConfigPath, "Configuration file")
}

// Yes adds the persistent --yes/-y flag approving every request of a keyed wallet without
// prompting.
// Retrieve the value with cmd.Flags().GetBool("yes").
func Yes(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolP("yes", "y", false, "Approve keyed wallet requests without prompting")
}

// JSON adds the --json flag printing the result as JSON instead of text.
// Retrieve the value with cmd.Flags().GetBool("json").
func JSON(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print the result as JSON")
}

// Amount adds the --amount flag holding a native currency amount in ether units, e.g. "0.5".
// Retrieve the value with cmd.Flags().GetString("amount").
func Amount(cmd *cobra.Command, required bool) {
	cmd.Flags().String("amount", "", "Amount in native currency units, e.g. 0.5")
	if required {
		_ = cmd.MarkFlagRequired("amount")
	}
}
