package backend

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

var (
	backendShort = "SagaSynth backend commands"

	backendLong = text.LongDesc(`
		Commands calling the SagaSynth backend configured in the backend section: sampling the
		source dataset, testing prompts, generating datasets and listing the marketplace and
		bounties.
	`)
)

// Config holds the configuration for backend commands.
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
		return errors.New("backend.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates a new backend command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:   "backend",
		Short: backendShort,
		Long:  backendLong,
	}

	cmd.AddCommand(newSampleCmd(cfg))
	cmd.AddCommand(newTestPromptCmd(cfg))
	cmd.AddCommand(newGenerateCmd(cfg))
	cmd.AddCommand(newMarketplaceCmd(cfg))
	cmd.AddCommand(newBountiesCmd(cfg))
	cmd.AddCommand(newBountyCmd(cfg))

	return cmd, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))

	return nil
}

func newTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetHeader(header)

	return table
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}

	return string(r[:n-3]) + "..."
}
