package backend

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/backend"
	"github.com/sagasynth/sagasynth/environment"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/txdriver"
)

var (
	generateShort = "Generate a synthetic dataset and store it"

	generateLong = text.LongDesc(`
		Generates a synthetic dataset from the source dataset with the given prompt. The
		backend stores the dataset permanently and returns its links.

		With --mint the dataset is then minted as a metadata NFT from the connected wallet.
	`)

	generateExample = text.Examples(`
		sagasynth backend generate --name "Cardiology notes" \
		  --prompt "Rewrite the transcription for a cardiology consult" --size 20

		# Generate and mint in one go
		sagasynth backend generate --name "Cardiology notes" --prompt "..." --mint
	`)
)

// newSampleCmd creates the "sample" subcommand.
func newSampleCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Show rows of the source dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size := flags.MustInt(cmd.Flags().GetInt("size"))

			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			samples, err := client.FetchDataset(cmd.Context(), size)
			if err != nil {
				return err
			}

			if flags.MustBool(cmd.Flags().GetBool("json")) {
				return printJSON(cmd, samples)
			}

			table := newTable(cmd, "#", "Label", "Text")
			for i, s := range samples {
				table.Append([]string{strconv.Itoa(i + 1), strconv.Itoa(s.Label), truncate(s.Text, 80)})
			}
			table.Render()

			return nil
		},
	}

	cmd.Flags().Int("size", 5, "Number of rows")
	flags.JSON(cmd)

	return cmd
}

// newTestPromptCmd creates the "test-prompt" subcommand.
func newTestPromptCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-prompt",
		Short: "Try a prompt on a few rows before generating a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			records, err := client.TestPrompt(cmd.Context(),
				flags.MustString(cmd.Flags().GetString("prompt")),
				flags.MustString(cmd.Flags().GetString("domain")),
			)
			if err != nil {
				return err
			}

			if flags.MustBool(cmd.Flags().GetBool("json")) {
				return printJSON(cmd, records)
			}

			printRecords(cmd, records)

			return nil
		},
	}

	cmd.Flags().String("prompt", "", "Prompt to test (required)")
	cmd.Flags().String("domain", backend.DefaultDomain, "Dataset domain")
	_ = cmd.MarkFlagRequired("prompt")
	flags.JSON(cmd)

	return cmd
}

func printRecords(cmd *cobra.Command, records []backend.SyntheticRecord) {
	for i, r := range records {
		cmd.Printf("Record %d\n", i+1)
		cmd.Printf("  Original:  %s\n", truncate(r.OriginalText, 120))
		cmd.Printf("  Synthetic: %s\n", truncate(r.SyntheticOutput.SyntheticTranscription, 120))
		if r.SyntheticOutput.MedicalSpecialty != "" {
			cmd.Printf("  Specialty: %s\n", r.SyntheticOutput.MedicalSpecialty)
		}
		if r.SyntheticOutput.Explanation != "" {
			cmd.Printf("  Explanation: %s\n", truncate(r.SyntheticOutput.Explanation, 120))
		}
	}
}

type generateFlags struct {
	req  backend.GenerateRequest
	mint bool
}

// newGenerateCmd creates the "generate" subcommand.
func newGenerateCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Short:   generateShort,
		Long:    generateLong,
		Example: generateExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := generateFlags{req: backend.DefaultGenerateRequest()}
			f.req.DatasetName = flags.MustString(cmd.Flags().GetString("name"))
			f.req.InputText = flags.MustString(cmd.Flags().GetString("prompt"))
			f.req.Description = flags.MustString(cmd.Flags().GetString("description"))
			f.req.Domain = flags.MustString(cmd.Flags().GetString("domain"))
			f.req.Visibility = flags.MustString(cmd.Flags().GetString("visibility"))
			f.req.OutputFormat = flags.MustString(cmd.Flags().GetString("format"))
			f.req.SourceDataset = flags.MustString(cmd.Flags().GetString("source-dataset"))
			f.req.AIModel = flags.MustString(cmd.Flags().GetString("model"))
			f.req.SampleSize = flags.MustInt(cmd.Flags().GetInt("size"))
			f.req.MaxTokens = flags.MustInt(cmd.Flags().GetInt("max-tokens"))
			f.req.PriceUSDC = flags.MustFloat64(cmd.Flags().GetFloat64("price"))
			f.mint = flags.MustBool(cmd.Flags().GetBool("mint"))

			return runGenerate(cmd, cfg, f)
		},
	}

	defaults := backend.DefaultGenerateRequest()

	cmd.Flags().String("name", "", "Dataset name (required)")
	cmd.Flags().String("prompt", "", "Generation prompt (required)")
	cmd.Flags().String("description", "", "Dataset description")
	cmd.Flags().String("domain", defaults.Domain, "Dataset domain")
	cmd.Flags().String("visibility", defaults.Visibility, "Marketplace visibility")
	cmd.Flags().String("format", defaults.OutputFormat, "Output format")
	cmd.Flags().String("source-dataset", defaults.SourceDataset, "Source dataset")
	cmd.Flags().String("model", defaults.AIModel, "Generation model")
	cmd.Flags().Int("size", defaults.SampleSize, "Number of rows to generate")
	cmd.Flags().Int("max-tokens", defaults.MaxTokens, "Token limit of the model")
	cmd.Flags().Float64("price", defaults.PriceUSDC, "Price in USDC")
	cmd.Flags().Bool("mint", false, "Mint the dataset from the connected wallet")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func runGenerate(cmd *cobra.Command, cfg Config, f generateFlags) error {
	if err := f.req.Validate(); err != nil {
		return err
	}

	client, err := loadClient(cmd, cfg)
	if err != nil {
		return err
	}

	resp, err := client.GenerateAndMint(cmd.Context(), f.req)
	if err != nil {
		return err
	}

	records, err := resp.Records()
	if err != nil {
		return err
	}

	cmd.Printf("Generated %d records\n", len(records))
	cmd.Printf("Content: %s\n", resp.IrysLinks.ContentURL)
	if resp.IrysLinks.MetadataURL != "" {
		cmd.Printf("Metadata: %s\n", resp.IrysLinks.MetadataURL)
	}

	if !f.mint {
		return nil
	}

	return mintGenerated(cmd, cfg, resp.MintRequest())
}

func mintGenerated(cmd *cobra.Command, cfg Config, req txdriver.MintRequest) error {
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

	tx, err := mint(ctx, env.Driver, req)
	if err != nil {
		return err
	}

	cmd.Printf("Mint transaction: %s\n", tx.Hash.Hex())
	if tx.Result != nil {
		cmd.Printf("Token ID: %s\n", tx.Result)
	} else {
		cmd.Println("Token ID: not found in the transaction logs")
	}
	if link := env.Registry.Expected().TxURL(tx.Hash.Hex()); link != "" {
		cmd.Printf("Explorer: %s\n", link)
	}

	return nil
}

func mint(ctx context.Context, d *txdriver.Driver, req txdriver.MintRequest) (*txdriver.PendingTransaction, error) {
	tx, err := d.MintMetadata(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dataset stored at %s but minting failed: %w", req.ContentLink, err)
	}

	return tx, nil
}
