package contract

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/pkg/commands/text"
	"github.com/sagasynth/sagasynth/txdriver"
)

var (
	mintShort = "Mint a dataset metadata NFT"

	mintLong = text.LongDesc(`
		Mints an NFT recording where a dataset is stored and the hash of its content. The
		token id of the new NFT is printed once the transaction is mined.
	`)

	mintExample = text.Examples(`
		sagasynth contract mint \
		  --source-url https://gateway.irys.xyz/abc \
		  --content-hash 0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08 \
		  --content-link https://gateway.irys.xyz/def \
		  --tags medical,synthetic --token-uri https://gateway.irys.xyz/meta.json
	`)

	createBountyExample = text.Examples(`
		# Fund a bounty with 2.5 SQA
		sagasynth contract create-bounty --amount 2.5
	`)

	safeTransferExample = text.Examples(`
		sagasynth contract safe-transfer 0xFrom 0xTo 7
		sagasynth contract safe-transfer 0xFrom 0xTo 7 --data 0xcafe
	`)
)

type mintFlags struct {
	req txdriver.MintRequest
}

// newMintCmd creates the "mint" subcommand.
func newMintCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mint",
		Short:   mintShort,
		Long:    mintLong,
		Example: mintExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := mintFlags{req: txdriver.MintRequest{
				SourceURL:     flags.MustString(cmd.Flags().GetString("source-url")),
				ContentHash:   flags.MustString(cmd.Flags().GetString("content-hash")),
				ContentLink:   flags.MustString(cmd.Flags().GetString("content-link")),
				EmbedVectorID: flags.MustString(cmd.Flags().GetString("embed-vector-id")),
				CreatedAt:     flags.MustInt64(cmd.Flags().GetInt64("created-at")),
				Tags:          flags.MustStringSlice(cmd.Flags().GetStringSlice("tags")),
				TokenURI:      flags.MustString(cmd.Flags().GetString("token-uri")),
			}}

			return runWrite(cmd, cfg, "Token ID", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.MintMetadata(ctx, f.req)
			})
		},
	}

	cmd.Flags().String("source-url", "", "URL of the dataset source (required)")
	cmd.Flags().String("content-hash", "", "Hash of the dataset content, hex encoded (required)")
	cmd.Flags().String("content-link", "", "URL of the dataset content (required)")
	cmd.Flags().String("embed-vector-id", "", "ID of the embedding vector")
	cmd.Flags().StringSlice("tags", nil, "Comma separated tags")
	cmd.Flags().String("token-uri", "", "Token metadata URI")
	cmd.Flags().Int64("created-at", 0, "Creation time as a unix timestamp, defaults to now")
	_ = cmd.MarkFlagRequired("source-url")
	_ = cmd.MarkFlagRequired("content-hash")
	_ = cmd.MarkFlagRequired("content-link")

	return cmd
}

// newCreateBountyCmd creates the "create-bounty" subcommand.
func newCreateBountyCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create-bounty",
		Short:   "Create a bounty funded with the given amount",
		Example: createBountyExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := parseAmount(flags.MustString(cmd.Flags().GetString("amount")))
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "Bounty ID", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.CreateBounty(ctx, amount)
			})
		},
	}

	flags.Amount(cmd, true)

	return cmd
}

// newAddContributorCmd creates the "add-contributor" subcommand.
func newAddContributorCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add-contributor <bounty-id> <contributor>",
		Short: "Add a contributor to a bounty",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("bounty id", args[0])
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.AddContributor(ctx, id, args[1])
			})
		},
	}
}

// newDistributeBountyCmd creates the "distribute-bounty" subcommand.
func newDistributeBountyCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "distribute-bounty <bounty-id>",
		Short: "Split a bounty between its contributors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("bounty id", args[0])
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.DistributeBounty(ctx, id)
			})
		},
	}
}

// newDonateCmd creates the "donate" subcommand.
func newDonateCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "donate <metadata-id>",
		Short: "Donate to the creator of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("metadata id", args[0])
			if err != nil {
				return err
			}

			amount, err := parseAmount(flags.MustString(cmd.Flags().GetString("amount")))
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.DonateToCreator(ctx, id, amount)
			})
		},
	}

	flags.Amount(cmd, true)

	return cmd
}

// newApproveCmd creates the "approve" subcommand.
func newApproveCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <to> <token-id>",
		Short: "Approve an account to transfer a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("token id", args[1])
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.Approve(ctx, args[0], id)
			})
		},
	}
}

// newSetApprovalForAllCmd creates the "set-approval-for-all" subcommand.
func newSetApprovalForAllCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set-approval-for-all <operator> <true|false>",
		Short: "Allow or forbid an operator to transfer every token of the account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			approved, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.SetApprovalForAll(ctx, args[0], approved)
			})
		},
	}
}

// newTransferCmd creates the "transfer" subcommand.
func newTransferCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <token-id>",
		Short: "Transfer a token",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("token id", args[2])
			if err != nil {
				return err
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.TransferFrom(ctx, args[0], args[1], id)
			})
		},
	}
}

// newSafeTransferCmd creates the "safe-transfer" subcommand.
func newSafeTransferCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "safe-transfer <from> <to> <token-id>",
		Short:   "Transfer a token to an account or a contract accepting it",
		Example: safeTransferExample,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("token id", args[2])
			if err != nil {
				return err
			}

			var data []byte
			if s := flags.MustString(cmd.Flags().GetString("data")); s != "" {
				if data, err = hexutil.Decode(s); err != nil {
					return err
				}
			}

			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.SafeTransferFrom(ctx, args[0], args[1], id, data)
			})
		},
	}

	cmd.Flags().String("data", "", "Data passed to the receiving contract, 0x prefixed hex")

	return cmd
}

// newTransferOwnershipCmd creates the "transfer-ownership" subcommand.
func newTransferOwnershipCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-ownership <new-owner>",
		Short: "Hand the contract over to a new owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.TransferOwnership(ctx, args[0])
			})
		},
	}
}

// newRenounceOwnershipCmd creates the "renounce-ownership" subcommand.
func newRenounceOwnershipCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "renounce-ownership",
		Short: "Leave the contract without owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWrite(cmd, cfg, "", func(ctx context.Context, d *txdriver.Driver) (*txdriver.PendingTransaction, error) {
				return d.RenounceOwnership(ctx)
			})
		},
	}
}
