package contract

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
	"github.com/sagasynth/sagasynth/txdriver"
)

// readFunc reads a value of the contract. The value is printed as is, or as JSON with --json.
type readFunc func(ctx context.Context, r *txdriver.Reader, args []string) (any, error)

// newReadCmd creates the "read" command group.
func newReadCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the contract state",
		Long:  "Read the contract state. Reads need no connected account.",
	}

	cmd.PersistentFlags().Bool("json", false, "Print the result as JSON")

	reads := []struct {
		use   string
		short string
		args  int
		read  readFunc
	}{
		{
			use:   "metadata <token-id>",
			short: "Show the metadata of a token",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				id, err := parseID("token id", args[0])
				if err != nil {
					return nil, err
				}

				m, err := r.GetMetadata(ctx, id)
				if err != nil {
					return nil, err
				}

				return newMetadataView(m), nil
			},
		},
		{
			use:   "bounty <bounty-id>",
			short: "Show a bounty",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				id, err := parseID("bounty id", args[0])
				if err != nil {
					return nil, err
				}

				b, err := r.GetBounty(ctx, id)
				if err != nil {
					return nil, err
				}

				return newBountyView(b), nil
			},
		},
		{
			use:   "by-creator <creator>",
			short: "List the token ids minted by an account",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				return r.GetMetadataByCreator(ctx, args[0])
			},
		},
		{
			use:   "next-bounty-id",
			short: "Show the id of the next bounty",
			read: func(ctx context.Context, r *txdriver.Reader, _ []string) (any, error) {
				return r.NextBountyID(ctx)
			},
		},
		{
			use:   "admin",
			short: "Show the contract admin",
			read: func(ctx context.Context, r *txdriver.Reader, _ []string) (any, error) {
				return r.Admin(ctx)
			},
		},
		{
			use:   "owner",
			short: "Show the contract owner",
			read: func(ctx context.Context, r *txdriver.Reader, _ []string) (any, error) {
				return r.Owner(ctx)
			},
		},
		{
			use:   "balance <owner>",
			short: "Show the number of tokens owned by an account",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				return r.BalanceOf(ctx, args[0])
			},
		},
		{
			use:   "owner-of <token-id>",
			short: "Show the owner of a token",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				id, err := parseID("token id", args[0])
				if err != nil {
					return nil, err
				}

				return r.OwnerOf(ctx, id)
			},
		},
		{
			use:   "token-uri <token-id>",
			short: "Show the metadata URI of a token",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				id, err := parseID("token id", args[0])
				if err != nil {
					return nil, err
				}

				return r.TokenURI(ctx, id)
			},
		},
		{
			use:   "approved <token-id>",
			short: "Show the account approved to transfer a token",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				id, err := parseID("token id", args[0])
				if err != nil {
					return nil, err
				}

				return r.GetApproved(ctx, id)
			},
		},
		{
			use:   "approved-for-all <owner> <operator>",
			short: "Show whether an operator may transfer every token of an owner",
			args:  2,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				return r.IsApprovedForAll(ctx, args[0], args[1])
			},
		},
		{
			use:   "name",
			short: "Show the collection name",
			read: func(ctx context.Context, r *txdriver.Reader, _ []string) (any, error) {
				return r.Name(ctx)
			},
		},
		{
			use:   "symbol",
			short: "Show the collection symbol",
			read: func(ctx context.Context, r *txdriver.Reader, _ []string) (any, error) {
				return r.Symbol(ctx)
			},
		},
		{
			use:   "supports-interface <interface-id>",
			short: "Show whether the contract implements an ERC-165 interface",
			args:  1,
			read: func(ctx context.Context, r *txdriver.Reader, args []string) (any, error) {
				return r.SupportsInterface(ctx, args[0])
			},
		},
	}

	for _, rd := range reads {
		cmd.AddCommand(&cobra.Command{
			Use:   rd.use,
			Short: rd.short,
			Args:  cobra.ExactArgs(rd.args),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRead(cmd, cfg, args, rd.read)
			},
		})
	}

	return cmd
}

func runRead(cmd *cobra.Command, cfg Config, args []string, read readFunc) error {
	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	v, err := read(cmd.Context(), env.Reader, args)
	if err != nil {
		return err
	}

	if flags.MustBool(cmd.Flags().GetBool("json")) {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(b))

		return nil
	}

	switch tv := v.(type) {
	case metadataView:
		tv.print(cmd)
	case bountyView:
		tv.print(cmd)
	case []*big.Int:
		ids := make([]string, 0, len(tv))
		for _, id := range tv {
			ids = append(ids, id.String())
		}
		cmd.Println(strings.Join(ids, "\n"))
	default:
		cmd.Println(v)
	}

	return nil
}

type metadataView struct {
	SourceURL     string   `json:"sourceUrl"`
	ContentHash   string   `json:"contentHash"`
	ContentLink   string   `json:"contentLink"`
	EmbedVectorID string   `json:"embedVectorId"`
	CreatedAt     string   `json:"createdAt"`
	Tags          []string `json:"tags"`
	Creator       string   `json:"creator"`
}

func newMetadataView(m txdriver.Metadata) metadataView {
	return metadataView{
		SourceURL:     m.SourceURL,
		ContentHash:   m.ContentHash.Hex(),
		ContentLink:   m.ContentLink,
		EmbedVectorID: m.EmbedVectorID,
		CreatedAt:     m.CreatedAt.String(),
		Tags:          m.Tags,
		Creator:       m.Creator.Hex(),
	}
}

func (v metadataView) print(cmd *cobra.Command) {
	cmd.Printf("Source URL: %s\n", v.SourceURL)
	cmd.Printf("Content hash: %s\n", v.ContentHash)
	cmd.Printf("Content link: %s\n", v.ContentLink)
	if v.EmbedVectorID != "" {
		cmd.Printf("Embed vector ID: %s\n", v.EmbedVectorID)
	}
	cmd.Printf("Created at: %s\n", v.CreatedAt)
	if len(v.Tags) > 0 {
		cmd.Printf("Tags: %s\n", strings.Join(v.Tags, ", "))
	}
	cmd.Printf("Creator: %s\n", v.Creator)
}

type bountyView struct {
	Creator      string   `json:"creator"`
	Amount       string   `json:"amount"`
	Contributors []string `json:"contributors"`
	Distributed  bool     `json:"distributed"`
}

func newBountyView(b txdriver.Bounty) bountyView {
	contributors := make([]string, 0, len(b.Contributors))
	for _, c := range b.Contributors {
		contributors = append(contributors, c.Hex())
	}

	return bountyView{
		Creator:      b.Creator.Hex(),
		Amount:       chain.FormatEther(b.Amount),
		Contributors: contributors,
		Distributed:  b.Distributed,
	}
}

func (v bountyView) print(cmd *cobra.Command) {
	cmd.Printf("Creator: %s\n", v.Creator)
	cmd.Printf("Amount: %s\n", v.Amount)
	cmd.Printf("Contributors: %d\n", len(v.Contributors))
	for _, c := range v.Contributors {
		cmd.Printf("  %s\n", c)
	}
	cmd.Printf("Distributed: %t\n", v.Distributed)
}
