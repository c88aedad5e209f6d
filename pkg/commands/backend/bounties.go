package backend

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagasynth/sagasynth/backend"
	"github.com/sagasynth/sagasynth/pkg/commands/flags"
)

// newMarketplaceCmd creates the "marketplace" subcommand.
func newMarketplaceCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketplace",
		Short: "List the minted datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			items, err := client.ListMetadata(cmd.Context())
			if err != nil {
				return err
			}

			if flags.MustBool(cmd.Flags().GetBool("json")) {
				return printJSON(cmd, items)
			}

			if len(items) == 0 {
				cmd.Println("No datasets minted yet")
				return nil
			}

			table := newTable(cmd, "Token", "Name", "Owner", "Tags", "Content")
			for _, it := range items {
				table.Append([]string{
					strconv.FormatInt(it.TokenID, 10),
					truncate(it.Name, 40),
					it.Owner,
					strings.Join(it.Tags, ", "),
					it.ContentLink,
				})
			}
			table.Render()

			return nil
		},
	}

	flags.JSON(cmd)

	return cmd
}

// newBountiesCmd creates the "bounties" subcommand.
func newBountiesCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bounties",
		Short: "List the bounties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			list, err := client.ListBounties(cmd.Context())
			if err != nil {
				return err
			}

			if flags.MustBool(cmd.Flags().GetBool("json")) {
				return printJSON(cmd, list)
			}

			if len(list.Bounties) > 0 {
				table := newTable(cmd, "ID", "Amount", "Creator", "Contributors", "Distributed")
				for _, b := range list.Bounties {
					table.Append([]string{
						strconv.FormatInt(b.ID, 10),
						b.Amount,
						b.Creator,
						strconv.Itoa(len(b.Contributors)),
						strconv.FormatBool(b.Distributed),
					})
				}
				table.Render()
			}

			cmd.Printf("Active: %d, distributed: %d, total value: %s\n",
				list.Summary.Active, list.Summary.Distributed, list.Summary.TotalValue)

			return nil
		},
	}

	flags.JSON(cmd)

	return cmd
}

// newBountyCmd creates the "bounty" command group. Its writes are sent by the backend's own
// account, not the connected wallet.
func newBountyCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bounty",
		Short: "Manage bounties through the backend",
	}

	cmd.AddCommand(newBountyCreateCmd(cfg))
	cmd.AddCommand(newBountyAddContributorCmd(cfg))
	cmd.AddCommand(newBountyDistributeCmd(cfg))

	return cmd
}

func newBountyCreateCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bounty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			res, err := client.CreateBounty(cmd.Context(), backend.CreateBountyRequest{
				Title:       flags.MustString(cmd.Flags().GetString("title")),
				Description: flags.MustString(cmd.Flags().GetString("description")),
				Amount:      flags.MustString(cmd.Flags().GetString("amount")),
				Tags:        flags.MustStringSlice(cmd.Flags().GetStringSlice("tags")),
			})
			if err != nil {
				return err
			}

			cmd.Printf("Created bounty %d\n", res.Bounty.ID)
			printTxHash(cmd, res)

			return nil
		},
	}

	cmd.Flags().String("title", "", "Bounty title (required)")
	cmd.Flags().String("description", "", "Bounty description")
	cmd.Flags().StringSlice("tags", nil, "Comma separated tags")
	flags.Amount(cmd, true)
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newBountyAddContributorCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add-contributor <bounty-id> <contributor>",
		Short: "Add a contributor to a bounty",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			res, err := client.AddContributor(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}

			cmd.Printf("Bounty %d has %d contributors\n", res.Bounty.ID, res.Bounty.ContributorCount)
			printTxHash(cmd, res)

			return nil
		},
	}
}

func newBountyDistributeCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "distribute <bounty-id>",
		Short: "Split a bounty between its contributors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			client, err := loadClient(cmd, cfg)
			if err != nil {
				return err
			}

			res, err := client.DistributeBounty(cmd.Context(), id)
			if err != nil {
				return err
			}

			cmd.Printf("Distributed bounty %d\n", res.Bounty.ID)
			printTxHash(cmd, res)

			return nil
		},
	}
}

func printTxHash(cmd *cobra.Command, res *backend.BountyResult) {
	if res.Transaction.Hash != "" {
		cmd.Printf("Transaction: %s\n", res.Transaction.Hash)
	}
}
