package commands

import (
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/service"

	"github.com/spf13/cobra"
)

func newSeedCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo accounts, a card and a reward rule into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			seeded, err := service.SeedDemoData(cmd.Context(), a.accounts, a.rewards)
			if err != nil {
				return err
			}
			if !seeded {
				n, err := a.store.CountAccounts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database already has %d accounts; nothing to seed.\n", n)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Seeded demo data.")
			return nil
		},
	}
}
