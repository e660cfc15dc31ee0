package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDueDatesCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due-dates",
		Short: "List upcoming credit card payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := current().dueDates.ListUpcoming(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No credit cards on file.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CARD\tDUE\tDAYS\tMIN PAYMENT")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", it.CardName, it.DueDate, it.DaysRemaining, it.MinPaymentDue)
			}
			return tw.Flush()
		},
	}
}
