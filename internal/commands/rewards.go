package commands

import (
	"errors"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"

	"github.com/spf13/cobra"
)

func newBestCardCommand(current func() *app) *cobra.Command {
	var category string
	var amount float64

	cmd := &cobra.Command{
		Use:   "best-card",
		Short: "Recommend the card with the highest return for a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidRecommendationCategory(category) {
				return fmt.Errorf("category must be at least %d characters", domain.MinCategoryLength)
			}
			if !domain.ValidRecommendationAmount(amount) {
				return fmt.Errorf("amount must be a finite number greater than 0")
			}

			rec, err := current().reco.BestCard(cmd.Context(), category, amount)
			if err != nil {
				var nf *domain.ErrNotFound
				if errors.As(err, &nf) {
					return fmt.Errorf("no reward rules found for category %q", domain.NormalizeCategory(category))
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (account %d)\n", rec.CardName, rec.AccountID)
			fmt.Fprintf(out, "expected return: %.2f\n", rec.ExpectedReturn)
			fmt.Fprintln(out, rec.Rationale)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "spending category (required)")
	_ = cmd.MarkFlagRequired("category")
	cmd.Flags().Float64Var(&amount, "amount", 100, "purchase amount")

	return cmd
}
