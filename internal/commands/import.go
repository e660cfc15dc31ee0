package commands

import (
	"fmt"
	"os"

	"github.com/boddenberg/account-manager-go/internal/domain"

	"github.com/spf13/cobra"
)

func newImportCommand(current func() *app) *cobra.Command {
	var importType string
	var source string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a balances or transactions CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			job, err := current().imports.Import(cmd.Context(), content, importType, source)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %d %s: %s\n", job.ID, job.Status, job.MessageText())
			if job.Status == domain.ImportStatusFailed {
				return fmt.Errorf("import failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&importType, "type", "", "import type: balances or transactions (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&source, "source", domain.DefaultImportSource, "source name recorded on the job")

	return cmd
}
