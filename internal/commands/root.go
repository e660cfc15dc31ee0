// Package commands implements amctl, the command-line companion to the
// account manager server. Commands work directly on the SQLite database.
package commands

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/config"
	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/cache"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/infra/resilience"
	"github.com/boddenberg/account-manager-go/internal/infra/sqlite"
	"github.com/boddenberg/account-manager-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the services a command runs against.
type app struct {
	store    *sqlite.Store
	accounts *service.AccountService
	dueDates *service.DueDateService
	imports  *service.ImportService
	rewards  *service.RewardService
	reco     *service.RecommendationService
}

func openApp(ctx context.Context, dbPath string, logger *zap.Logger) (*app, error) {
	store, err := sqlite.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}
	cfg := config.Load()
	metrics := observability.NewMetrics()
	recoCache := cache.New[*domain.Recommendation](cfg.RecommendationCacheTTL)

	return &app{
		store:    store,
		accounts: service.NewAccountService(store, store, store, logger),
		dueDates: service.NewDueDateService(store, store, nil, logger),
		imports:  service.NewImportService(store, resilience.NewBulkhead(1), metrics, logger),
		rewards:  service.NewRewardService(store, store, recoCache, logger),
		reco:     service.NewRecommendationService(store, recoCache, metrics, logger),
	}, nil
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var (
		dbPath   string
		logLevel string
		a        *app
	)

	rootCmd := &cobra.Command{
		Use:   "amctl",
		Short: "Manage accounts, imports and card rewards from the command line",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.NewLogger(logLevel)
			opened, err := openApp(cmd.Context(), dbPath, logger)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			a = opened
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a == nil {
				return nil
			}
			return a.store.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.Load().DatabasePath, "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	current := func() *app { return a }
	rootCmd.AddCommand(
		newImportCommand(current),
		newBestCardCommand(current),
		newDueDatesCommand(current),
		newSeedCommand(current),
	)

	return rootCmd
}
