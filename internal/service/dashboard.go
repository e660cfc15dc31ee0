package service

import (
	"context"
	"math"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var dashTracer = otel.Tracer("service/dashboard")

// DashboardService aggregates balances for the overview screen.
type DashboardService struct {
	accounts port.AccountStore
	cards    port.CardStore
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(accounts port.AccountStore, cards port.CardStore) *DashboardService {
	return &DashboardService{accounts: accounts, cards: cards}
}

// Summary totals cash, investments and card debt across all accounts.
func (s *DashboardService) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.Summary")
	defer span.End()

	var (
		accounts []domain.Account
		cards    []domain.CreditCardDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.accounts.ListAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = s.cards.ListCards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cash, investments, debt float64
	for _, a := range accounts {
		switch a.AccountType {
		case domain.AccountTypeChecking, domain.AccountTypeSavings:
			cash += a.CurrentBalance
		case domain.AccountTypeInvestment, domain.AccountTypeRetirement:
			investments += a.CurrentBalance
		case domain.AccountTypeCreditCard:
			debt += math.Abs(a.CurrentBalance)
		}
	}

	return &domain.DashboardSummary{
		TotalCash:        round2(cash),
		TotalInvestments: round2(investments),
		TotalCardDebt:    round2(debt),
		UpcomingDueCount: len(cards),
	}, nil
}

// round2 rounds half away from zero to cents.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
