package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-manager-go/internal/domain"
)

// SeedDemoData loads a small demo portfolio: three accounts, one card and a
// travel rule. It does nothing and returns false when any account exists.
func SeedDemoData(ctx context.Context, accounts *AccountService, rewards *RewardService) (bool, error) {
	existing, err := accounts.ListAccounts(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	var created []*domain.Account
	for _, req := range []domain.AccountCreate{
		{Name: "Primary Checking", AccountType: domain.AccountTypeChecking, Currency: "USD", CurrentBalance: 4200},
		{Name: "Brokerage Portfolio", AccountType: domain.AccountTypeInvestment, Currency: "USD", CurrentBalance: 27500},
		{Name: "Travel Rewards Card", AccountType: domain.AccountTypeCreditCard, Currency: "USD", CurrentBalance: -1250},
	} {
		acct, err := accounts.CreateAccount(ctx, &req)
		if err != nil {
			return false, fmt.Errorf("seed account %q: %w", req.Name, err)
		}
		created = append(created, acct)
	}
	card := created[2]

	apr := 22.99
	if _, err := accounts.CreateCard(ctx, &domain.CardCreate{
		AccountID:     card.ID,
		IssuerName:    "Chase",
		APR:           &apr,
		StatementDay:  1,
		DueDay:        20,
		MinPaymentDue: 45,
	}); err != nil {
		return false, fmt.Errorf("seed card: %w", err)
	}

	multiplier := 3.0
	if _, err := rewards.CreateRule(ctx, &domain.RewardRuleCreate{
		AccountID:     card.ID,
		Category:      "travel",
		Multiplier:    &multiplier,
		PointCurrency: "points",
	}); err != nil {
		return false, fmt.Errorf("seed reward rule: %w", err)
	}
	return true, nil
}
