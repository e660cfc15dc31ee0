// Package service provides the business logic layer (use cases): accounts
// and cards, due dates, CSV imports, reward recommendations and linked
// institution sync.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var acctTracer = otel.Tracer("service/accounts")

// AccountService manages accounts, card details and imported history.
type AccountService struct {
	accounts port.AccountStore
	cards    port.CardStore
	history  port.HistoryStore
	logger   *zap.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(accounts port.AccountStore, cards port.CardStore, history port.HistoryStore, logger *zap.Logger) *AccountService {
	return &AccountService{accounts: accounts, cards: cards, history: history, logger: logger}
}

// ============================================================
// Accounts
// ============================================================

func (s *AccountService) CreateAccount(ctx context.Context, req *domain.AccountCreate) (*domain.Account, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.CreateAccount")
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !req.AccountType.Valid() {
		return nil, &domain.ErrValidation{Field: "account_type", Message: fmt.Sprintf("unknown account type '%s'", req.AccountType)}
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = domain.DefaultCurrency
	}

	acct, err := s.accounts.CreateAccount(ctx, req)
	if err != nil {
		s.logger.Error("failed to create account", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("account created",
		zap.Int64("account_id", acct.ID),
		zap.String("account_type", string(acct.AccountType)),
	)
	return acct, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.ListAccounts")
	defer span.End()

	return s.accounts.ListAccounts(ctx)
}

// ListTransactions returns imported transactions for an existing account.
func (s *AccountService) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.history.ListTransactions(ctx, accountID)
}

// ListBalanceHistory returns balance snapshots for an existing account.
func (s *AccountService) ListBalanceHistory(ctx context.Context, accountID int64) ([]domain.BalanceSnapshot, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.ListBalanceHistory")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.history.ListBalanceSnapshots(ctx, accountID)
}

// ============================================================
// Credit Cards
// ============================================================

func (s *AccountService) CreateCard(ctx context.Context, req *domain.CardCreate) (*domain.CreditCardDetail, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.CreateCard")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", req.AccountID))

	req.IssuerName = strings.TrimSpace(req.IssuerName)
	if req.IssuerName == "" {
		return nil, &domain.ErrValidation{Field: "issuer_name", Message: "required"}
	}
	if req.StatementDay == 0 {
		req.StatementDay = domain.DefaultStatementDay
	}
	if req.DueDay == 0 {
		req.DueDay = domain.DefaultDueDay
	}
	if req.StatementDay < 1 || req.StatementDay > 31 {
		return nil, &domain.ErrValidation{Field: "statement_day", Message: "must be between 1 and 31"}
	}
	if req.DueDay < 1 || req.DueDay > 31 {
		return nil, &domain.ErrValidation{Field: "due_day", Message: "must be between 1 and 31"}
	}
	if req.MinPaymentDue < 0 {
		return nil, &domain.ErrValidation{Field: "min_payment_due", Message: "must not be negative"}
	}

	acct, err := s.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if acct.AccountType != domain.AccountTypeCreditCard {
		return nil, &domain.ErrValidation{
			Field:   "account_id",
			Message: "Card detail can be added only to credit_card accounts",
		}
	}

	card, err := s.cards.CreateCard(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("card details created",
		zap.Int64("card_id", card.ID),
		zap.Int64("account_id", card.AccountID),
		zap.Int("due_day", card.DueDay),
	)
	return card, nil
}

func (s *AccountService) ListCards(ctx context.Context) ([]domain.CreditCardDetail, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.ListCards")
	defer span.End()

	return s.cards.ListCards(ctx)
}

// SetDueDateOverride pins (or with nil, clears) a card's next due date.
func (s *AccountService) SetDueDateOverride(ctx context.Context, cardID int64, override *domain.Date) (*domain.CreditCardDetail, error) {
	ctx, span := acctTracer.Start(ctx, "AccountService.SetDueDateOverride")
	defer span.End()
	span.SetAttributes(attribute.Int64("card.id", cardID))

	card, err := s.cards.SetDueDateOverride(ctx, cardID, override)
	if err != nil {
		return nil, err
	}

	if override != nil {
		s.logger.Info("due date override set", zap.Int64("card_id", cardID), zap.String("due_date", override.String()))
	} else {
		s.logger.Info("due date override cleared", zap.Int64("card_id", cardID))
	}
	return card, nil
}
