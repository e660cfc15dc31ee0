package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var linkTracer = otel.Tracer("service/link")

// LinkClientUserID identifies this single-user deployment to the provider.
const LinkClientUserID = "account_manager_user"

// providerTypes maps provider account types onto ours. Anything else is checking.
var providerTypes = map[string]domain.AccountType{
	"depository": domain.AccountTypeChecking,
	"credit":     domain.AccountTypeCreditCard,
	"loan":       domain.AccountTypeLoan,
	"investment": domain.AccountTypeInvestment,
}

// LinkService connects institutions through the account-data provider and
// keeps their balances in sync.
type LinkService struct {
	provider       port.AccountDataProvider
	store          port.LinkStore
	sealer         port.TokenSealer
	metrics        *observability.Metrics
	maxConcurrency int
	logger         *zap.Logger
}

// NewLinkService creates a new link service. A nil provider disables linking;
// every operation then returns *domain.ErrUnavailable.
func NewLinkService(provider port.AccountDataProvider, store port.LinkStore, sealer port.TokenSealer, metrics *observability.Metrics, maxConcurrency int, logger *zap.Logger) *LinkService {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &LinkService{
		provider:       provider,
		store:          store,
		sealer:         sealer,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// Enabled reports whether a provider is configured.
func (s *LinkService) Enabled() bool {
	return s.provider != nil
}

func (s *LinkService) unavailable() error {
	return &domain.ErrUnavailable{
		Feature: "plaid",
		Reason:  "Plaid is not configured. Set PLAID_CLIENT_ID and PLAID_SECRET in .env",
	}
}

// CreateLinkToken creates a token for initializing the provider's Link UI.
func (s *LinkService) CreateLinkToken(ctx context.Context) (string, error) {
	ctx, span := linkTracer.Start(ctx, "LinkService.CreateLinkToken")
	defer span.End()

	if !s.Enabled() {
		return "", s.unavailable()
	}
	token, err := s.provider.CreateLinkToken(ctx, LinkClientUserID)
	if err != nil {
		s.metrics.IncrExternalError("plaid")
		return "", err
	}
	return token, nil
}

// ExchangePublicToken completes a Link flow: it stores the item with its
// sealed access token and creates one account per provider account.
func (s *LinkService) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.ExchangeResult, error) {
	ctx, span := linkTracer.Start(ctx, "LinkService.ExchangePublicToken")
	defer span.End()

	if !s.Enabled() {
		return nil, s.unavailable()
	}
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, &domain.ErrValidation{Field: "public_token", Message: "required"}
	}

	ex, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		s.metrics.IncrExternalError("plaid")
		return nil, err
	}
	remote, err := s.provider.GetAccounts(ctx, ex.AccessToken)
	if err != nil {
		s.metrics.IncrExternalError("plaid")
		return nil, err
	}

	institution := domain.DefaultInstitutionName
	if remote.InstitutionID != "" && remote.InstitutionName != "" {
		institution = remote.InstitutionName
	}

	sealed, err := s.sealer.Seal(ex.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}

	accounts := make([]domain.Account, 0, len(remote.Accounts))
	for _, pa := range remote.Accounts {
		typ, ok := providerTypes[pa.Type]
		if !ok {
			typ = domain.AccountTypeChecking
		}
		var balance float64
		if pa.CurrentBalance != nil {
			balance = signedBalance(typ, *pa.CurrentBalance)
		}
		name := pa.Name
		if name == "" {
			name = institution + " Account"
		}
		currency := pa.Currency
		if currency == "" {
			currency = domain.DefaultCurrency
		}
		accounts = append(accounts, domain.Account{
			Name:           name,
			AccountType:    typ,
			Currency:       currency,
			CurrentBalance: balance,
		})
	}

	item := &domain.LinkedItem{
		ItemID:            ex.ItemID,
		InstitutionName:   institution,
		AccessTokenSealed: sealed,
	}
	created, err := s.store.SaveLinkedItem(ctx, item, accounts)
	if err != nil {
		return nil, err
	}

	result := &domain.ExchangeResult{
		ItemID:      ex.ItemID,
		Institution: institution,
		Accounts:    make([]domain.LinkedAccount, 0, len(created)),
	}
	for _, a := range created {
		result.Accounts = append(result.Accounts, domain.LinkedAccount{
			ID: a.ID, Name: a.Name, Type: a.AccountType, Balance: a.CurrentBalance,
		})
	}

	span.SetAttributes(
		attribute.String("link.item_id", ex.ItemID),
		attribute.Int("link.accounts", len(created)),
	)
	s.logger.Info("institution linked",
		zap.String("item_id", ex.ItemID),
		zap.String("institution", institution),
		zap.Int("accounts", len(created)),
	)
	return result, nil
}

// Sync refreshes balances for every active item. Items are synced
// concurrently; a failing item is reported in the result and never stops
// the others.
func (s *LinkService) Sync(ctx context.Context) (*domain.SyncResult, error) {
	ctx, span := linkTracer.Start(ctx, "LinkService.Sync")
	defer span.End()

	if !s.Enabled() {
		return nil, s.unavailable()
	}

	items, err := s.store.ListActiveLinkedItems(ctx)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		updated int
		err     error
	}
	outcomes := make([]outcome, len(items))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrency)
	for i, item := range items {
		g.Go(func() error {
			n, err := s.syncItem(ctx, item)
			mu.Lock()
			outcomes[i] = outcome{updated: n, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.SyncResult{Errors: []domain.SyncError{}}
	for i, o := range outcomes {
		result.AccountsUpdated += o.updated
		if o.err != nil {
			result.Errors = append(result.Errors, domain.SyncError{ItemID: items[i].ItemID, Error: o.err.Error()})
			s.logger.Warn("linked item sync failed", zap.String("item_id", items[i].ItemID), zap.Error(o.err))
		}
	}
	s.metrics.AddSyncedAccounts(result.AccountsUpdated)

	span.SetAttributes(
		attribute.Int("sync.items", len(items)),
		attribute.Int("sync.updated", result.AccountsUpdated),
		attribute.Int("sync.errors", len(result.Errors)),
	)
	s.logger.Info("linked items synced",
		zap.Int("items", len(items)),
		zap.Int("accounts_updated", result.AccountsUpdated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// syncItem returns how many balances it updated, including those done
// before a failure.
func (s *LinkService) syncItem(ctx context.Context, item domain.LinkedItem) (int, error) {
	token, err := s.sealer.Open(item.AccessTokenSealed)
	if err != nil {
		return 0, err
	}
	remote, err := s.provider.GetAccounts(ctx, token)
	if err != nil {
		s.metrics.IncrExternalError("plaid")
		return 0, err
	}

	updated := 0
	for _, pa := range remote.Accounts {
		ours, err := s.store.FindInstitutionAccount(ctx, item.InstitutionID, pa.Name)
		if err != nil {
			return updated, err
		}
		if ours == nil || pa.CurrentBalance == nil {
			continue
		}
		if err := s.store.UpdateAccountBalance(ctx, ours.ID, signedBalance(ours.AccountType, *pa.CurrentBalance)); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// signedBalance stores credit card debt as a negative balance.
func signedBalance(typ domain.AccountType, balance float64) float64 {
	if typ == domain.AccountTypeCreditCard && balance > 0 {
		return -balance
	}
	return balance
}
