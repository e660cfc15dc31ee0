package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/service"

	"go.uber.org/zap"
)

func newLinkService(provider *mockProvider, store *memStore) *service.LinkService {
	if provider == nil {
		return service.NewLinkService(nil, store, reverseSealer{}, observability.NewMetrics(), 2, zap.NewNop())
	}
	return service.NewLinkService(provider, store, reverseSealer{}, observability.NewMetrics(), 2, zap.NewNop())
}

func TestLinkService_Disabled(t *testing.T) {
	svc := newLinkService(nil, newMemStore())
	ctx := context.Background()

	if svc.Enabled() {
		t.Fatal("expected service to be disabled")
	}

	var ue *domain.ErrUnavailable
	if _, err := svc.CreateLinkToken(ctx); !errors.As(err, &ue) {
		t.Errorf("link token: expected ErrUnavailable, got %v", err)
	}
	if _, err := svc.ExchangePublicToken(ctx, "public-token"); !errors.As(err, &ue) {
		t.Errorf("exchange: expected ErrUnavailable, got %v", err)
	}
	if _, err := svc.Sync(ctx); !errors.As(err, &ue) {
		t.Errorf("sync: expected ErrUnavailable, got %v", err)
	}
}

func TestLinkService_CreateLinkToken(t *testing.T) {
	provider := &mockProvider{linkToken: "link-sandbox-123"}
	svc := newLinkService(provider, newMemStore())

	token, err := svc.CreateLinkToken(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token != "link-sandbox-123" {
		t.Errorf("unexpected token %q", token)
	}
	if len(provider.userIDs) != 1 || provider.userIDs[0] != service.LinkClientUserID {
		t.Errorf("unexpected client user ids %v", provider.userIDs)
	}
}

func TestLinkService_ExchangePublicToken(t *testing.T) {
	store := newMemStore()
	provider := &mockProvider{
		exchange: &domain.TokenExchange{AccessToken: "access-1", ItemID: "item-1"},
		accounts: map[string]*domain.ProviderAccounts{
			"access-1": {
				InstitutionID:   "ins_1",
				InstitutionName: "First Platypus Bank",
				Accounts: []domain.ProviderAccount{
					{ProviderID: "a1", Name: "Plaid Checking", Type: "depository", CurrentBalance: ptr(110.0), Currency: "USD"},
					{ProviderID: "a2", Name: "Plaid Credit Card", Type: "credit", CurrentBalance: ptr(410.0)},
					{ProviderID: "a3", Name: "", Type: "other", CurrentBalance: nil},
				},
			},
		},
	}
	svc := newLinkService(provider, store)

	res, err := svc.ExchangePublicToken(context.Background(), " public-sandbox ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ItemID != "item-1" || res.Institution != "First Platypus Bank" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(res.Accounts))
	}

	checking, card, other := res.Accounts[0], res.Accounts[1], res.Accounts[2]
	if checking.Type != domain.AccountTypeChecking || checking.Balance != 110 {
		t.Errorf("unexpected checking account %+v", checking)
	}
	if card.Type != domain.AccountTypeCreditCard || card.Balance != -410 {
		t.Errorf("expected credit balance stored negative, got %+v", card)
	}
	if other.Type != domain.AccountTypeChecking || other.Name != "First Platypus Bank Account" || other.Balance != 0 {
		t.Errorf("unexpected fallback account %+v", other)
	}

	if len(store.items) != 1 || store.items[0].AccessTokenSealed != "sealed:access-1" {
		t.Errorf("expected sealed access token to be stored, got %+v", store.items)
	}
	acct, _ := store.GetAccount(context.Background(), other.ID)
	if acct.Currency != "USD" {
		t.Errorf("expected default currency USD, got %q", acct.Currency)
	}
}

func TestLinkService_ExchangeWithoutInstitution(t *testing.T) {
	provider := &mockProvider{
		exchange: &domain.TokenExchange{AccessToken: "access-2", ItemID: "item-2"},
		accounts: map[string]*domain.ProviderAccounts{
			"access-2": {InstitutionName: "Ignored Without ID"},
		},
	}
	svc := newLinkService(provider, newMemStore())

	res, err := svc.ExchangePublicToken(context.Background(), "pt")
	if err != nil {
		t.Fatal(err)
	}
	if res.Institution != domain.DefaultInstitutionName {
		t.Errorf("expected %q, got %q", domain.DefaultInstitutionName, res.Institution)
	}
	if res.Accounts == nil || len(res.Accounts) != 0 {
		t.Errorf("expected empty account list, got %#v", res.Accounts)
	}
}

func TestLinkService_ExchangeErrors(t *testing.T) {
	ctx := context.Background()

	svc := newLinkService(&mockProvider{}, newMemStore())
	var ve *domain.ErrValidation
	if _, err := svc.ExchangePublicToken(ctx, "   "); !errors.As(err, &ve) {
		t.Errorf("expected ErrValidation for blank token, got %v", err)
	}

	upstream := &domain.ErrValidation{Field: "INVALID_PUBLIC_TOKEN", Message: "bad token"}
	svc = newLinkService(&mockProvider{err: upstream}, newMemStore())
	if _, err := svc.ExchangePublicToken(ctx, "pt"); !errors.Is(err, upstream) {
		t.Errorf("expected provider error to pass through, got %v", err)
	}
}

func TestLinkService_Sync(t *testing.T) {
	store := newMemStore()
	provider := &mockProvider{
		exchange: &domain.TokenExchange{AccessToken: "good", ItemID: "item-good"},
		accounts: map[string]*domain.ProviderAccounts{
			"good": {
				InstitutionID: "ins_1", InstitutionName: "Good Bank",
				Accounts: []domain.ProviderAccount{
					{Name: "Checking", Type: "depository", CurrentBalance: ptr(100.0)},
					{Name: "Card", Type: "credit", CurrentBalance: ptr(50.0)},
				},
			},
			"bad": {
				InstitutionID: "ins_2", InstitutionName: "Bad Bank",
				Accounts: []domain.ProviderAccount{{Name: "Savings", Type: "depository", CurrentBalance: ptr(1.0)}},
			},
		},
	}
	svc := newLinkService(provider, store)
	ctx := context.Background()

	if _, err := svc.ExchangePublicToken(ctx, "pt-1"); err != nil {
		t.Fatal(err)
	}
	provider.exchange = &domain.TokenExchange{AccessToken: "bad", ItemID: "item-bad"}
	if _, err := svc.ExchangePublicToken(ctx, "pt-2"); err != nil {
		t.Fatal(err)
	}

	provider.accounts["good"] = &domain.ProviderAccounts{
		InstitutionID: "ins_1", InstitutionName: "Good Bank",
		Accounts: []domain.ProviderAccount{
			{Name: "Checking", Type: "depository", CurrentBalance: ptr(250.0)},
			{Name: "Card", Type: "credit", CurrentBalance: ptr(75.0)},
			{Name: "Unknown Locally", Type: "depository", CurrentBalance: ptr(9.0)},
			{Name: "Checking", Type: "depository", CurrentBalance: nil},
		},
	}
	provider.errFor = map[string]error{"bad": errors.New("ITEM_LOGIN_REQUIRED")}

	res, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.AccountsUpdated != 2 {
		t.Errorf("expected 2 accounts updated, got %d", res.AccountsUpdated)
	}
	if len(res.Errors) != 1 || res.Errors[0].ItemID != "item-bad" || res.Errors[0].Error != "ITEM_LOGIN_REQUIRED" {
		t.Errorf("unexpected sync errors %+v", res.Errors)
	}

	accounts, _ := store.ListAccounts(ctx)
	balances := map[string]float64{}
	for _, a := range accounts {
		balances[a.Name] = a.CurrentBalance
	}
	if balances["Checking"] != 250 {
		t.Errorf("expected checking 250, got %v", balances["Checking"])
	}
	if balances["Card"] != -75 {
		t.Errorf("expected card -75, got %v", balances["Card"])
	}
	if balances["Savings"] != 1 {
		t.Errorf("expected failing item untouched, got %v", balances["Savings"])
	}
}

func TestLinkService_SyncNoItems(t *testing.T) {
	svc := newLinkService(&mockProvider{}, newMemStore())
	res, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.AccountsUpdated != 0 || res.Errors == nil || len(res.Errors) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}
