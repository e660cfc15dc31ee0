package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/service"

	"go.uber.org/zap"
)

func newAccountService(store *memStore) *service.AccountService {
	return service.NewAccountService(store, store, store, zap.NewNop())
}

func TestCreateAccount_Defaults(t *testing.T) {
	svc := newAccountService(newMemStore())

	acct, err := svc.CreateAccount(context.Background(), &domain.AccountCreate{
		Name:           "  Everyday  ",
		AccountType:    domain.AccountTypeChecking,
		CurrentBalance: 12.5,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acct.Name != "Everyday" {
		t.Errorf("expected trimmed name, got %q", acct.Name)
	}
	if acct.Currency != "USD" {
		t.Errorf("expected USD, got %q", acct.Currency)
	}
	if !acct.IsActive {
		t.Error("expected account to be active")
	}
}

func TestCreateAccount_UppercasesCurrency(t *testing.T) {
	svc := newAccountService(newMemStore())
	acct, err := svc.CreateAccount(context.Background(), &domain.AccountCreate{
		Name: "Euro", AccountType: domain.AccountTypeSavings, Currency: "eur",
	})
	if err != nil {
		t.Fatal(err)
	}
	if acct.Currency != "EUR" {
		t.Errorf("expected EUR, got %q", acct.Currency)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	svc := newAccountService(newMemStore())

	tests := []struct {
		name  string
		req   domain.AccountCreate
		field string
	}{
		{"blank name", domain.AccountCreate{Name: " ", AccountType: domain.AccountTypeChecking}, "name"},
		{"unknown type", domain.AccountCreate{Name: "X", AccountType: "crypto"}, "account_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(context.Background(), &tt.req)
			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestCreateCard(t *testing.T) {
	store := newMemStore()
	card := store.addAccount("Travel", domain.AccountTypeCreditCard, -10)
	svc := newAccountService(store)

	got, err := svc.CreateCard(context.Background(), &domain.CardCreate{AccountID: card.ID, IssuerName: "Chase"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.StatementDay != 1 || got.DueDay != 20 {
		t.Errorf("expected default days 1/20, got %d/%d", got.StatementDay, got.DueDay)
	}
}

func TestCreateCard_NonCreditAccount(t *testing.T) {
	store := newMemStore()
	checking := store.addAccount("Checking", domain.AccountTypeChecking, 10)
	svc := newAccountService(store)

	_, err := svc.CreateCard(context.Background(), &domain.CardCreate{AccountID: checking.ID, IssuerName: "Chase"})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if ve.Message != "Card detail can be added only to credit_card accounts" {
		t.Errorf("unexpected message %q", ve.Message)
	}
}

func TestCreateCard_Errors(t *testing.T) {
	store := newMemStore()
	card := store.addAccount("Travel", domain.AccountTypeCreditCard, 0)
	svc := newAccountService(store)
	ctx := context.Background()

	t.Run("missing account", func(t *testing.T) {
		_, err := svc.CreateCard(ctx, &domain.CardCreate{AccountID: 404, IssuerName: "Chase"})
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("due day out of range", func(t *testing.T) {
		_, err := svc.CreateCard(ctx, &domain.CardCreate{AccountID: card.ID, IssuerName: "Chase", DueDay: 32})
		var ve *domain.ErrValidation
		if !errors.As(err, &ve) || ve.Field != "due_day" {
			t.Fatalf("expected due_day validation error, got %v", err)
		}
	})

	t.Run("negative minimum payment", func(t *testing.T) {
		_, err := svc.CreateCard(ctx, &domain.CardCreate{AccountID: card.ID, IssuerName: "Chase", MinPaymentDue: -1})
		var ve *domain.ErrValidation
		if !errors.As(err, &ve) || ve.Field != "min_payment_due" {
			t.Fatalf("expected min_payment_due validation error, got %v", err)
		}
	})

	t.Run("second card conflicts", func(t *testing.T) {
		if _, err := svc.CreateCard(ctx, &domain.CardCreate{AccountID: card.ID, IssuerName: "Chase"}); err != nil {
			t.Fatal(err)
		}
		_, err := svc.CreateCard(ctx, &domain.CardCreate{AccountID: card.ID, IssuerName: "Chase"})
		var ce *domain.ErrConflict
		if !errors.As(err, &ce) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestSetDueDateOverride_SetAndClear(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("Travel", domain.AccountTypeCreditCard, 0)
	svc := newAccountService(store)
	ctx := context.Background()

	card, err := svc.CreateCard(ctx, &domain.CardCreate{AccountID: acct.ID, IssuerName: "Chase"})
	if err != nil {
		t.Fatal(err)
	}

	d := domain.MustDate("2024-05-01")
	got, err := svc.SetDueDateOverride(ctx, card.ID, &d)
	if err != nil {
		t.Fatal(err)
	}
	if got.DueDateOverride == nil || got.DueDateOverride.String() != "2024-05-01" {
		t.Fatalf("expected override 2024-05-01, got %v", got.DueDateOverride)
	}

	got, err = svc.SetDueDateOverride(ctx, card.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.DueDateOverride != nil {
		t.Errorf("expected override cleared, got %v", got.DueDateOverride)
	}

	_, err = svc.SetDueDateOverride(ctx, 999, nil)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListHistory_UnknownAccount(t *testing.T) {
	svc := newAccountService(newMemStore())
	ctx := context.Background()

	var nf *domain.ErrNotFound
	if _, err := svc.ListTransactions(ctx, 7); !errors.As(err, &nf) {
		t.Errorf("transactions: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ListBalanceHistory(ctx, 7); !errors.As(err, &nf) {
		t.Errorf("balance history: expected ErrNotFound, got %v", err)
	}
}
