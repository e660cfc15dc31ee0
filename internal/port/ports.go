// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
)

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Flush()
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, req *domain.AccountCreate) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	// GetAccount returns *domain.ErrNotFound when the id is unknown.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
}

// CardStore persists credit card billing details.
type CardStore interface {
	// CreateCard returns *domain.ErrConflict when the account already has a card.
	CreateCard(ctx context.Context, req *domain.CardCreate) (*domain.CreditCardDetail, error)
	ListCards(ctx context.Context) ([]domain.CreditCardDetail, error)
	GetCard(ctx context.Context, id int64) (*domain.CreditCardDetail, error)
	SetDueDateOverride(ctx context.Context, id int64, override *domain.Date) (*domain.CreditCardDetail, error)
}

// ImportStore runs all-or-nothing CSV batches and keeps the job audit trail.
type ImportStore interface {
	// WithinTx runs fn in one transaction. A non-nil error from fn rolls
	// everything back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx ImportTx) error) error
	// RecordImportJob writes a job outside any batch transaction.
	RecordImportJob(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error)
	ListImportJobs(ctx context.Context, limit int) ([]domain.ImportJob, error)
}

// ImportTx is the write surface available inside an import transaction.
type ImportTx interface {
	CreateImportJob(ctx context.Context, job *domain.ImportJob) (int64, error)
	UpdateImportJob(ctx context.Context, id int64, status domain.ImportStatus, message string) error
	AccountExists(ctx context.Context, id int64) (bool, error)
	InsertBalanceSnapshot(ctx context.Context, snap *domain.BalanceSnapshot) error
	SetAccountBalance(ctx context.Context, id int64, balance float64) error
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
}

// HistoryStore reads imported history back.
type HistoryStore interface {
	ListBalanceSnapshots(ctx context.Context, accountID int64) ([]domain.BalanceSnapshot, error)
	ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error)
}

// RewardStore persists reward rules and offers.
type RewardStore interface {
	CreateRewardRule(ctx context.Context, rule *domain.RewardRule) (*domain.RewardRule, error)
	CreateOffer(ctx context.Context, offer *domain.Offer) (*domain.Offer, error)
	// ListRuleCandidates returns every rule for the normalized category joined
	// with its account, ordered by rule id.
	ListRuleCandidates(ctx context.Context, category string) ([]domain.RuleCandidate, error)
	ListOffersByAccount(ctx context.Context, accountID int64) ([]domain.Offer, error)
}

// LinkStore persists provider connections and the accounts they created.
type LinkStore interface {
	// SaveLinkedItem upserts the institution, stores the item and creates the
	// accounts in one transaction. Account ids are filled in on return.
	SaveLinkedItem(ctx context.Context, item *domain.LinkedItem, accounts []domain.Account) ([]domain.Account, error)
	ListActiveLinkedItems(ctx context.Context) ([]domain.LinkedItem, error)
	// FindInstitutionAccount returns nil, nil when no account matches.
	FindInstitutionAccount(ctx context.Context, institutionID int64, name string) (*domain.Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance float64) error
}

// AccountDataProvider is a Plaid-compatible account aggregation API.
type AccountDataProvider interface {
	CreateLinkToken(ctx context.Context, clientUserID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchange, error)
	GetAccounts(ctx context.Context, accessToken string) (*domain.ProviderAccounts, error)
}

// TokenSealer encrypts provider access tokens at rest.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
