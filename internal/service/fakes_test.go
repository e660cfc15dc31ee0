package service_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/port"
)

// --- In-memory store ---

type memState struct {
	nextID    int64
	accounts  []domain.Account
	cards     []domain.CreditCardDetail
	rules     []domain.RewardRule
	offers    []domain.Offer
	jobs      []domain.ImportJob
	snapshots []domain.BalanceSnapshot
	txns      []domain.Transaction
	items     []domain.LinkedItem
}

func (s memState) clone() memState {
	s.accounts = slices.Clone(s.accounts)
	s.cards = slices.Clone(s.cards)
	s.rules = slices.Clone(s.rules)
	s.offers = slices.Clone(s.offers)
	s.jobs = slices.Clone(s.jobs)
	s.snapshots = slices.Clone(s.snapshots)
	s.txns = slices.Clone(s.txns)
	s.items = slices.Clone(s.items)
	return s
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memState) account(id int64) *domain.Account {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i]
		}
	}
	return nil
}

type memStore struct {
	mu sync.Mutex
	memState

	offerCalls  int
	listCardErr error
	recordErr   error
}

func newMemStore() *memStore { return &memStore{} }

var (
	_ port.AccountStore = (*memStore)(nil)
	_ port.CardStore    = (*memStore)(nil)
	_ port.HistoryStore = (*memStore)(nil)
	_ port.ImportStore  = (*memStore)(nil)
	_ port.RewardStore  = (*memStore)(nil)
	_ port.LinkStore    = (*memStore)(nil)
)

func (m *memStore) addAccount(name string, typ domain.AccountType, balance float64) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := domain.Account{ID: m.id(), Name: name, AccountType: typ, Currency: "USD", CurrentBalance: balance, IsActive: true}
	m.accounts = append(m.accounts, a)
	return a
}

func (m *memStore) CreateAccount(_ context.Context, req *domain.AccountCreate) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := domain.Account{
		ID: m.id(), InstitutionID: req.InstitutionID, Name: req.Name, AccountType: req.AccountType,
		Currency: req.Currency, CurrentBalance: req.CurrentBalance, IsActive: true, CreatedAt: time.Now(),
	}
	m.accounts = append(m.accounts, a)
	return &a, nil
}

func (m *memStore) ListAccounts(_ context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.accounts), nil
}

func (m *memStore) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.account(id); a != nil {
		out := *a
		return &out, nil
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(id)}
}

func (m *memStore) CreateCard(_ context.Context, req *domain.CardCreate) (*domain.CreditCardDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.AccountID == req.AccountID {
			return nil, &domain.ErrConflict{Message: "card already exists for account"}
		}
	}
	c := domain.CreditCardDetail{
		ID: m.id(), AccountID: req.AccountID, IssuerName: req.IssuerName, APR: req.APR,
		StatementDay: req.StatementDay, DueDay: req.DueDay, DueDateOverride: req.DueDateOverride,
		MinPaymentDue: req.MinPaymentDue,
	}
	m.cards = append(m.cards, c)
	return &c, nil
}

func (m *memStore) ListCards(_ context.Context) ([]domain.CreditCardDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listCardErr != nil {
		return nil, m.listCardErr
	}
	return slices.Clone(m.cards), nil
}

func (m *memStore) GetCard(_ context.Context, id int64) (*domain.CreditCardDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "card", ID: fmt.Sprint(id)}
}

func (m *memStore) SetDueDateOverride(_ context.Context, id int64, override *domain.Date) (*domain.CreditCardDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cards {
		if m.cards[i].ID == id {
			m.cards[i].DueDateOverride = override
			out := m.cards[i]
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "card", ID: fmt.Sprint(id)}
}

func (m *memStore) ListBalanceSnapshots(_ context.Context, accountID int64) ([]domain.BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BalanceSnapshot
	for _, s := range m.snapshots {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListTransactions(_ context.Context, accountID int64) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, t := range m.txns {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Imports ---

// WithinTx works on a copy of the state and swaps it in only on success.
func (m *memStore) WithinTx(_ context.Context, fn func(tx port.ImportTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{state: m.memState.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.memState = tx.state
	return nil
}

func (m *memStore) RecordImportJob(_ context.Context, job *domain.ImportJob) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	out := *job
	out.ID = m.id()
	m.jobs = append(m.jobs, out)
	return &out, nil
}

func (m *memStore) ListImportJobs(_ context.Context, limit int) ([]domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.jobs)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memTx struct {
	state memState
}

func (t *memTx) CreateImportJob(_ context.Context, job *domain.ImportJob) (int64, error) {
	j := *job
	j.ID = t.state.id()
	t.state.jobs = append(t.state.jobs, j)
	return j.ID, nil
}

func (t *memTx) UpdateImportJob(_ context.Context, id int64, status domain.ImportStatus, message string) error {
	for i := range t.state.jobs {
		if t.state.jobs[i].ID == id {
			t.state.jobs[i].Status = status
			t.state.jobs[i].Message = &message
			return nil
		}
	}
	return errors.New("job not found")
}

func (t *memTx) AccountExists(_ context.Context, id int64) (bool, error) {
	return t.state.account(id) != nil, nil
}

func (t *memTx) InsertBalanceSnapshot(_ context.Context, snap *domain.BalanceSnapshot) error {
	s := *snap
	s.ID = t.state.id()
	t.state.snapshots = append(t.state.snapshots, s)
	return nil
}

func (t *memTx) SetAccountBalance(_ context.Context, id int64, balance float64) error {
	if a := t.state.account(id); a != nil {
		a.CurrentBalance = balance
	}
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn *domain.Transaction) error {
	x := *txn
	x.ID = t.state.id()
	t.state.txns = append(t.state.txns, x)
	return nil
}

// --- Rewards ---

func (m *memStore) CreateRewardRule(_ context.Context, rule *domain.RewardRule) (*domain.RewardRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *rule
	r.ID = m.id()
	m.rules = append(m.rules, r)
	return &r, nil
}

func (m *memStore) CreateOffer(_ context.Context, offer *domain.Offer) (*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := *offer
	o.ID = m.id()
	m.offers = append(m.offers, o)
	return &o, nil
}

func (m *memStore) ListRuleCandidates(_ context.Context, category string) ([]domain.RuleCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RuleCandidate
	for _, r := range m.rules {
		if r.Category != category {
			continue
		}
		if a := m.account(r.AccountID); a != nil {
			out = append(out, domain.RuleCandidate{Rule: r, Account: *a})
		}
	}
	return out, nil
}

func (m *memStore) ListOffersByAccount(_ context.Context, accountID int64) ([]domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerCalls++
	var out []domain.Offer
	for _, o := range m.offers {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- Linked items ---

func (m *memStore) SaveLinkedItem(_ context.Context, item *domain.LinkedItem, accounts []domain.Account) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ItemID == item.ItemID {
			return nil, &domain.ErrConflict{Message: "item already linked"}
		}
	}
	instID := int64(len(m.items) + 100)
	it := *item
	it.ID = m.id()
	it.InstitutionID = instID
	it.IsActive = true
	m.items = append(m.items, it)

	out := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		a.ID = m.id()
		a.InstitutionID = &instID
		a.IsActive = true
		m.accounts = append(m.accounts, a)
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) ListActiveLinkedItems(_ context.Context) ([]domain.LinkedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LinkedItem
	for _, it := range m.items {
		if it.IsActive {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) FindInstitutionAccount(_ context.Context, institutionID int64, name string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.InstitutionID != nil && *a.InstitutionID == institutionID && a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateAccountBalance(_ context.Context, id int64, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.account(id); a != nil {
		a.CurrentBalance = balance
	}
	return nil
}

// --- Provider & sealer ---

type mockProvider struct {
	mu        sync.Mutex
	linkToken string
	exchange  *domain.TokenExchange
	accounts  map[string]*domain.ProviderAccounts // by access token
	err       error
	errFor    map[string]error // by access token
	userIDs   []string
}

func (p *mockProvider) CreateLinkToken(_ context.Context, clientUserID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userIDs = append(p.userIDs, clientUserID)
	return p.linkToken, p.err
}

func (p *mockProvider) ExchangePublicToken(_ context.Context, _ string) (*domain.TokenExchange, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.exchange, nil
}

func (p *mockProvider) GetAccounts(_ context.Context, accessToken string) (*domain.ProviderAccounts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor[accessToken]; err != nil {
		return nil, err
	}
	if a, ok := p.accounts[accessToken]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("unknown access token %q", accessToken)
}

// reverseSealer is a visible, reversible stand-in for encryption.
type reverseSealer struct{}

func (reverseSealer) Seal(s string) (string, error) { return "sealed:" + s, nil }

func (reverseSealer) Open(s string) (string, error) {
	if len(s) < 7 || s[:7] != "sealed:" {
		return "", errors.New("not sealed")
	}
	return s[7:], nil
}

func ptr[T any](v T) *T { return &v }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
