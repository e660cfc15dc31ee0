package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// AccountType tags what kind of balance an account holds.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeRetirement AccountType = "retirement"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeLoan       AccountType = "loan"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeInvestment,
		AccountTypeRetirement, AccountTypeCreditCard, AccountTypeLoan:
		return true
	}
	return false
}

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "USD"

// Account is a tracked financial account. Credit card balances are
// conventionally non-positive.
type Account struct {
	ID             int64       `json:"id"`
	InstitutionID  *int64      `json:"institution_id,omitempty"`
	Name           string      `json:"name"`
	AccountType    AccountType `json:"account_type"`
	Currency       string      `json:"currency"`
	CurrentBalance float64     `json:"current_balance"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"-"`
}

// AccountCreate is the payload for POST /accounts.
type AccountCreate struct {
	Name           string      `json:"name"`
	AccountType    AccountType `json:"account_type"`
	Currency       string      `json:"currency,omitempty"`
	CurrentBalance float64     `json:"current_balance"`
	InstitutionID  *int64      `json:"institution_id,omitempty"`
}

// Institution is a bank or brokerage that owns linked accounts.
type Institution struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	InstitutionType string `json:"institution_type"`
}

// ============================================================
// History
// ============================================================

// Transaction is a single imported ledger line.
type Transaction struct {
	ID              int64   `json:"id"`
	AccountID       int64   `json:"account_id"`
	TransactionDate Date    `json:"transaction_date"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
	Category        *string `json:"category,omitempty"`
	Merchant        *string `json:"merchant,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// BalanceSnapshot records an account balance as of a date.
type BalanceSnapshot struct {
	ID           int64   `json:"id"`
	AccountID    int64   `json:"account_id"`
	SnapshotDate Date    `json:"snapshot_date"`
	Balance      float64 `json:"balance"`
}
