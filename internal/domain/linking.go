package domain

// ============================================================
// Linked institutions (account-data provider)
// ============================================================

// DefaultInstitutionName is used when the provider does not name the bank.
const DefaultInstitutionName = "Connected Bank"

// LinkedItem is a provider connection to one institution.
type LinkedItem struct {
	ID                int64  `json:"id"`
	ItemID            string `json:"item_id"`
	InstitutionID     int64  `json:"institution_id"`
	InstitutionName   string `json:"institution_name"`
	AccessTokenSealed string `json:"-"`
	IsActive          bool   `json:"is_active"`
}

// TokenExchange is the provider's answer to a public token exchange.
type TokenExchange struct {
	AccessToken string
	ItemID      string
}

// ProviderAccount is an account as reported by the provider.
// CurrentBalance is nil when the provider has no balance for it.
type ProviderAccount struct {
	ProviderID     string
	Name           string
	Type           string
	CurrentBalance *float64
	Currency       string
}

// ProviderAccounts is the account list for one item.
type ProviderAccounts struct {
	InstitutionID   string
	InstitutionName string
	Accounts        []ProviderAccount
}

// ExchangeTokenRequest is the payload for POST /plaid/exchange-token.
type ExchangeTokenRequest struct {
	PublicToken string `json:"public_token"`
}

// LinkedAccount summarizes an account created by a token exchange.
type LinkedAccount struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Type    AccountType `json:"type"`
	Balance float64     `json:"balance"`
}

// ExchangeResult is returned by POST /plaid/exchange-token.
type ExchangeResult struct {
	ItemID      string          `json:"item_id"`
	Institution string          `json:"institution"`
	Accounts    []LinkedAccount `json:"accounts"`
}

// SyncError records a linked item that could not be synced.
type SyncError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// SyncResult is returned by POST /plaid/sync.
type SyncResult struct {
	AccountsUpdated int         `json:"accounts_updated"`
	Errors          []SyncError `json:"errors"`
}
