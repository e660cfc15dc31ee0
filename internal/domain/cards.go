package domain

// ============================================================
// Credit Cards
// ============================================================

const (
	DefaultStatementDay = 1
	DefaultDueDay       = 20
)

// CreditCardDetail holds billing-cycle data for a credit_card account.
// There is at most one per account.
type CreditCardDetail struct {
	ID              int64    `json:"id"`
	AccountID       int64    `json:"account_id"`
	IssuerName      string   `json:"issuer_name"`
	APR             *float64 `json:"apr"`
	StatementDay    int      `json:"statement_day"`
	DueDay          int      `json:"due_day"`
	DueDateOverride *Date    `json:"due_date_override,omitempty"`
	MinPaymentDue   float64  `json:"min_payment_due"`
}

// CardCreate is the payload for POST /cards. Zero statement and due days
// fall back to the defaults.
type CardCreate struct {
	AccountID       int64    `json:"account_id"`
	IssuerName      string   `json:"issuer_name"`
	APR             *float64 `json:"apr,omitempty"`
	StatementDay    int      `json:"statement_day,omitempty"`
	DueDay          int      `json:"due_day,omitempty"`
	DueDateOverride *Date    `json:"due_date_override,omitempty"`
	MinPaymentDue   float64  `json:"min_payment_due"`
}

// DueDateOverrideRequest sets (or, when null, clears) a manual due date.
type DueDateOverrideRequest struct {
	DueDateOverride *Date `json:"due_date_override"`
}
