package domain

// ============================================================
// Dashboard
// ============================================================

// DashboardSummary aggregates balances across all accounts.
type DashboardSummary struct {
	TotalCash        float64 `json:"total_cash"`
	TotalInvestments float64 `json:"total_investments"`
	TotalCardDebt    float64 `json:"total_card_debt"`
	UpcomingDueCount int     `json:"upcoming_due_count"`
}

// DueDateItem is one row of the upcoming payments list.
type DueDateItem struct {
	CardAccountID int64   `json:"card_account_id"`
	CardName      string  `json:"card_name"`
	DueDate       Date    `json:"due_date"`
	MinPaymentDue float64 `json:"min_payment_due"`
	DaysRemaining int     `json:"days_remaining"`
}
