package domain

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ============================================================
// Rewards & Offers
// ============================================================

// DefaultPointCurrency labels rules created without a currency.
const DefaultPointCurrency = "points"

// MinCategoryLength is the shortest category a recommendation accepts.
const MinCategoryLength = 2

// NormalizeCategory trims and lower-cases a spending category.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// ValidRecommendationCategory reports whether the trimmed category has at
// least MinCategoryLength characters.
func ValidRecommendationCategory(category string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(category)) >= MinCategoryLength
}

// ValidRecommendationAmount reports whether amount is a finite number above zero.
func ValidRecommendationAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount > 0
}

// RewardRule is a per-account base multiplier for one spending category.
type RewardRule struct {
	ID             int64   `json:"id"`
	AccountID      int64   `json:"account_id"`
	Category       string  `json:"category"`
	Multiplier     float64 `json:"multiplier"`
	PointCurrency  string  `json:"point_currency"`
	CapDescription *string `json:"cap_description,omitempty"`
	Exclusions     *string `json:"exclusions,omitempty"`
}

// RewardRuleCreate is the payload for POST /rewards/rules.
// A nil multiplier means 1x.
type RewardRuleCreate struct {
	AccountID      int64    `json:"account_id"`
	Category       string   `json:"category"`
	Multiplier     *float64 `json:"multiplier,omitempty"`
	PointCurrency  string   `json:"point_currency,omitempty"`
	CapDescription *string  `json:"cap_description,omitempty"`
	Exclusions     *string  `json:"exclusions,omitempty"`
}

// Offer is a promotional bonus layered on top of a reward rule. A nil
// category applies to every category on the account.
type Offer struct {
	ID              int64   `json:"id"`
	AccountID       int64   `json:"account_id"`
	Title           string  `json:"title"`
	Merchant        *string `json:"merchant,omitempty"`
	Category        *string `json:"category"`
	BonusMultiplier float64 `json:"bonus_multiplier"`
	ValidUntil      *string `json:"valid_until,omitempty"`
	Details         *string `json:"details,omitempty"`
}

// AppliesTo reports whether the offer covers the normalized category.
func (o Offer) AppliesTo(category string) bool {
	return o.Category == nil || *o.Category == category
}

// OfferCreate is the payload for POST /rewards/offers.
type OfferCreate struct {
	AccountID       int64   `json:"account_id"`
	Title           string  `json:"title"`
	Merchant        *string `json:"merchant,omitempty"`
	Category        *string `json:"category,omitempty"`
	BonusMultiplier float64 `json:"bonus_multiplier"`
	ValidUntil      *string `json:"valid_until,omitempty"`
	Details         *string `json:"details,omitempty"`
}

// RuleCandidate pairs a matching rule with the account it belongs to.
type RuleCandidate struct {
	Rule    RewardRule
	Account Account
}

// Recommendation is the best card for a category and amount.
type Recommendation struct {
	Category       string  `json:"category"`
	AccountID      int64   `json:"account_id"`
	CardName       string  `json:"card_name"`
	ExpectedReturn float64 `json:"expected_return"`
	Rationale      string  `json:"rationale"`
}

// CreatedResponse acknowledges a created rule or offer.
type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}
