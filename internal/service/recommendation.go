package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var recoTracer = otel.Tracer("service/recommendation")

const recommendationCache = "recommendation"

// RecommendationService picks the card with the highest expected return for
// a spending category.
type RecommendationService struct {
	store   port.RewardStore
	cache   port.Cache[*domain.Recommendation]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRecommendationService creates a new recommendation service.
func NewRecommendationService(store port.RewardStore, cache port.Cache[*domain.Recommendation], metrics *observability.Metrics, logger *zap.Logger) *RecommendationService {
	return &RecommendationService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// BestCard evaluates every rule for the category, adds the best applicable
// offer on the same account, and returns the highest expected return on
// amount. The first candidate wins ties. Returns *domain.ErrNotFound when no
// rule covers the category.
func (s *RecommendationService) BestCard(ctx context.Context, category string, amount float64) (*domain.Recommendation, error) {
	ctx, span := recoTracer.Start(ctx, "RecommendationService.BestCard")
	defer span.End()

	if !domain.ValidRecommendationAmount(amount) {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be a finite number greater than 0"}
	}
	if !domain.ValidRecommendationCategory(category) {
		return nil, &domain.ErrValidation{Field: "category", Message: "must be at least 2 characters"}
	}
	normalized := domain.NormalizeCategory(category)
	span.SetAttributes(
		attribute.String("reward.category", normalized),
		attribute.Float64("reward.amount", amount),
	)

	key := normalized + "|" + strconv.FormatFloat(amount, 'f', -1, 64)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit(recommendationCache)
		out := *cached
		return &out, nil
	}
	s.metrics.IncrCacheMiss(recommendationCache)

	candidates, err := s.store.ListRuleCandidates(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &domain.ErrNotFound{Resource: "reward rule", ID: normalized}
	}

	offersByAccount := map[int64][]domain.Offer{}
	var best *domain.Recommendation
	for _, c := range candidates {
		offers, ok := offersByAccount[c.Account.ID]
		if !ok {
			offers, err = s.store.ListOffersByAccount(ctx, c.Account.ID)
			if err != nil {
				return nil, err
			}
			offersByAccount[c.Account.ID] = offers
		}

		bonus := bestOfferBonus(offers, normalized)
		effective := c.Rule.Multiplier + bonus
		expected, ok := expectedReturn(amount, effective)
		if !ok {
			return nil, &domain.ErrValidation{Field: "amount", Message: "is too large"}
		}
		candidate := &domain.Recommendation{
			Category:       normalized,
			AccountID:      c.Account.ID,
			CardName:       c.Account.Name,
			ExpectedReturn: expected,
			Rationale: fmt.Sprintf("%.2fx effective return (%s base + %s offer bonus).",
				effective, formatMultiplier(c.Rule.Multiplier), formatMultiplier(bonus)),
		}
		if best == nil || candidate.ExpectedReturn > best.ExpectedReturn {
			best = candidate
		}
	}

	s.logger.Debug("recommendation computed",
		zap.String("category", normalized),
		zap.Int("candidates", len(candidates)),
		zap.Int64("account_id", best.AccountID),
		zap.Float64("expected_return", best.ExpectedReturn),
	)

	stored := *best
	s.cache.Set(key, &stored)
	return best, nil
}

// bestOfferBonus returns the largest bonus among offers for the category or
// for all categories; zero when none apply.
func bestOfferBonus(offers []domain.Offer, category string) float64 {
	var (
		bonus float64
		found bool
	)
	for _, o := range offers {
		if !o.AppliesTo(category) {
			continue
		}
		if !found || o.BonusMultiplier > bonus {
			bonus = o.BonusMultiplier
			found = true
		}
	}
	return bonus
}

// expectedReturn is the float64 product amount × multiplier rounded to cents.
// Rounding works on the exact binary value of the product, half to even, so
// 33.33 × 1.5 (49.99499...) gives 49.99 and 0.125 gives 0.12. It reports false
// when the product is not finite.
func expectedReturn(amount, multiplier float64) (float64, bool) {
	product := amount * multiplier
	if math.IsNaN(product) || math.IsInf(product, 0) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strconv.FormatFloat(product, 'f', 2, 64), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// formatMultiplier prints the shortest form with at least one decimal: 3.0, 0.5, 1.25.
func formatMultiplier(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
