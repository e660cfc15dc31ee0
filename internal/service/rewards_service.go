package service

import (
	"context"
	"strings"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rewardTracer = otel.Tracer("service/rewards")

// RewardService manages reward rules and offers. Any write invalidates
// cached recommendations.
type RewardService struct {
	accounts port.AccountStore
	store    port.RewardStore
	cache    port.Cache[*domain.Recommendation]
	logger   *zap.Logger
}

// NewRewardService creates a new reward service.
func NewRewardService(accounts port.AccountStore, store port.RewardStore, cache port.Cache[*domain.Recommendation], logger *zap.Logger) *RewardService {
	return &RewardService{accounts: accounts, store: store, cache: cache, logger: logger}
}

func (s *RewardService) CreateRule(ctx context.Context, req *domain.RewardRuleCreate) (*domain.RewardRule, error) {
	ctx, span := rewardTracer.Start(ctx, "RewardService.CreateRule")
	defer span.End()

	category := domain.NormalizeCategory(req.Category)
	if category == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "required"}
	}
	multiplier := 1.0
	if req.Multiplier != nil {
		multiplier = *req.Multiplier
	}
	if multiplier < 0 {
		return nil, &domain.ErrValidation{Field: "multiplier", Message: "must not be negative"}
	}
	currency := strings.TrimSpace(req.PointCurrency)
	if currency == "" {
		currency = domain.DefaultPointCurrency
	}

	if _, err := s.accounts.GetAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	rule, err := s.store.CreateRewardRule(ctx, &domain.RewardRule{
		AccountID:      req.AccountID,
		Category:       category,
		Multiplier:     multiplier,
		PointCurrency:  currency,
		CapDescription: req.CapDescription,
		Exclusions:     req.Exclusions,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Flush()

	s.logger.Info("reward rule created",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("account_id", rule.AccountID),
		zap.String("category", rule.Category),
		zap.Float64("multiplier", rule.Multiplier),
	)
	return rule, nil
}

func (s *RewardService) CreateOffer(ctx context.Context, req *domain.OfferCreate) (*domain.Offer, error) {
	ctx, span := rewardTracer.Start(ctx, "RewardService.CreateOffer")
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if req.BonusMultiplier < 0 {
		return nil, &domain.ErrValidation{Field: "bonus_multiplier", Message: "must not be negative"}
	}

	var category *string
	if req.Category != nil {
		if c := domain.NormalizeCategory(*req.Category); c != "" {
			category = &c
		}
	}

	if _, err := s.accounts.GetAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	offer, err := s.store.CreateOffer(ctx, &domain.Offer{
		AccountID:       req.AccountID,
		Title:           title,
		Merchant:        req.Merchant,
		Category:        category,
		BonusMultiplier: req.BonusMultiplier,
		ValidUntil:      req.ValidUntil,
		Details:         req.Details,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Flush()

	s.logger.Info("offer created",
		zap.Int64("offer_id", offer.ID),
		zap.Int64("account_id", offer.AccountID),
		zap.Float64("bonus_multiplier", offer.BonusMultiplier),
	)
	return offer, nil
}
