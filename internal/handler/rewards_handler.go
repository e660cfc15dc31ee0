package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Rewards & Recommendations
// ============================================================

const defaultRecommendationAmount = 100.0

func createRewardRuleHandler(svc *service.RewardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /rewards/rules")
		defer span.End()

		var req domain.RewardRuleCreate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rule, err := svc.CreateRule(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.CreatedResponse{ID: rule.ID, Message: "rule_created"})
	}
}

func createOfferHandler(svc *service.RewardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /rewards/offers")
		defer span.End()

		var req domain.OfferCreate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		offer, err := svc.CreateOffer(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.CreatedResponse{ID: offer.ID, Message: "offer_created"})
	}
}

func bestCardHandler(svc *service.RecommendationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /recommendations/best-card")
		defer span.End()

		q := r.URL.Query()
		category := strings.TrimSpace(q.Get("category"))
		if !domain.ValidRecommendationCategory(category) {
			writeError(w, http.StatusBadRequest, "category must be at least 2 characters")
			return
		}

		amount := defaultRecommendationAmount
		if v := q.Get("amount"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || !domain.ValidRecommendationAmount(parsed) {
				writeError(w, http.StatusBadRequest, "amount must be a finite number greater than 0")
				return
			}
			amount = parsed
		}
		span.SetAttributes(attribute.String("reward.category", category))

		rec, err := svc.BestCard(ctx, category, amount)
		if err != nil {
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				writeError(w, http.StatusNotFound, "No reward rules found for this category")
				return
			}
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
