package handler

import (
	"net/http"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Linked institutions
// ============================================================

func plaidStatusHandler(svc *service.LinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": svc.Enabled()})
	}
}

func plaidLinkTokenHandler(svc *service.LinkService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /plaid/link-token")
		defer span.End()

		token, err := svc.CreateLinkToken(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"link_token": token})
	}
}

func plaidExchangeHandler(svc *service.LinkService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /plaid/exchange-token")
		defer span.End()

		var req domain.ExchangeTokenRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := svc.ExchangePublicToken(ctx, req.PublicToken)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func plaidSyncHandler(svc *service.LinkService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /plaid/sync")
		defer span.End()

		result, err := svc.Sync(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
