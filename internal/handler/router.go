package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/port"
	"github.com/boddenberg/account-manager-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("handler")

// Services groups the use cases exposed over HTTP. Links may be disabled
// but must not be nil.
type Services struct {
	Accounts        *service.AccountService
	DueDates        *service.DueDateService
	Dashboard       *service.DashboardService
	Imports         *service.ImportService
	Rewards         *service.RewardService
	Recommendations *service.RecommendationService
	Links           *service.LinkService
}

// Options carries transport settings.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	// ImportLimiter throttles POST /imports/csv. Nil disables throttling.
	ImportLimiter *rate.Limiter
	// Database is pinged by /healthz and /readyz. Nil skips the check.
	Database port.HealthChecker
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requestDurationMiddleware(metrics))

	// --- Operational endpoints ---
	r.Get("/health", healthHandler())
	r.Get("/healthz", healthzHandler(opts.Database, svc.Links))
	r.Get("/readyz", readyzHandler(opts.Database, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/metrics/imports", importMetricsHandler(metrics))

	// --- Accounts & cards ---
	r.Post("/accounts", createAccountHandler(svc.Accounts, logger))
	r.Get("/accounts", listAccountsHandler(svc.Accounts, logger))
	r.Get("/accounts/{accountId}/transactions", listAccountTransactionsHandler(svc.Accounts, logger))
	r.Get("/accounts/{accountId}/balance-history", listBalanceHistoryHandler(svc.Accounts, logger))

	r.Post("/cards", createCardHandler(svc.Accounts, logger))
	r.Get("/cards", listCardsHandler(svc.Accounts, logger))
	r.Put("/cards/{cardId}/due-date-override", setDueDateOverrideHandler(svc.Accounts, logger))

	// --- Dashboard ---
	r.Get("/dashboard/summary", dashboardSummaryHandler(svc.Dashboard, logger))
	r.Get("/due-dates/upcoming", upcomingDueDatesHandler(svc.DueDates, logger))

	// --- Imports ---
	r.Group(func(r chi.Router) {
		if opts.ImportLimiter != nil {
			r.Use(rateLimitMiddleware(opts.ImportLimiter, logger))
		}
		r.Post("/imports/csv", importCSVHandler(svc.Imports, opts.MaxUploadBytes, logger))
	})
	r.Get("/imports", listImportJobsHandler(svc.Imports, logger))

	// --- Rewards ---
	r.Post("/rewards/rules", createRewardRuleHandler(svc.Rewards, logger))
	r.Post("/rewards/offers", createOfferHandler(svc.Rewards, logger))
	r.Get("/recommendations/best-card", bestCardHandler(svc.Recommendations, logger))

	// --- Linked institutions ---
	r.Route("/plaid", func(r chi.Router) {
		r.Get("/status", plaidStatusHandler(svc.Links))
		r.Get("/link-token", plaidLinkTokenHandler(svc.Links, logger))
		r.Post("/exchange-token", plaidExchangeHandler(svc.Links, logger))
		r.Post("/sync", plaidSyncHandler(svc.Links, logger))
	})

	return r
}

// ============================================================
// Health & Metrics
// ============================================================

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func healthzHandler(db port.HealthChecker, links *service.LinkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "acctmgr-api", Status: "healthy", LastChecked: now},
		}

		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: "sqlite", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		if links != nil && !links.Enabled() {
			services = append(services, domain.ServiceHealth{Name: "plaid", Status: "degraded", LastChecked: now})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		code := http.StatusOK
		if overall == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(db port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func importMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetImportSnapshot())
	}
}
