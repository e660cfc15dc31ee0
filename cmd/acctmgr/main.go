package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/account-manager-go/internal/config"
	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/handler"
	"github.com/boddenberg/account-manager-go/internal/infra/cache"
	"github.com/boddenberg/account-manager-go/internal/infra/client"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/infra/resilience"
	"github.com/boddenberg/account-manager-go/internal/infra/secure"
	"github.com/boddenberg/account-manager-go/internal/infra/sqlite"
	"github.com/boddenberg/account-manager-go/internal/port"
	"github.com/boddenberg/account-manager-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_path", cfg.DatabasePath),
		zap.Int64("max_upload_bytes", cfg.MaxUploadSizeBytes),
		zap.Float64("import_rate_limit", cfg.ImportRateLimit),
		zap.Duration("recommendation_cache_ttl", cfg.RecommendationCacheTTL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("plaid_enabled", cfg.PlaidEnabled()),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, "acctmgr", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Persistence ---
	store, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	tokenBox, err := secure.NewTokenBox(cfg.PlaidEncryptionKey)
	if err != nil {
		logger.Fatal("invalid PLAID_ENCRYPTION_KEY", zap.Error(err))
	}
	if !tokenBox.Enabled() {
		logger.Warn("PLAID_ENCRYPTION_KEY not set, access tokens are stored unencrypted")
	}

	// --- Cache ---
	recoCache := cache.New[*domain.Recommendation](cfg.RecommendationCacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	var provider port.AccountDataProvider
	if cfg.PlaidEnabled() {
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("plaid", logger)
		baseURL := client.PlaidBaseURL(cfg.PlaidEnv)
		provider = client.NewPlaidClient(httpClient, baseURL, cfg.PlaidClientID, cfg.PlaidSecret, cb, resilienceCfg, logger)
		logger.Info("plaid integration enabled", zap.String("plaid_env", cfg.PlaidEnv))
	} else {
		logger.Warn("plaid: credentials not configured, /plaid routes unavailable")
	}

	// --- Services ---
	svcs := handler.Services{
		Accounts:        service.NewAccountService(store, store, store, logger),
		DueDates:        service.NewDueDateService(store, store, nil, logger),
		Dashboard:       service.NewDashboardService(store, store),
		Imports:         service.NewImportService(store, resilience.NewBulkhead(cfg.MaxConcurrentImports), metrics, logger),
		Rewards:         service.NewRewardService(store, store, recoCache, logger),
		Recommendations: service.NewRecommendationService(store, recoCache, metrics, logger),
		Links:           service.NewLinkService(provider, store, tokenBox, metrics, cfg.MaxConcurrency, logger),
	}

	// --- Router ---
	router := handler.NewRouter(svcs, handler.Options{
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadSizeBytes,
		ImportLimiter:  rate.NewLimiter(rate.Limit(cfg.ImportRateLimit), cfg.ImportRateBurst),
		Database:       store,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port), zap.String("project", cfg.ProjectName))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
