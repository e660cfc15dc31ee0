package observability

import (
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// InvalidImportType labels import jobs whose type was rejected, keeping the
// label set bounded.
const InvalidImportType = "invalid"

// Metrics holds all Prometheus metrics for the account manager.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	importJobs      *prometheus.CounterVec
	importRows      *prometheus.CounterVec
	importDuration  *prometheus.HistogramVec
	syncedAccounts  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "acctmgr_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acctmgr_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acctmgr_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acctmgr_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		importJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acctmgr_import_jobs_total",
				Help: "Import jobs by type and terminal status.",
			},
			[]string{"type", "status"},
		),
		importRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acctmgr_import_rows_total",
				Help: "Rows imported by type.",
			},
			[]string{"type"},
		),
		importDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "acctmgr_import_duration_seconds",
				Help:    "Duration of CSV imports.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		syncedAccounts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "acctmgr_synced_accounts_total",
				Help: "Account balances updated from the account-data provider.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordImport records a finished import job.
func (m *Metrics) RecordImport(importType string, status domain.ImportStatus, rows int, d time.Duration) {
	m.importJobs.WithLabelValues(importType, string(status)).Inc()
	if rows > 0 {
		m.importRows.WithLabelValues(importType).Add(float64(rows))
	}
	m.importDuration.WithLabelValues(importType).Observe(d.Seconds())
}

// AddSyncedAccounts counts balances refreshed by a provider sync.
func (m *Metrics) AddSyncedAccounts(n int) {
	m.syncedAccounts.Add(float64(n))
}

// GetImportSnapshot returns a snapshot of import and recommendation metrics
// suitable for the GET /metrics/imports endpoint.
func (m *Metrics) GetImportSnapshot() *domain.ImportMetrics {
	var completed, failed float64
	for _, t := range []string{string(domain.ImportTypeBalances), string(domain.ImportTypeTransactions), InvalidImportType} {
		completed += getCounterValue(m.importJobs, t, string(domain.ImportStatusCompleted))
		failed += getCounterValue(m.importJobs, t, string(domain.ImportStatusFailed))
	}

	failureRate := float64(0)
	if completed+failed > 0 {
		failureRate = failed / (completed + failed)
	}

	return &domain.ImportMetrics{
		JobsCompleted:        int64(completed),
		JobsFailed:           int64(failed),
		BalanceRowsImported:  int64(getCounterValue(m.importRows, string(domain.ImportTypeBalances))),
		TransactionsImported: int64(getCounterValue(m.importRows, string(domain.ImportTypeTransactions))),
		FailureRate:          failureRate,
		RecommendationHits:   int64(getCounterValue(m.cacheHits, "recommendation")),
		RecommendationMisses: int64(getCounterValue(m.cacheMisses, "recommendation")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
