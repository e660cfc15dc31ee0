package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// ImportMetrics is returned by GET /metrics/imports.
type ImportMetrics struct {
	JobsCompleted        int64   `json:"jobsCompleted"`
	JobsFailed           int64   `json:"jobsFailed"`
	BalanceRowsImported  int64   `json:"balanceRowsImported"`
	TransactionsImported int64   `json:"transactionsImported"`
	FailureRate          float64 `json:"failureRate"`
	RecommendationHits   int64   `json:"recommendationCacheHits"`
	RecommendationMisses int64   `json:"recommendationCacheMisses"`
}
