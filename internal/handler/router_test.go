package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/handler"
	"github.com/boddenberg/account-manager-go/internal/infra/cache"
	"github.com/boddenberg/account-manager-go/internal/infra/observability"
	"github.com/boddenberg/account-manager-go/internal/infra/resilience"
	"github.com/boddenberg/account-manager-go/internal/infra/secure"
	"github.com/boddenberg/account-manager-go/internal/infra/sqlite"
	"github.com/boddenberg/account-manager-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type testServer struct {
	router  http.Handler
	store   *sqlite.Store
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, opts handler.Options) *testServer {
	t.Helper()
	logger := zap.NewNop()

	store, err := sqlite.Open(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	box, err := secure.NewTokenBox("")
	if err != nil {
		t.Fatal(err)
	}

	metrics := observability.NewMetrics()
	recoCache := cache.New[*domain.Recommendation](time.Minute)
	svcs := handler.Services{
		Accounts:        service.NewAccountService(store, store, store, logger),
		DueDates:        service.NewDueDateService(store, store, nil, logger),
		Dashboard:       service.NewDashboardService(store, store),
		Imports:         service.NewImportService(store, resilience.NewBulkhead(1), metrics, logger),
		Rewards:         service.NewRewardService(store, store, recoCache, logger),
		Recommendations: service.NewRecommendationService(store, recoCache, metrics, logger),
		Links:           service.NewLinkService(nil, store, box, metrics, 2, logger),
	}
	if opts.MaxUploadBytes == 0 {
		opts.MaxUploadBytes = 1 << 20
	}
	if opts.Database == nil {
		opts.Database = store
	}
	return &testServer{
		router:  handler.NewRouter(svcs, opts, metrics, logger),
		store:   store,
		metrics: metrics,
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, importType, sourceName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if importType != "" {
		mw.WriteField("import_type", importType)
	}
	if sourceName != "" {
		mw.WriteField("source_name", sourceName)
	}
	fw, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/imports/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// --- Operational endpoints ---

func TestHealth(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	rec := srv.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("unexpected body %v", got)
	}
}

func TestHealthz_DegradedWithoutProvider(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	rec := srv.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decode[domain.HealthStatus](t, rec)
	if got.Status != "degraded" {
		t.Errorf("expected degraded, got %q", got.Status)
	}
}

func TestReadyz(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	rec := srv.do(http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	srv.do(http.MethodGet, "/accounts", nil)

	rec := srv.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "acctmgr_request_duration_seconds") {
		t.Error("expected request duration metric to be exported")
	}
}

// --- Accounts & cards ---

func TestAccountsAndCards(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	rec := srv.do(http.MethodPost, "/accounts", map[string]any{
		"name": "Travel Card", "account_type": "credit_card", "current_balance": -500,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	card := decode[domain.Account](t, rec)
	if card.Currency != "USD" {
		t.Errorf("expected USD, got %q", card.Currency)
	}

	rec = srv.do(http.MethodPost, "/accounts", map[string]any{"name": "Checking", "account_type": "checking"})
	checking := decode[domain.Account](t, rec)

	rec = srv.do(http.MethodPost, "/accounts", map[string]any{"name": "Bad", "account_type": "crypto"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", rec.Code)
	}

	rec = srv.do(http.MethodPost, "/cards", map[string]any{"account_id": card.ID, "issuer_name": "Chase", "due_day": 15})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	detail := decode[domain.CreditCardDetail](t, rec)

	rec = srv.do(http.MethodPost, "/cards", map[string]any{"account_id": card.ID, "issuer_name": "Chase"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for second card, got %d", rec.Code)
	}
	rec = srv.do(http.MethodPost, "/cards", map[string]any{"account_id": checking.ID, "issuer_name": "Chase"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-credit account, got %d", rec.Code)
	}
	rec = srv.do(http.MethodPost, "/cards", map[string]any{"account_id": 999, "issuer_name": "Chase"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown account, got %d", rec.Code)
	}

	rec = srv.do(http.MethodPut, "/cards/"+itoa(detail.ID)+"/due-date-override", map[string]any{"due_date_override": "2030-01-05"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := decode[domain.CreditCardDetail](t, rec); got.DueDateOverride == nil || got.DueDateOverride.String() != "2030-01-05" {
		t.Errorf("expected override to be set, got %+v", got)
	}

	rec = srv.do(http.MethodPut, "/cards/"+itoa(detail.ID)+"/due-date-override", map[string]any{"due_date_override": "05/01/2030"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed date, got %d", rec.Code)
	}

	rec = srv.do(http.MethodGet, "/due-dates/upcoming", nil)
	items := decode[[]domain.DueDateItem](t, rec)
	if len(items) != 1 || items[0].DueDate.String() != "2030-01-05" || items[0].CardName != "Travel Card" {
		t.Errorf("unexpected due dates %+v", items)
	}

	rec = srv.do(http.MethodGet, "/dashboard/summary", nil)
	summary := decode[domain.DashboardSummary](t, rec)
	if summary.TotalCardDebt != 500 || summary.UpcomingDueCount != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}

	rec = srv.do(http.MethodGet, "/accounts", nil)
	if got := decode[[]domain.Account](t, rec); len(got) != 2 {
		t.Errorf("expected 2 accounts, got %d", len(got))
	}
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	for _, path := range []string{"/accounts", "/cards", "/due-dates/upcoming", "/imports"} {
		rec := srv.do(http.MethodGet, path, nil)
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("%s: expected [], got %s", path, body)
		}
	}
}

// --- Imports ---

func TestImportCSV(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	rec := srv.do(http.MethodPost, "/accounts", map[string]any{"name": "Checking", "account_type": "checking"})
	acct := decode[domain.Account](t, rec)

	rec = srv.upload(t, "balances", "", "account_id,snapshot_date,balance\n"+itoa(acct.ID)+",2024-01-31,950.25\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	job := decode[domain.ImportJob](t, rec)
	if job.Status != domain.ImportStatusCompleted || job.SourceName != "manual_upload" {
		t.Errorf("unexpected job %+v", job)
	}

	rec = srv.do(http.MethodGet, "/accounts/"+itoa(acct.ID)+"/balance-history", nil)
	if snaps := decode[[]domain.BalanceSnapshot](t, rec); len(snaps) != 1 || snaps[0].Balance != 950.25 {
		t.Errorf("unexpected history %+v", snaps)
	}

	rec = srv.upload(t, "transactions", "bank", "account_id,transaction_date,description,amount\n"+itoa(acct.ID)+",2024-02-30,x,1\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected failed jobs to answer 200, got %d", rec.Code)
	}
	failed := decode[domain.ImportJob](t, rec)
	if failed.Status != domain.ImportStatusFailed || failed.Message == nil {
		t.Errorf("expected failed job with message, got %+v", failed)
	}

	rec = srv.do(http.MethodGet, "/imports", nil)
	if jobs := decode[[]domain.ImportJob](t, rec); len(jobs) != 2 || jobs[0].Status != domain.ImportStatusFailed {
		t.Errorf("expected newest failed job first, got %+v", jobs)
	}

	rec = srv.do(http.MethodGet, "/metrics/imports", nil)
	snap := decode[domain.ImportMetrics](t, rec)
	if snap.JobsCompleted != 1 || snap.JobsFailed != 1 || snap.FailureRate != 0.5 {
		t.Errorf("unexpected import metrics %+v", snap)
	}
}

func TestImportCSV_BadRequests(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	rec := srv.upload(t, "", "", "a,b\n")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing import_type: expected 400, got %d", rec.Code)
	}

	small := newTestServer(t, handler.Options{MaxUploadBytes: 256})
	rec = small.upload(t, "transactions", "", strings.Repeat("x", 4096))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload: expected 413, got %d", rec.Code)
	}
}

func TestImportCSV_RateLimited(t *testing.T) {
	srv := newTestServer(t, handler.Options{ImportLimiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	csv := "account_id,transaction_date,description,amount\n"

	if rec := srv.upload(t, "transactions", "", csv); rec.Code != http.StatusOK {
		t.Fatalf("expected first upload to pass, got %d", rec.Code)
	}
	if rec := srv.upload(t, "transactions", "", csv); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

// --- Rewards ---

func TestRewardsAndRecommendation(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	rec := srv.do(http.MethodPost, "/accounts", map[string]any{"name": "Sapphire", "account_type": "credit_card"})
	acct := decode[domain.Account](t, rec)

	rec = srv.do(http.MethodPost, "/rewards/rules", map[string]any{"account_id": acct.ID, "category": "Travel", "multiplier": 3})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if got := decode[domain.CreatedResponse](t, rec); got.Message != "rule_created" || got.ID == 0 {
		t.Errorf("unexpected response %+v", got)
	}

	rec = srv.do(http.MethodPost, "/rewards/offers", map[string]any{"account_id": acct.ID, "title": "Promo", "bonus_multiplier": 2})
	if got := decode[domain.CreatedResponse](t, rec); got.Message != "offer_created" {
		t.Errorf("unexpected response %+v", got)
	}

	rec = srv.do(http.MethodGet, "/recommendations/best-card?category=travel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	best := decode[domain.Recommendation](t, rec)
	if best.AccountID != acct.ID || best.ExpectedReturn != 500 {
		t.Errorf("unexpected recommendation %+v", best)
	}
	if best.Rationale != "5.00x effective return (3.0 base + 2.0 offer bonus)." {
		t.Errorf("unexpected rationale %q", best.Rationale)
	}

	tests := []struct {
		query string
		code  int
	}{
		{"category=groceries&amount=10", http.StatusNotFound},
		{"category=a", http.StatusBadRequest},
		{"category=travel&amount=0", http.StatusBadRequest},
		{"category=travel&amount=abc", http.StatusBadRequest},
		{"category=travel&amount=NaN", http.StatusBadRequest},
		{"category=travel&amount=Inf", http.StatusBadRequest},
		{"category=travel&amount=-Inf", http.StatusBadRequest},
		{"category=travel&amount=1e308", http.StatusBadRequest},
		{"category=%20a%20", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := srv.do(http.MethodGet, "/recommendations/best-card?"+tt.query, nil)
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.query, tt.code, rec.Code)
		}
	}

	rec = srv.do(http.MethodGet, "/recommendations/best-card?category=groceries", nil)
	if got := decode[map[string]string](t, rec); got["error"] != "No reward rules found for this category" {
		t.Errorf("unexpected not-found body %v", got)
	}
}

// --- Linked institutions ---

func TestPlaidDisabled(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	rec := srv.do(http.MethodGet, "/plaid/status", nil)
	if got := decode[map[string]bool](t, rec); got["enabled"] {
		t.Error("expected provider to be disabled")
	}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/plaid/link-token"},
		{http.MethodPost, "/plaid/exchange-token"},
		{http.MethodPost, "/plaid/sync"},
	} {
		rec := srv.do(tc.method, tc.path, map[string]string{"public_token": "x"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}

	rec = srv.do(http.MethodGet, "/plaid/link-token", nil)
	if got := decode[map[string]string](t, rec); !strings.HasPrefix(got["error"], "Plaid is not configured") {
		t.Errorf("unexpected error body %v", got)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
