package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/memory"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/services"
)

var testNow = time.Date(2025, 10, 15, 12, 0, 0, 0, art)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard, Level: slog.LevelError})
}

func seed() []core.Transaction {
	mk := func(id, date, category string, cents int64) core.Transaction {
		return core.Transaction{ID: id, UserID: "u1", Date: date, Category: category, Amount: core.Money{Cents: cents}}
	}
	txs := []core.Transaction{
		mk("1", "2025-10-14T10:00:00", "Comida", 1000),
		mk("2", "2025-10-10T10:00:00", "transporte", 500),
		mk("3", "2025-09-20T10:00:00", "comida", 2000),
		mk("4", "2025-10-01T08:00:00", "=ocio", 300),
		mk("5", "2025-09-15T09:00:00", "cuotas", 1200),
	}
	txs[0].PaymentMethod = "debito"
	return txs
}

// failingBackend answers every list with an upstream error.
type failingBackend struct {
	*memory.Store
}

func (failingBackend) ListTransactions(context.Context, string) ([]core.Transaction, error) {
	return nil, fmt.Errorf("list: %w", core.ErrUpstream)
}

func (failingBackend) Ping(context.Context) error {
	return errors.New("connection refused")
}

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(seed(), art)
	svc := services.NewDashboardService(store, services.DashboardOptions{
		Location: art,
		Logger:   quietLogger(),
		Now:      func() time.Time { return testNow },
	})
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(":0", svc, opts)
	srv.now = func() time.Time { return testNow }
	t.Cleanup(srv.rateLimiter.Stop)
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "203.0.113.10:4000"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("%s content type %q", path, ct)
		}
		if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing middleware headers: %v", path, rr.Header())
		}
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	svc := services.NewDashboardService(failingBackend{memory.New(nil, art)}, services.DashboardOptions{Location: art, Logger: quietLogger()})
	srv := NewServer(":0", svc, Options{Logger: quietLogger()})
	defer srv.rateLimiter.Stop()

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	decode(t, rr, &body)
	if body.Status != "not_ready" || !strings.HasPrefix(fmt.Sprint(body.Checks["backend"]), "failed") {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHome(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/users/u1/home", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var view struct {
		MonthSummary struct {
			Month string  `json:"month"`
			Total float64 `json:"total"`
			Count int     `json:"count"`
		} `json:"month_summary"`
		RecentTransactions []core.Transaction `json:"recent_transactions"`
	}
	decode(t, rr, &view)
	if view.MonthSummary.Month != "2025-10" || view.MonthSummary.Total != 18 || view.MonthSummary.Count != 3 {
		t.Fatalf("unexpected month summary %+v", view.MonthSummary)
	}
	if len(view.RecentTransactions) != 3 || view.RecentTransactions[0].ID != "1" {
		t.Fatalf("unexpected recent transactions %+v", view.RecentTransactions)
	}
}

func TestRefreshPicksUpExternalChanges(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	homeCount := func() int {
		rr := do(t, srv, http.MethodGet, "/api/users/u1/home", "")
		var view struct {
			MonthSummary struct {
				Count int `json:"count"`
			} `json:"month_summary"`
		}
		decode(t, rr, &view)
		return view.MonthSummary.Count
	}

	if n := homeCount(); n != 3 {
		t.Fatalf("expected 3 transactions this month, got %d", n)
	}
	// Changed behind the service's back; the cached list still has it.
	if err := store.DeleteTransaction(context.Background(), "2"); err != nil {
		t.Fatal(err)
	}
	if n := homeCount(); n != 3 {
		t.Fatalf("expected cached count 3, got %d", n)
	}

	rr := do(t, srv, http.MethodPost, "/api/users/u1/refresh", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d body=%s", rr.Code, rr.Body)
	}
	var body struct {
		Count int `json:"count"`
	}
	decode(t, rr, &body)
	if body.Count != 4 {
		t.Fatalf("expected 4 transactions after refresh, got %d", body.Count)
	}
	if n := homeCount(); n != 2 {
		t.Fatalf("expected refreshed count 2, got %d", n)
	}
}

func TestAnalysis(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/users/u1/analysis?start=2025-09-01&end=2025-09-30", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var view struct {
		Period     string  `json:"period"`
		Total      float64 `json:"total"`
		Count      int     `json:"count"`
		Categories []struct {
			Category   string `json:"category"`
			Percentage int    `json:"percentage"`
		} `json:"categories"`
	}
	decode(t, rr, &view)
	if view.Period != "custom" || view.Total != 32 || view.Count != 2 || len(view.Categories) != 2 {
		t.Fatalf("unexpected analysis %+v", view)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/u1/analysis?period=decade", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad period status=%d", rr.Code)
	}
	var errBody ErrorResponse
	decode(t, rr, &errBody)
	if errBody.Code != "invalid_request" || errBody.RequestID == "" {
		t.Fatalf("unexpected error body %+v", errBody)
	}
}

func TestHistoryAndCategories(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/users/u1/history?category=comida", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var hist struct {
		Days []struct {
			Date string `json:"date"`
		} `json:"days"`
		Total float64 `json:"total"`
		Count int     `json:"count"`
	}
	decode(t, rr, &hist)
	if hist.Count != 2 || hist.Total != 30 || hist.Days[0].Date != "2025-10-14" {
		t.Fatalf("unexpected history %+v", hist)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/u1/categories", "")
	var cats struct {
		Categories []core.CategoryInfo `json:"categories"`
	}
	decode(t, rr, &cats)
	if len(cats.Categories) != 4 {
		t.Fatalf("expected 4 categories, got %+v", cats.Categories)
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPut, "/api/users/u1/expenses/1", `{"amount": 12.5, "payment_method": "<b>credito</b>"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}
	txs, _ := store.ListTransactions(context.Background(), "u1")
	for _, tx := range txs {
		if tx.ID == "1" && (tx.Amount.Cents != 1250 || tx.PaymentMethod != "credito") {
			t.Fatalf("update not applied: %+v", tx)
		}
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"zero amount", http.MethodPut, "/api/users/u1/expenses/1", `{"amount": 0}`, http.StatusBadRequest},
		{"malformed", http.MethodPut, "/api/users/u1/expenses/1", `{"amount":`, http.StatusBadRequest},
		{"unknown expense", http.MethodPut, "/api/users/u1/expenses/nope", `{"amount": 1}`, http.StatusNotFound},
		{"delete", http.MethodDelete, "/api/users/u1/expenses/2", "", http.StatusNoContent},
		{"delete twice", http.MethodDelete, "/api/users/u1/expenses/2", "", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/users/u1/expenses/2", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, tt.method, tt.target, tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/users/u1/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename=gastos_2025-10-01_a_2025-10-15.csv` {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	body := rr.Body.String()
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "id,ts,amount") {
		t.Fatalf("unexpected export:\n%s", body)
	}
	if !strings.Contains(body, "'=ocio") {
		t.Fatalf("formula cell not neutralized:\n%s", body)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/u1/export?start=2025-09-01&end=2025-09-30", "")
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "gastos_2025-09-01_a_2025-09-30.csv") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}

	if rr := do(t, srv, http.MethodGet, "/api/users/u1/export?end=2025-09-30", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("end without start status=%d", rr.Code)
	}
}

func TestExportAllWithoutBackendExporter(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/export", "")
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var body ErrorResponse
	decode(t, rr, &body)
	if body.Code != "not_supported" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestStatusForCancelledRequest(t *testing.T) {
	status, code, _ := statusFor(fmt.Errorf("fetch transactions: %w", context.Canceled))
	if status != statusClientClosedRequest || code != "client_closed_request" {
		t.Fatalf("got %d %s", status, code)
	}
}

func TestPreferences(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPut, "/api/users/u1/preferences", `{"active_tab":"analysis","widgets":{"installments":false}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/u1/preferences", "")
	var prefs core.Preferences
	decode(t, rr, &prefs)
	if prefs.ActiveTab != core.TabAnalysis || prefs.Widgets["installments"] || !prefs.Widgets["recent_activity"] {
		t.Fatalf("unexpected preferences %+v", prefs)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/u1/home", "")
	var home services.HomeView
	decode(t, rr, &home)
	if home.Preferences.ActiveTab != core.TabAnalysis || home.Installments != nil {
		t.Fatalf("home ignores saved preferences: %+v", home)
	}

	if rr := do(t, srv, http.MethodPut, "/api/users/u1/preferences", `{"widgets":{"weather":true}}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown widget status=%d", rr.Code)
	}
}

func TestUpstreamFailureMapsToBadGateway(t *testing.T) {
	svc := services.NewDashboardService(failingBackend{memory.New(nil, art)}, services.DashboardOptions{Location: art, Logger: quietLogger()})
	srv := NewServer(":0", svc, Options{Logger: quietLogger()})
	defer srv.rateLimiter.Stop()

	rr := do(t, srv, http.MethodGet, "/api/users/u1/home", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	var body ErrorResponse
	decode(t, rr, &body)
	if body.Code != "upstream_unavailable" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/nothing", "")
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"not_found"`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimit: ratelimit.Config{RequestsPerSecond: 0.1, Burst: 2}})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, srv, http.MethodGet, "/api/users/u1/categories", "").Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	// Probes are never limited
	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz limited: %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:5173"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/users/u1/expenses/1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("status=%d headers=%v", rr.Code, rr.Header())
	}
}
