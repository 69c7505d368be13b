package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowPerClient(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 1, Burst: 2})
	defer rl.Stop()
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("third request within the same instant should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("clients must not share a bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("a token should refill after one second")
	}
	if rl.ActiveClients() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", rl.ActiveClients())
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 1, Burst: 1, IdleTimeout: time.Minute})
	defer rl.Stop()
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(2 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected 1 client left, got %d", rl.ActiveClients())
	}
}

func TestNewLimiterDefaults(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	if rl.burst != 30 || float64(rl.limit) != 5 {
		t.Fatalf("defaults not applied: limit=%v burst=%d", rl.limit, rl.burst)
	}
	rl.Stop() // second Stop must not panic
}

func TestMiddleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 0.5, Burst: 1})
	defer rl.Stop()
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	var limited int
	h := rl.Middleware(
		func(r *http.Request) string { return r.RemoteAddr },
		func(w http.ResponseWriter, r *http.Request) {
			limited++
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := []int{}
	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
		last = rr
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if limited != 1 {
		t.Fatalf("onLimit called %d times", limited)
	}
	if got := last.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
}
