package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: make(map[string]int64)}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func webhookRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{}`))
	req.RemoteAddr = ip + ":5678"
	return req
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("webhook", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, webhookRequest("1.2.3.4"))
		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i >= 2 && rec.Code != http.StatusTooManyRequests:
			t.Fatalf("expected 429 after limit, got %d", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest("5.6.7.8"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other ips keep their own window, got %d", rec.Code)
	}
	if _, ok := store.counts["webhook:1.2.3.4"]; !ok {
		t.Fatalf("expected scope keyed by policy and ip, got %v", store.counts)
	}
}

func TestRateLimitObserveOnlyServesOverLimit(t *testing.T) {
	store := newFakeRateStore()
	var flagged []bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flagged = append(flagged, RateLimitedFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(NewRateLimitPolicy("webhook", time.Minute, 1).ObserveOnly(), store, nil)(next)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, webhookRequest("1.2.3.4"))
		if rec.Code != http.StatusOK {
			t.Fatalf("observe-only policy rejected request %d with %d", i+1, rec.Code)
		}
	}
	if len(flagged) != 3 || flagged[0] || !flagged[1] || !flagged[2] {
		t.Fatalf("expected only over-limit requests flagged, got %v", flagged)
	}
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	handler := RateLimit(NewRateLimitPolicy("webhook", time.Minute, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest("1.2.3.4"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request through on limiter error, got %d", rec.Code)
	}
}

func TestRateLimitDisabledPolicy(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("webhook", 0, 0), newFakeRateStore(), nil)(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, webhookRequest("1.2.3.4"))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled policy should never block, got %d", rec.Code)
		}
	}
}

func TestClientIPPrefersForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote addr host, got %s", got)
	}
	req.Header.Set("X-Real-IP", "9.9.9.9")
	if got := clientIP(req); got != "9.9.9.9" {
		t.Fatalf("expected x-real-ip, got %s", got)
	}
	req.Header.Set("X-Forwarded-For", " 8.8.8.8 , 10.0.0.2")
	if got := clientIP(req); got != "8.8.8.8" {
		t.Fatalf("expected first forwarded ip, got %s", got)
	}
}
