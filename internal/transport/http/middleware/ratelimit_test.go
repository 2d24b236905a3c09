package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kpieval/internal/domain/auth"
	"kpieval/internal/requestctx"
)

func noContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitUsesUserKeyBeforeIPFallback(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())
	userCtx := requestctx.WithUser(context.Background(), auth.UserContext{UserID: 42})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/plans/7/confirm", nil).WithContext(userCtx)
	first.RemoteAddr = "198.51.100.11:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/plans/7/confirm", nil).WithContext(userCtx)
	second.RemoteAddr = "198.51.100.12:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by user key, got %d", secondRec.Code)
	}
	if secondRec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitWindowReset(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limited := RateLimit(1, time.Minute, withNow(func() time.Time { return now }))(noContent())

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.RemoteAddr = "192.0.2.20:1111"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(); code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected throttle, got %d", code)
	}
	now = now.Add(61 * time.Second)
	if code := send(); code != http.StatusNoContent {
		t.Fatalf("expected pass after window reset, got %d", code)
	}
}

func TestWorkflowRateLimitScopes(t *testing.T) {
	limited := WorkflowRateLimit(4, time.Minute)(noContent())
	userCtx := requestctx.WithUser(context.Background(), auth.UserContext{UserID: 5})

	// Reads are never throttled.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/1", nil).WithContext(userCtx)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("read %d throttled", i)
		}
	}

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/1/request", nil).WithContext(userCtx)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected mutation codes %v", codes)
	}

	login := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"`+email+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.10:4444"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := login("a@example.com"); code != http.StatusNoContent {
		t.Fatalf("expected first login to pass, got %d", code)
	}
	if code := login("b@example.com"); code != http.StatusTooManyRequests {
		t.Fatalf("expected login throttled by ip, got %d", code)
	}
}

func TestRateScopeOf(t *testing.T) {
	cases := map[string]rateScope{
		"POST /api/v1/auth/login":             scopeLogin,
		"POST /api/v1/assignments/3/submit":   scopeMutation,
		"PUT /api/v1/assignments/3/scores":    scopeMutation,
		"POST /api/v1/cycles/abc/close":       scopeMutation,
		"POST /api/v1/cycles":                 scopeNone,
		"GET /api/v1/plans/3/events":          scopeNone,
		"POST /api/v1/notifications/read-all": scopeNone,
	}
	for line, want := range cases {
		method, path, _ := strings.Cut(line, " ")
		req := httptest.NewRequest(method, path, nil)
		if got := rateScopeOf(req); got != want {
			t.Fatalf("%s: expected %d, got %d", line, want, got)
		}
	}
}
