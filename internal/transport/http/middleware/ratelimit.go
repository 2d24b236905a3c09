package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"kpieval/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type rateBucket struct {
	count int
	reset time.Time
}

type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	keyFn     RateLimitKeyFunc
	now       func() time.Time
	clients   map[string]*rateBucket
	lastSweep time.Time
}

func withNow(now func() time.Time) RateLimitOption {
	return func(rl *rateLimiter) {
		rl.now = now
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WorkflowRateLimit applies tighter budgets to login attempts (per IP and per
// email) and to workflow mutations (per actor). Other requests pass through.
func WorkflowRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	loginLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	loginByIP := newRateLimiter(loginLimit, window, clientIPKey, opts...)
	loginByEmail := newRateLimiter(loginLimit, window, emailOrIPKey("email"), opts...)
	mutationByActor := newRateLimiter(mutationLimit, window, actorOrIPKey, opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch rateScopeOf(r) {
			case scopeLogin:
				if !loginByIP.enforce(w, r) || !loginByEmail.enforce(w, r) {
					return
				}
			case scopeMutation:
				if !mutationByActor.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func emailOrIPKey(field string) RateLimitKeyFunc {
	return func(r *http.Request) string {
		email := extractJSONField(r, field)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok {
		return "user:" + strconv.FormatInt(user.UserID, 10)
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc, opts ...RateLimitOption) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		now:     time.Now,
		clients: map[string]*rateBucket{},
	}
	for _, opt := range opts {
		opt(rl)
	}
	if rl.keyFn == nil {
		rl.keyFn = actorOrIPKey
	}
	return rl
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	now := rl.now()

	rl.mu.Lock()
	rl.sweep(now)
	bucket, ok := rl.clients[key]
	if !ok || now.After(bucket.reset) {
		bucket = &rateBucket{reset: now.Add(rl.window)}
		rl.clients[key] = bucket
	}
	bucket.count++
	remaining := rl.limit - bucket.count
	resetIn := durationSeconds(bucket.reset.Sub(now))
	overLimit := bucket.count > rl.limit
	rl.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if overLimit {
		w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
		slog.Warn("rate limit exceeded",
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", rl.limit,
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

// sweep drops expired buckets at most once per window. Caller holds mu.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, bucket := range rl.clients {
		if now.After(bucket.reset) {
			delete(rl.clients, key)
		}
	}
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(int(d.Seconds()), 1)
}

func extractJSONField(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type rateScope int

const (
	scopeNone rateScope = iota
	scopeLogin
	scopeMutation
)

var mutationSuffixes = []string{"/request", "/confirm", "/reject", "/cancel", "/submit", "/scores", "/close"}

func rateScopeOf(r *http.Request) rateScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return scopeNone
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	if path == "/auth/login" {
		return scopeLogin
	}
	if !strings.HasPrefix(path, "/plans/") && !strings.HasPrefix(path, "/assignments/") && !strings.HasPrefix(path, "/cycles/") {
		return scopeNone
	}
	for _, suffix := range mutationSuffixes {
		if strings.HasSuffix(path, suffix) {
			return scopeMutation
		}
	}
	return scopeNone
}
