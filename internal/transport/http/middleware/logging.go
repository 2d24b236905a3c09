package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestRecorder receives one observation per finished request.
type RequestRecorder interface {
	Record(status int, duration time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.wroteHeader = true
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Logger writes one structured access record per request and feeds the
// optional recorder.
func Logger(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			elapsed := time.Since(start)

			if recorder != nil {
				recorder.Record(sr.status, elapsed)
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.status,
				"durationMs", elapsed.Milliseconds(),
				"requestId", GetRequestID(r.Context()),
			}
			if user, ok := GetUser(r.Context()); ok {
				attrs = append(attrs, "userId", user.UserID)
			}
			level := slog.LevelInfo
			if sr.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(r.Context(), level, "http request", attrs...)
		})
	}
}
