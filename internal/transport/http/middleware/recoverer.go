package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"kpieval/internal/transport/http/api"
)

func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"requestId", GetRequestID(r.Context()),
				"stack", string(debug.Stack()),
			)
			api.Fail(w, http.StatusInternalServerError, "internal_error", "internal error", GetRequestID(r.Context()))
		}()
		next.ServeHTTP(w, r)
	})
}
