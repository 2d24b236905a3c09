package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"kpieval/internal/domain/auth"
	"kpieval/internal/requestctx"
	"kpieval/internal/transport/http/api"
)

// Auth resolves the bearer token into an auth.UserContext. Requests without a
// valid token continue anonymously; handlers decide whether that is allowed.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				slog.Debug("bearer token rejected", "err", err, "requestId", GetRequestID(r.Context()))
				next.ServeHTTP(w, r)
				return
			}
			ctx := requestctx.WithUser(r.Context(), claims.User())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	return requestctx.User(ctx)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
