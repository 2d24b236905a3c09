package middleware

import (
	"net/http"

	"kpieval/internal/transport/http/api"
)

// RequireAdmin guards administrative routes. Services check again, so this
// only keeps non-admin traffic away from admin handlers early.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", GetRequestID(r.Context()))
			return
		}
		if !user.IsAdmin {
			api.Fail(w, http.StatusForbidden, "forbidden", "admin only", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
