// Package requestctx threads per-request values (request id and the resolved
// caller) through context.Context.
package requestctx

import (
	"context"

	"kpieval/internal/domain/auth"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// User returns the caller resolved by the auth middleware. ok is false for
// anonymous requests.
func User(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(userKey).(auth.UserContext)
	if !ok || user.UserID == 0 {
		return auth.UserContext{}, false
	}
	return user, true
}
