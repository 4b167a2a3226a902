// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and the
// package stays free of net/http so domain code never imports transport.
package requestcontext

import (
	"context"

	"vaultdao/internal/domain"
)

type (
	requestIDKey struct{}
	callerKey    struct{}
)

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation ID, or "" when unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithCaller stores the authenticated caller address.
func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the authenticated caller address, or "" when the request was
// not authenticated.
func Caller(ctx context.Context) domain.Address {
	v, _ := ctx.Value(callerKey{}).(domain.Address)
	return v
}
