// Package appctx holds the context keys shared by config and utils, which cannot import each other.
package appctx

import "context"

type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	// ContextKeyOwnerId is the tenant boundary. Every client and document query is scoped by it.
	ContextKeyOwnerId       = ContextKey("OwnerId")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeySkipTenantScope disables the tenant guard for background jobs that work across
	// owners, such as the outbox dispatcher.
	ContextKeySkipTenantScope = ContextKey("SkipTenantScope")
)

// Get returns the value stored under key when it has type T.
func Get[T any](ctx context.Context, key ContextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
