package utils

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/voicebill_backend/appctx"
)

var (
	ContextKeyOwnerId         = appctx.ContextKeyOwnerId
	ContextKeyCorrelationId   = appctx.ContextKeyCorrelationId
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetOwnerIdFromContext(ctx context.Context) (string, bool) {
	return appctx.Get[string](ctx, ContextKeyOwnerId)
}

// RequireOwnerId returns ErrNotAuthenticated when the context carries no owner.
func RequireOwnerId(ctx context.Context) (string, error) {
	ownerId, ok := GetOwnerIdFromContext(ctx)
	if !ok || strings.TrimSpace(ownerId) == "" {
		return "", ErrNotAuthenticated
	}
	return ownerId, nil
}

func SetOwnerIdInContext(ctx context.Context, ownerId string) context.Context {
	return appctx.Set(ctx, ContextKeyOwnerId, ownerId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.Get[string](ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// CorrelationIdFromContextOrNew never returns an empty id.
func CorrelationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}
