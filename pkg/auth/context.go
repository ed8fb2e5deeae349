package auth

import (
	"context"
)

type contextKey string

// ContextKeyClaims is the context key for verified token claims
const ContextKeyClaims contextKey = "claims"

// WithClaims adds verified claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ClaimsFromContext retrieves verified claims from the context
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*Claims)
	return claims, ok && claims != nil
}

// TenantFromContext returns the tenant of the authenticated caller
func TenantFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.TenantID, true
}
