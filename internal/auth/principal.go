// Package auth authenticates API callers with Redis-backed bearer tokens and
// exposes the resulting principal to handlers.
package auth

import (
	"context"

	"github.com/fabline/fabline/internal/users"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string     `json:"userId"`
	Role   users.Role `json:"role"`
}

// IsStaff reports whether the caller holds a back-office role.
func (p Principal) IsStaff() bool {
	return p.Role.IsStaff()
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.UserID != ""
}
