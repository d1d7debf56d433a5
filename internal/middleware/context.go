// Package middleware provides the HTTP middleware chain.
package middleware

import (
	"context"

	"github.com/ftsi/facsite/internal/model"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context by
// the session loader.
type Principal struct {
	User    *model.User
	Session *model.Session
}

// ContextWithPrincipal returns a context carrying the principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the request principal, or nil for anonymous
// requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
