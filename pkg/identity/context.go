package identity

import (
	"context"
	"errors"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrNoPrincipal is returned when a context carries no authenticated caller.
var ErrNoPrincipal = errors.New("no principal in context")

// WithPrincipal attaches the authenticated caller to the context.
func WithPrincipal(ctx context.Context, p contracts.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller from the context.
func PrincipalFromContext(ctx context.Context) (contracts.Principal, error) {
	p, ok := ctx.Value(principalKey).(contracts.Principal)
	if !ok || p == "" {
		return "", ErrNoPrincipal
	}
	return p, nil
}
