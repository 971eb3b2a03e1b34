package middleware

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
}

func (p Principal) Anonymous() bool {
	return p.UserID == ""
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller attached by Auth or OptionalAuth.
// Anonymous checkouts get the zero Principal.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

func UserIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).UserID
}
