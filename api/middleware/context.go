package middleware

import "context"

type principalKey struct{}

// principal is the authenticated caller as seen by handlers.
type principal struct {
	userID   string
	role     string
	accessID string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, edit func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	edit(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return principalFrom(ctx).role }

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string { return principalFrom(ctx).accessID }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

// WithRole lets controller tests skip token minting.
func WithRole(ctx context.Context, role string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = role })
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.accessID = accessID })
}
