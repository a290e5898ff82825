package session

import "context"

type identityKey struct{}

// WithIdentity stamps the authenticated user identity onto the context so
// tool handlers can resolve the caller's wallet.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity stamped by WithIdentity, or "" when the
// turn has no authenticated session.
func IdentityFrom(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey{}).(string)
	return identity
}
