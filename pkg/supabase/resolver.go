package supabase

import "context"

// TokenResolver supplies the end-user access token for the current call.
// An empty token means "anonymous": the anon key is sent as bearer instead.
type TokenResolver interface {
	Token(ctx context.Context) string
}

// TokenResolverFunc adapts a function to TokenResolver.
type TokenResolverFunc func(ctx context.Context) string

func (f TokenResolverFunc) Token(ctx context.Context) string { return f(ctx) }

// AdminTokenResolver supplies the bearer for admin endpoints and RPC calls.
type AdminTokenResolver interface {
	AdminToken(ctx context.Context) string
}

// AdminTokenResolverFunc adapts a function to AdminTokenResolver.
type AdminTokenResolverFunc func(ctx context.Context) string

func (f AdminTokenResolverFunc) AdminToken(ctx context.Context) string { return f(ctx) }

// StaticToken always resolves to token.
func StaticToken(token string) TokenResolver {
	return TokenResolverFunc(func(context.Context) string { return token })
}

type accessTokenKey struct{}

// WithAccessToken attaches a user's access token to ctx. The default
// TokenResolver reads it back, so request handlers can forward the caller's
// identity without sharing a resolver between requests.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the token stored by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// ContextTokenResolver resolves the token stored by WithAccessToken.
var ContextTokenResolver TokenResolver = TokenResolverFunc(AccessTokenFromContext)
