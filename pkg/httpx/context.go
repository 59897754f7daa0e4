package httpx

import (
	"context"

	"github.com/aussiebroadwan/supabase/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
)

func contextWithAuth(ctx context.Context, c *jwtx.VerifiedClaims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject())
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// ClaimsFromContext returns the claims Authenticate stored for the request.
func ClaimsFromContext(ctx context.Context) (*jwtx.VerifiedClaims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(*jwtx.VerifiedClaims)
	return c, ok && c != nil
}

// UserIDFromContext returns the authenticated subject, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyUserID).(string)
	return id
}
