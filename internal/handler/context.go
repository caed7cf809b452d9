package handler

import (
	"context"
	"net/http"

	"github.com/josh-kwaku/unified-pay/internal/auth"
)

type idempotencyKeyCtx struct{}

// ContextWithIdempotencyKey stores the caller-scoped idempotency key for the
// request. Handlers pass it to the ledger unchanged.
func ContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

func claimsFrom(r *http.Request) (*auth.Claims, *AppError) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims == nil {
		return nil, ErrMissingToken
	}
	return claims, nil
}
