package middleware

import (
	"net/http"

	"github.com/josh-kwaku/unified-pay/internal/auth"
	"github.com/josh-kwaku/unified-pay/internal/handler"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

const maxIdempotencyKeyLen = 255

// Idempotency requires an Idempotency-Key header on mutating requests and
// scopes it to the caller, so two users can never collide on a key. The
// ledger records the outcome under the scoped key. Must run after Auth.
func Idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			handler.RespondValidationError(w, []handler.FieldError{
				{Field: "Idempotency-Key", Message: "must be at most 255 characters"},
			})
			return
		}

		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			handler.RespondAppError(w, handler.ErrMissingToken, nil)
			return
		}

		ctx := handler.ContextWithIdempotencyKey(r.Context(), userID.String()+":"+key)
		ctx = logging.With(ctx, "idempotency_key", key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
