package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

type accountGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// ownedAccount loads the account named by the {id} path value. Accounts held
// by another owner are reported as not found unless the caller is an admin.
func ownedAccount(r *http.Request, accounts accountGetter) (*domain.Account, *AppError) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		return nil, appErr
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, ErrAccountNotFound
	}

	account, err := accounts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		logging.FromContext(r.Context()).Error("failed to load account", "error", err, "account_id", id)
		return nil, appErrorFor(err)
	}

	if account.OwnerID != claims.UserID && !claims.IsAdmin() {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}
