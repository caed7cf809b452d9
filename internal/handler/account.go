package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type accountService interface {
	Open(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)
}

type entryLister interface {
	ListAccountEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type AccountHandler struct {
	accounts accountService
	entries  entryLister
	token    domain.Token
}

func NewAccountHandler(accounts accountService, entries entryLister, token domain.Token) *AccountHandler {
	return &AccountHandler{accounts: accounts, entries: entries, token: token}
}

func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	account, err := h.accounts.Open(r.Context(), claims.UserID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to open account", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toAccountDTO(account, h.token))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	accounts, err := h.accounts.ListByOwner(r.Context(), claims.UserID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i], h.token)
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, appErr := ownedAccount(r, h.accounts)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(account, h.token))
}

type entriesPage struct {
	Entries []entryDTO `json:"entries"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

func (h *AccountHandler) Entries(w http.ResponseWriter, r *http.Request) {
	account, appErr := ownedAccount(r, h.accounts)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset, fields := parsePage(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entries, total, err := h.entries.ListAccountEntries(r.Context(), account.ID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list entries", "error", err, "account_id", account.ID)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, entriesPage{
		Entries: toEntryDTOs(entries),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

func parsePage(r *http.Request) (int, int, []FieldError) {
	var errs []FieldError
	limit, offset := defaultPageLimit, 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			errs = append(errs, FieldError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxPageLimit)})
		} else {
			limit = n
		}
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "offset", Message: "must be 0 or greater"})
		} else {
			offset = n
		}
	}

	return limit, offset, errs
}
