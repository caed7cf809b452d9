package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/auth"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

type tokenManager interface {
	Mint(ctx context.Context, c *auth.Capability, req domain.MintRequest) (*ledger.Receipt, error)
	Burn(ctx context.Context, c *auth.Capability, req domain.BurnRequest) (*ledger.Receipt, error)
	Reverse(ctx context.Context, c *auth.Capability, req ledger.ReverseRequest) (*ledger.Receipt, error)
	Freeze(ctx context.Context, c *auth.Capability, accountID uuid.UUID) (*domain.Account, error)
	Unfreeze(ctx context.Context, c *auth.Capability, accountID uuid.UUID) (*domain.Account, error)
	Close(ctx context.Context, c *auth.Capability, accountID uuid.UUID) (*domain.Account, error)
	Supply(ctx context.Context) (*ledger.SupplyReport, error)
}

type systemAccountOpener interface {
	OpenSystem(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
}

// AdminHandler serves supply and account administration. Every route
// expects a capability placed in the request context by the admin
// middleware.
type AdminHandler struct {
	tokens   tokenManager
	accounts systemAccountOpener
	token    domain.Token
}

func NewAdminHandler(tokens tokenManager, accounts systemAccountOpener, token domain.Token) *AdminHandler {
	return &AdminHandler{tokens: tokens, accounts: accounts, token: token}
}

type supplyChangeRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

func (r supplyChangeRequest) Validate(token domain.Token) (uuid.UUID, int64, []FieldError) {
	var errs []FieldError

	id, err := uuid.Parse(r.AccountID)
	if err != nil {
		errs = append(errs, FieldError{Field: "account_id", Message: "must be a valid uuid"})
	}
	amount, err := token.ParseAmount(r.Amount)
	if err != nil {
		errs = append(errs, amountFieldError(err, token))
	}
	if r.Reason == "" {
		errs = append(errs, FieldError{Field: "reason", Message: "required"})
	}

	return id, amount, errs
}

func (h *AdminHandler) Mint(w http.ResponseWriter, r *http.Request) {
	h.changeSupply(w, r, func(ctx context.Context, c *auth.Capability, id uuid.UUID, amount int64, reason, key string) (*ledger.Receipt, error) {
		return h.tokens.Mint(ctx, c, domain.MintRequest{AccountID: id, Amount: amount, Reason: reason, IdempotencyKey: key})
	})
}

func (h *AdminHandler) Burn(w http.ResponseWriter, r *http.Request) {
	h.changeSupply(w, r, func(ctx context.Context, c *auth.Capability, id uuid.UUID, amount int64, reason, key string) (*ledger.Receipt, error) {
		return h.tokens.Burn(ctx, c, domain.BurnRequest{AccountID: id, Amount: amount, Reason: reason, IdempotencyKey: key})
	})
}

type supplyFunc func(ctx context.Context, c *auth.Capability, id uuid.UUID, amount int64, reason, key string) (*ledger.Receipt, error)

func (h *AdminHandler) changeSupply(w http.ResponseWriter, r *http.Request, apply supplyFunc) {
	var body supplyChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	id, amount, fields := body.Validate(h.token)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	c := auth.CapabilityFromContext(r.Context())
	receipt, err := apply(r.Context(), c, id, amount, body.Reason, IdempotencyKeyFromContext(r.Context()))
	if err != nil {
		logging.FromContext(r.Context()).Warn("supply change failed", "error", err, "account_id", id)
		RespondDomainError(w, err)
		return
	}

	respondTransaction(w, receipt.Transaction, receipt.Replayed)
}

type reverseRequest struct {
	Memo string `json:"memo"`
}

func (h *AdminHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrTransactionNotFound, nil)
		return
	}

	var body reverseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	receipt, err := h.tokens.Reverse(r.Context(), auth.CapabilityFromContext(r.Context()), ledger.ReverseRequest{
		TransactionID:  id,
		IdempotencyKey: IdempotencyKeyFromContext(r.Context()),
		Memo:           body.Memo,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("reversal failed", "error", err, "transaction_id", id)
		RespondDomainError(w, err)
		return
	}

	respondTransaction(w, receipt.Transaction, receipt.Replayed)
}

func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tokens.Freeze)
}

func (h *AdminHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tokens.Unfreeze)
}

func (h *AdminHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.tokens.Close)
}

func (h *AdminHandler) changeStatus(w http.ResponseWriter, r *http.Request, change func(context.Context, *auth.Capability, uuid.UUID) (*domain.Account, error)) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	account, err := change(r.Context(), auth.CapabilityFromContext(r.Context()), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account status change failed", "error", err, "account_id", id)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account, h.token))
}

// OpenSystem opens a system account held by the calling admin, e.g. a
// treasury that receives minted supply.
func (h *AdminHandler) OpenSystem(w http.ResponseWriter, r *http.Request) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	account, err := h.accounts.OpenSystem(r.Context(), claims.UserID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to open system account", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toAccountDTO(account, h.token))
}

type supplyDTO struct {
	Symbol             string `json:"symbol"`
	Precision          int32  `json:"precision"`
	Minted             int64  `json:"minted"`
	Burned             int64  `json:"burned"`
	Circulating        int64  `json:"circulating"`
	CirculatingDisplay string `json:"circulating_display"`
	BalanceSum         int64  `json:"balance_sum"`
	Conserved          bool   `json:"conserved"`
}

func (h *AdminHandler) Supply(w http.ResponseWriter, r *http.Request) {
	report, err := h.tokens.Supply(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to read supply", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, supplyDTO{
		Symbol:             report.Token.Symbol,
		Precision:          report.Token.Precision,
		Minted:             report.Token.Minted,
		Burned:             report.Token.Burned,
		Circulating:        report.Circulating,
		CirculatingDisplay: report.Token.Format(report.Circulating),
		BalanceSum:         report.BalanceSum,
		Conserved:          report.Conserved,
	})
}
