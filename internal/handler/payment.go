package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/logging"
	"github.com/josh-kwaku/unified-pay/internal/service/payment"
)

type paymentService interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*payment.Outcome, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetTransactionForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Transaction, error)
	Refund(ctx context.Context, req payment.RefundRequest) (*payment.Outcome, error)
}

type PaymentHandler struct {
	payments paymentService
	token    domain.Token
}

func NewPaymentHandler(payments paymentService, token domain.Token) *PaymentHandler {
	return &PaymentHandler{payments: payments, token: token}
}

type createTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Memo          string `json:"memo"`
}

func (r createTransferRequest) Validate(token domain.Token) (domain.TransferRequest, []FieldError) {
	var (
		req  domain.TransferRequest
		errs []FieldError
		err  error
	)

	if req.From, err = uuid.Parse(r.FromAccountID); err != nil {
		errs = append(errs, FieldError{Field: "from_account_id", Message: "must be a valid uuid"})
	}
	if req.To, err = uuid.Parse(r.ToAccountID); err != nil {
		errs = append(errs, FieldError{Field: "to_account_id", Message: "must be a valid uuid"})
	}
	if req.Amount, err = token.ParseAmount(r.Amount); err != nil {
		errs = append(errs, amountFieldError(err, token))
	}
	if len(r.Memo) > 256 {
		errs = append(errs, FieldError{Field: "memo", Message: "must be at most 256 characters"})
	}

	req.Memo = r.Memo
	return req, errs
}

func amountFieldError(err error, token domain.Token) FieldError {
	if errors.Is(err, domain.ErrInvalidPrecision) {
		return FieldError{Field: "amount", Message: fmt.Sprintf("must have at most %d decimal places", token.Precision)}
	}
	return FieldError{Field: "amount", Message: "must be a positive decimal amount"}
}

func (h *PaymentHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var body createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	req, fields := body.Validate(h.token)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	req.InitiatorID = claims.UserID
	req.IdempotencyKey = IdempotencyKeyFromContext(r.Context())

	outcome, err := h.payments.Transfer(r.Context(), req)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer failed", "error", err, "from_account_id", req.From)
		RespondDomainError(w, err)
		return
	}

	respondTransaction(w, outcome.Transaction, outcome.Replayed)
}

func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrTransactionNotFound, nil)
		return
	}

	var (
		txn *domain.Transaction
		err error
	)
	if claims.IsAdmin() {
		txn, err = h.payments.GetTransaction(r.Context(), id)
	} else {
		txn, err = h.payments.GetTransactionForOwner(r.Context(), id, claims.UserID)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			logging.FromContext(r.Context()).Error("failed to get transaction", "error", err, "transaction_id", id)
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}

// Refund sends a transfer the caller received back to its sender.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	claims, appErr := claimsFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

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
	if len(body.Memo) > 256 {
		RespondValidationError(w, []FieldError{{Field: "memo", Message: "must be at most 256 characters"}})
		return
	}

	outcome, err := h.payments.Refund(r.Context(), payment.RefundRequest{
		TransactionID:  id,
		InitiatorID:    claims.UserID,
		IdempotencyKey: IdempotencyKeyFromContext(r.Context()),
		Memo:           body.Memo,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("refund failed", "error", err, "transaction_id", id)
		RespondDomainError(w, err)
		return
	}

	respondTransaction(w, outcome.Transaction, outcome.Replayed)
}

// respondTransaction answers 201 for a new outcome and 200 for a replay.
func respondTransaction(w http.ResponseWriter, txn *domain.Transaction, replayed bool) {
	status := http.StatusCreated
	if replayed {
		w.Header().Set("X-Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	RespondSuccess(w, status, toTransactionDTO(txn))
}
