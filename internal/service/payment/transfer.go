package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

// Transfer moves funds between two accounts. Checks that depend on mutable
// state run in the engine after the idempotency key is resolved, so a retry
// always sees the recorded outcome.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (*Outcome, error) {
	log := logging.FromContext(ctx)

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	if err := s.authorizeSender(ctx, req); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	sub, err := ledger.FromRequest(req, req.Memo, nil)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	sub.Limit = s.config.TxLimit

	out, err := s.Execute(ctx, sub)
	if err != nil {
		return out, fmt.Errorf("Transfer: %w", err)
	}

	log.Info("transfer completed",
		"transaction_id", out.Transaction.ID,
		"sender_account", req.From,
		"recipient_account", req.To,
		"amount", req.Amount,
		"sequence", out.Transaction.Sequence,
		"replayed", out.Replayed,
		"attempts", out.Attempts,
	)

	return out, nil
}

// authorizeSender checks that the initiator owns the debited account. An
// account's owner never changes, so the answer is the same on every retry.
func (s *Service) authorizeSender(ctx context.Context, req domain.TransferRequest) error {
	if req.InitiatorID == uuid.Nil {
		return nil
	}
	sender, err := s.accounts.Get(ctx, req.From)
	if err != nil {
		return fmt.Errorf("authorizeSender: %w", err)
	}
	if sender.OwnerID != req.InitiatorID {
		return fmt.Errorf("authorizeSender: %w", domain.ErrNotOwner)
	}
	return nil
}

type RefundRequest struct {
	TransactionID uuid.UUID
	// InitiatorID must own the account the transfer credited.
	InitiatorID    uuid.UUID
	IdempotencyKey string
	Memo           string
}

// Refund lets the recipient of a transfer send it back in full. The refund
// is a reversal, so a transfer can be refunded or reversed once.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (*Outcome, error) {
	if req.TransactionID == uuid.Nil || req.InitiatorID == uuid.Nil {
		return nil, fmt.Errorf("Refund: %w", domain.ErrInvalidRequest)
	}

	t, err := s.GetTransactionForOwner(ctx, req.TransactionID, req.InitiatorID)
	if err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}
	if t.Kind != domain.KindTransfer {
		return nil, fmt.Errorf("Refund: %s: %w", t.Kind, domain.ErrNotReversible)
	}
	if err := s.ownsCredit(ctx, t, req.InitiatorID); err != nil {
		return nil, fmt.Errorf("Refund: %w", err)
	}

	out, err := s.Reverse(ctx, ledger.ReverseRequest{
		TransactionID:  req.TransactionID,
		IdempotencyKey: req.IdempotencyKey,
		Memo:           req.Memo,
	})
	if err != nil {
		return out, fmt.Errorf("Refund: %w", err)
	}
	return out, nil
}

func (s *Service) ownsCredit(ctx context.Context, t *domain.Transaction, ownerID uuid.UUID) error {
	for _, e := range t.Entries {
		if e.Delta <= 0 {
			continue
		}
		acct, err := s.accounts.Get(ctx, e.AccountID)
		if err != nil {
			return fmt.Errorf("ownsCredit: %w", err)
		}
		if acct.OwnerID == ownerID {
			return nil
		}
	}
	return fmt.Errorf("ownsCredit: %w", domain.ErrNotOwner)
}

// Reverse submits a reversal with the same contention retries as a transfer.
func (s *Service) Reverse(ctx context.Context, req ledger.ReverseRequest) (*Outcome, error) {
	if req.TransactionID == uuid.Nil {
		return nil, fmt.Errorf("Reverse: %w", domain.ErrInvalidRequest)
	}

	out, err := s.retry(ctx, req.IdempotencyKey, func(ctx context.Context) (*ledger.Receipt, error) {
		return s.engine.Reverse(ctx, req)
	})
	if err != nil {
		return out, fmt.Errorf("Reverse: %w", err)
	}

	logging.FromContext(ctx).Info("transaction reversed",
		"transaction_id", req.TransactionID,
		"reversal_id", out.Transaction.ID,
		"replayed", out.Replayed,
	)
	return out, nil
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.engine.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// GetTransactionForOwner hides transactions that touch none of the owner's
// accounts.
func (s *Service) GetTransactionForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.engine.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionForOwner: %w", err)
	}

	for _, e := range t.Entries {
		acct, err := s.accounts.Get(ctx, e.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return nil, fmt.Errorf("GetTransactionForOwner: %w", err)
		}
		if acct.OwnerID == ownerID {
			return t, nil
		}
	}
	return nil, fmt.Errorf("GetTransactionForOwner: %w", domain.ErrTransactionNotFound)
}

func (s *Service) ListAccountEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, 0, fmt.Errorf("ListAccountEntries: %w", err)
	}
	entries, total, err := s.engine.Entries(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListAccountEntries: %w", err)
	}
	return entries, total, nil
}

func outcomeOf(r *ledger.Receipt, attempts int) *Outcome {
	if r == nil {
		return nil
	}
	return &Outcome{Transaction: r.Transaction, Replayed: r.Replayed, Attempts: attempts}
}
