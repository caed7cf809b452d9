package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

type accountDTO struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Type           string    `json:"type"`
	Balance        int64     `json:"balance"`
	BalanceDisplay string    `json:"balance_display"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAccountDTO(a *domain.Account, token domain.Token) accountDTO {
	return accountDTO{
		ID:             a.ID,
		OwnerID:        a.OwnerID,
		Type:           string(a.Type),
		Balance:        a.Balance,
		BalanceDisplay: token.Format(a.Balance),
		Status:         string(a.Status),
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type entryDTO struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Delta         int64     `json:"delta"`
	BalanceAfter  int64     `json:"balance_after"`
	Sequence      int64     `json:"sequence"`
	CreatedAt     time.Time `json:"created_at"`
}

func toEntryDTOs(entries []domain.LedgerEntry) []entryDTO {
	dtos := make([]entryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = entryDTO{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID,
			Delta:         e.Delta,
			BalanceAfter:  e.BalanceAfter,
			Sequence:      e.Sequence,
			CreatedAt:     e.CreatedAt,
		}
	}
	return dtos
}

type transactionDTO struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	State       string     `json:"state"`
	ReasonCode  string     `json:"reason_code,omitempty"`
	Memo        string     `json:"memo,omitempty"`
	Sequence    int64      `json:"sequence"`
	ReversalOf  *uuid.UUID `json:"reversal_of,omitempty"`
	ReversedBy  *uuid.UUID `json:"reversed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CommittedAt *time.Time `json:"committed_at"`
	Entries     []entryDTO `json:"entries"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:          t.ID,
		Kind:        string(t.Kind),
		State:       string(t.State),
		ReasonCode:  string(t.ReasonCode),
		Memo:        t.Memo,
		Sequence:    t.Sequence,
		ReversalOf:  t.ReversalOf,
		ReversedBy:  t.ReversedBy,
		CreatedAt:   t.CreatedAt,
		CommittedAt: t.CommittedAt,
		Entries:     toEntryDTOs(t.Entries),
	}
}
