package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

type EventSink interface {
	Emit(ctx context.Context, e domain.Event)
}

type Options struct {
	Token  domain.Token
	Policy domain.Policy
	// ApplyTimeout bounds a submission once it no longer follows the
	// caller's context.
	ApplyTimeout time.Duration
	Now          func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Token:        domain.Token{Symbol: "PAY", Precision: 2},
		Policy:       domain.DefaultPolicy(),
		ApplyTimeout: 10 * time.Second,
		Now:          time.Now,
	}
}

// Receipt is the outcome of a submission. Replayed is set when the outcome
// was recorded by an earlier submission under the same idempotency key.
type Receipt struct {
	Transaction *domain.Transaction
	Replayed    bool
}

type Engine struct {
	store Store
	sink  EventSink
	opts  Options
}

func NewEngine(store Store, sink EventSink, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = DefaultOptions().ApplyTimeout
	}
	return &Engine{store: store, sink: sink, opts: opts}
}

func (e *Engine) Token() domain.Token {
	return e.opts.Token
}

// Submit applies a multi-entry transaction atomically. Terminal rejections
// return both the recorded transaction and an error wrapping the cause.
func (e *Engine) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	if sub.IdempotencyKey == "" {
		return nil, fmt.Errorf("Submit: %w", domain.ErrMissingIdempotencyKey)
	}
	if sub.Kind == domain.KindReversal {
		return nil, fmt.Errorf("Submit: reversals go through Reverse: %w", domain.ErrInvalidRequest)
	}
	if sub.supplyAffecting() && !sub.Grant.ok() {
		return nil, fmt.Errorf("Submit: %s: %w", sub.Kind, domain.ErrUnauthorized)
	}

	pending := e.newPending(sub.Kind, sub.IdempotencyKey, sub.Hash(), sub.Memo)
	pending.SupplyAffecting = sub.supplyAffecting()

	r, err := e.execute(ctx, pending, func(context.Context, Tx, *domain.Transaction) (Submission, error) {
		return sub, nil
	})
	if err != nil {
		return r, fmt.Errorf("Submit: %w", err)
	}
	return r, nil
}

type ReverseRequest struct {
	TransactionID uuid.UUID
	// IdempotencyKey defaults to "reversal:<transaction id>".
	IdempotencyKey string
	Memo           string
	// Grant is required to reverse a mint or burn.
	Grant *SupplyGrant
}

// Reverse records a compensating transaction whose entries negate the
// original's. The original moves to reversed in the same commit.
func (e *Engine) Reverse(ctx context.Context, req ReverseRequest) (*Receipt, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = "reversal:" + req.TransactionID.String()
	}

	pending := e.newPending(domain.KindReversal, key, reversalHash(req.TransactionID, req.Memo), req.Memo)
	originalID := req.TransactionID
	pending.ReversalOf = &originalID

	r, err := e.execute(ctx, pending, func(ctx context.Context, tx Tx, pending *domain.Transaction) (Submission, error) {
		original, err := tx.LockTransaction(ctx, originalID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return Submission{}, domain.ErrTransactionNotFound
			}
			return Submission{}, err
		}

		switch {
		case original.Kind == domain.KindReversal:
			return Submission{}, domain.ErrNotReversible
		case original.State == domain.StateReversed:
			return Submission{}, domain.ErrAlreadyReversed
		case original.State != domain.StateCommitted:
			return Submission{}, domain.ErrNotCommitted
		case original.SupplyAffecting && !req.Grant.ok():
			return Submission{}, domain.ErrUnauthorized
		}

		postings := make([]domain.Posting, len(original.Entries))
		for i, entry := range original.Entries {
			postings[i] = domain.Posting{AccountID: entry.AccountID, Delta: -entry.Delta}
		}
		pending.SupplyAffecting = original.SupplyAffecting

		return Submission{
			Kind:           domain.KindReversal,
			Postings:       postings,
			IdempotencyKey: key,
			Memo:           req.Memo,
			Grant:          req.Grant,
			reverses:       original,
		}, nil
	})
	if err != nil {
		return r, fmt.Errorf("Reverse: %w", err)
	}
	return r, nil
}

func (e *Engine) newPending(kind domain.TransactionKind, key, hash, memo string) *domain.Transaction {
	return &domain.Transaction{
		ID:             uuid.New(),
		IdempotencyKey: key,
		RequestHash:    hash,
		Kind:           kind,
		State:          domain.StatePending,
		Memo:           memo,
		CreatedAt:      e.opts.Now().UTC(),
	}
}

type buildFunc func(ctx context.Context, tx Tx, pending *domain.Transaction) (Submission, error)

func (e *Engine) execute(ctx context.Context, pending *domain.Transaction, build buildFunc) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	// Past this point the caller can only abandon the attempt before it
	// starts applying entries; the store work itself is detached.
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ApplyTimeout)
	defer cancel()

	tx, err := e.store.Begin(work)
	if err != nil {
		return nil, fmt.Errorf("execute: begin: %w", storageFailure(err))
	}
	defer tx.Rollback()

	existing, err := tx.ReserveKey(work, pending)
	if err != nil {
		return nil, fmt.Errorf("execute: reserve key: %w", storageFailure(err))
	}
	if existing != nil {
		return replay(existing, pending.RequestHash)
	}

	sub, err := build(work, tx, pending)
	if err == nil {
		err = sub.checkShape()
	}
	var locked map[uuid.UUID]*domain.Account
	if err == nil {
		locked, err = tx.LockAccounts(work, sub.accountIDs())
	}
	if err == nil {
		err = e.checkPostings(sub, locked)
	}
	if err != nil {
		if domain.ReasonFor(err) == domain.ReasonNone {
			return nil, fmt.Errorf("execute: %w", storageFailure(err))
		}
		return e.reject(ctx, work, tx, pending, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("execute: abandoned before apply: %w", err)
	}

	if err := e.apply(work, tx, pending, sub, locked); err != nil {
		return nil, fmt.Errorf("execute: %w", storageFailure(err))
	}

	e.emit(ctx, pending)
	logging.FromContext(ctx).Info("transaction committed",
		"transaction_id", pending.ID,
		"kind", pending.Kind,
		"sequence", pending.Sequence,
		"entries", len(pending.Entries),
	)
	return &Receipt{Transaction: pending}, nil
}

func (e *Engine) checkPostings(sub Submission, locked map[uuid.UUID]*domain.Account) error {
	for _, p := range sub.Postings {
		acct, ok := locked[p.AccountID]
		if !ok {
			return fmt.Errorf("checkPostings: %s: %w", p.AccountID, domain.ErrAccountNotFound)
		}
		if err := e.opts.Policy.CheckPosting(acct, p.Delta); err != nil {
			return fmt.Errorf("checkPostings: %s: %w", p.AccountID, err)
		}
		next, ok := addInt64(acct.Balance, p.Delta)
		if !ok {
			return fmt.Errorf("checkPostings: %s: %w", p.AccountID, domain.ErrSupplyOverflow)
		}
		if next < 0 {
			return fmt.Errorf("checkPostings: %s: %w", p.AccountID, domain.ErrInsufficientFunds)
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, tx Tx, pending *domain.Transaction, sub Submission, locked map[uuid.UUID]*domain.Account) error {
	balances := make(map[uuid.UUID]int64, len(sub.Postings))
	var net int64
	for _, p := range sub.Postings {
		acct := locked[p.AccountID]
		balances[p.AccountID] = acct.Balance + p.Delta
		net += p.Delta
		if err := tx.UpdateBalance(ctx, acct.ID, acct.Balance+p.Delta, acct.Version); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}

	if sub.supplyAffecting() && net != 0 {
		minted, burned := net, int64(0)
		if net < 0 {
			minted, burned = 0, -net
		}
		if err := tx.AdjustSupply(ctx, minted, burned); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}

	txSeq, firstEntry, err := tx.NextSequence(ctx, len(sub.Postings))
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	now := e.opts.Now().UTC()
	entries := make([]domain.LedgerEntry, len(sub.Postings))
	for i, p := range sub.Postings {
		entries[i] = domain.LedgerEntry{
			ID:            uuid.New(),
			TransactionID: pending.ID,
			AccountID:     p.AccountID,
			Delta:         p.Delta,
			BalanceAfter:  balances[p.AccountID],
			Sequence:      firstEntry + int64(i),
			CreatedAt:     now,
		}
	}
	if err := tx.InsertEntries(ctx, entries); err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	pending.State = domain.StateCommitted
	pending.Sequence = txSeq
	pending.CommittedAt = &now
	pending.Entries = entries
	if err := tx.Finalize(ctx, pending); err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	if pending.ReversalOf != nil {
		if err := tx.MarkReversed(ctx, *pending.ReversalOf, pending.ID); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply: commit: %w", err)
	}
	return nil
}

// reject records a terminal rejection under the reserved key so that a
// retry replays it. Nothing but the rejected transaction is persisted.
func (e *Engine) reject(ctx, work context.Context, tx Tx, pending *domain.Transaction, cause error) (*Receipt, error) {
	if err := tx.Discard(work); err != nil {
		return nil, fmt.Errorf("reject: %w", storageFailure(err))
	}

	pending.State = domain.StateRejected
	pending.ReasonCode = domain.ReasonFor(cause)
	pending.Sequence = 0
	pending.Entries = nil
	if err := tx.Finalize(work, pending); err != nil {
		return nil, fmt.Errorf("reject: %w", storageFailure(err))
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("reject: commit: %w", storageFailure(err))
	}

	e.emit(ctx, pending)
	logging.FromContext(ctx).Warn("transaction rejected",
		"transaction_id", pending.ID,
		"kind", pending.Kind,
		"reason", pending.ReasonCode,
	)
	return &Receipt{Transaction: pending}, cause
}

func replay(existing *domain.Transaction, hash string) (*Receipt, error) {
	if existing.RequestHash != hash {
		return nil, fmt.Errorf("replay: key %q: %w", existing.IdempotencyKey, domain.ErrIdempotencyConflict)
	}
	r := &Receipt{Transaction: existing, Replayed: true}
	if existing.State == domain.StateRejected {
		return r, fmt.Errorf("replay: %w", domain.ErrorForReason(existing.ReasonCode))
	}
	return r, nil
}

func (e *Engine) emit(ctx context.Context, t *domain.Transaction) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(ctx, domain.NewEvent(t))
}

// storageFailure marks errors that are neither business rejections nor
// lock contention as durability failures.
func storageFailure(err error) error {
	if errors.Is(err, domain.ErrConcurrentModification) ||
		errors.Is(err, domain.ErrStorageUnavailable) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func reversalHash(id uuid.UUID, memo string) string {
	return Submission{
		Kind:     domain.KindReversal,
		Memo:     memo,
		Postings: []domain.Posting{{AccountID: id}},
	}.Hash()
}
