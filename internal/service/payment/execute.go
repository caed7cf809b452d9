package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

// Execute submits to the engine, retrying lock contention with exponential
// backoff. If the submission deadline passes first the caller gets
// ErrSubmissionTimeout; an attempt already applying still finishes and is
// recorded under its idempotency key.
func (s *Service) Execute(ctx context.Context, sub ledger.Submission) (*Outcome, error) {
	out, err := s.retry(ctx, sub.IdempotencyKey, func(ctx context.Context) (*ledger.Receipt, error) {
		return s.engine.Submit(ctx, sub)
	})
	if err != nil {
		return out, fmt.Errorf("Execute: %w", err)
	}
	return out, nil
}

type attemptFunc func(ctx context.Context) (*ledger.Receipt, error)

// retry runs attempt under the submission deadline, backing off on lock
// contention.
func (s *Service) retry(ctx context.Context, key string, attempt attemptFunc) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SubmitTimeout)
	defer cancel()

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.attemptWithBackoff(ctx, key, attempt)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		logging.FromContext(ctx).Warn("submission abandoned",
			"idempotency_key", key,
			"error", ctx.Err(),
		)
		return nil, fmt.Errorf("retry: %w", deadlineError(ctx.Err()))
	}
}

func (s *Service) attemptWithBackoff(ctx context.Context, key string, attempt attemptFunc) (*Outcome, error) {
	log := logging.FromContext(ctx)

	var (
		receipt  *ledger.Receipt
		attempts int
	)
	op := func() error {
		attempts++
		r, err := attempt(ctx)
		receipt = r
		if err == nil {
			return nil
		}
		if domain.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("retrying submission",
			"idempotency_key", key,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.config.MaxRetries), ctx), notify)
	if err == nil {
		return outcomeOf(receipt, attempts), nil
	}

	switch {
	case domain.IsTransient(err):
		return nil, fmt.Errorf("attemptWithBackoff: %d attempts: %w: %w", attempts, domain.ErrRetryExhausted, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("attemptWithBackoff: %w", deadlineError(err))
	default:
		return outcomeOf(receipt, attempts), fmt.Errorf("attemptWithBackoff: %w", err)
	}
}

func (s *Service) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialInterval
	b.MaxInterval = s.config.MaxInterval
	b.MaxElapsedTime = 0
	return b
}

func deadlineError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrSubmissionTimeout, err)
	}
	return err
}
