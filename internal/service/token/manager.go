// Package token holds administrative token operations. Every operation
// requires a capability issued by the manager's authority.
package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/auth"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

type ledgerEngine interface {
	Submit(ctx context.Context, sub ledger.Submission) (*ledger.Receipt, error)
	Reverse(ctx context.Context, req ledger.ReverseRequest) (*ledger.Receipt, error)
	Supply(ctx context.Context) (*ledger.SupplyReport, error)
}

type accountRegistry interface {
	Freeze(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Unfreeze(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Close(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type Manager struct {
	authority *auth.Authority
	engine    ledgerEngine
	accounts  accountRegistry
}

func NewManager(authority *auth.Authority, engine ledgerEngine, accounts accountRegistry) *Manager {
	return &Manager{authority: authority, engine: engine, accounts: accounts}
}

func (m *Manager) Mint(ctx context.Context, c *auth.Capability, req domain.MintRequest) (*ledger.Receipt, error) {
	r, err := m.submit(ctx, c, req, req.Reason)
	if err != nil {
		return r, fmt.Errorf("Mint: %w", err)
	}
	return r, nil
}

// Burn fails with ErrInsufficientFunds when the account holds less than
// the amount.
func (m *Manager) Burn(ctx context.Context, c *auth.Capability, req domain.BurnRequest) (*ledger.Receipt, error) {
	r, err := m.submit(ctx, c, req, req.Reason)
	if err != nil {
		return r, fmt.Errorf("Burn: %w", err)
	}
	return r, nil
}

func (m *Manager) submit(ctx context.Context, c *auth.Capability, req domain.Request, memo string) (*ledger.Receipt, error) {
	grant, err := ledger.GrantSupply(m.authority, c)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	sub, err := ledger.FromRequest(req, memo, grant)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	r, err := m.engine.Submit(ctx, sub)
	if err != nil {
		return r, fmt.Errorf("submit: %w", err)
	}

	logging.FromContext(ctx).Info("supply changed",
		"transaction_id", r.Transaction.ID,
		"kind", req.Kind(),
		"supply_delta", r.Transaction.SupplyDelta(),
		"holder", grant.Holder(),
		"replayed", r.Replayed,
	)
	return r, nil
}

// Reverse compensates any committed transaction, including mints and
// burns.
func (m *Manager) Reverse(ctx context.Context, c *auth.Capability, req ledger.ReverseRequest) (*ledger.Receipt, error) {
	grant, err := ledger.GrantSupply(m.authority, c)
	if err != nil {
		return nil, fmt.Errorf("Reverse: %w", err)
	}
	req.Grant = grant

	r, err := m.engine.Reverse(ctx, req)
	if err != nil {
		return r, fmt.Errorf("Reverse: %w", err)
	}
	return r, nil
}

func (m *Manager) Freeze(ctx context.Context, c *auth.Capability, accountID uuid.UUID) (*domain.Account, error) {
	if err := c.Verify(m.authority); err != nil {
		return nil, fmt.Errorf("Freeze: %w", err)
	}
	a, err := m.accounts.Freeze(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Freeze: %w", err)
	}
	return a, nil
}

func (m *Manager) Unfreeze(ctx context.Context, c *auth.Capability, accountID uuid.UUID) (*domain.Account, error) {
	if err := c.Verify(m.authority); err != nil {
		return nil, fmt.Errorf("Unfreeze: %w", err)
	}
	a, err := m.accounts.Unfreeze(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Unfreeze: %w", err)
	}
	return a, nil
}

func (m *Manager) Close(ctx context.Context, c *auth.Capability, accountID uuid.UUID) (*domain.Account, error) {
	if err := c.Verify(m.authority); err != nil {
		return nil, fmt.Errorf("Close: %w", err)
	}
	a, err := m.accounts.Close(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Close: %w", err)
	}
	return a, nil
}

func (m *Manager) Supply(ctx context.Context) (*ledger.SupplyReport, error) {
	report, err := m.engine.Supply(ctx)
	if err != nil {
		return nil, fmt.Errorf("Supply: %w", err)
	}
	if !report.Conserved {
		logging.FromContext(ctx).Error("supply not conserved",
			"circulating", report.Circulating,
			"balance_sum", report.BalanceSum,
		)
	}
	return report, nil
}
