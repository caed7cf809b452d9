package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/auth"
)

// SupplyGrant permits a submission to change total supply. It can only be
// obtained from a verified capability.
type SupplyGrant struct {
	holder uuid.UUID
	valid  bool
}

func GrantSupply(authority *auth.Authority, c *auth.Capability) (*SupplyGrant, error) {
	if err := c.Verify(authority); err != nil {
		return nil, fmt.Errorf("GrantSupply: %w", err)
	}
	return &SupplyGrant{holder: c.Holder(), valid: true}, nil
}

func (g *SupplyGrant) ok() bool {
	return g != nil && g.valid
}

func (g *SupplyGrant) Holder() uuid.UUID {
	if g == nil {
		return uuid.Nil
	}
	return g.holder
}
