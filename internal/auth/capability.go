package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

// Capability proves elevated authorization for supply-affecting and
// administrative operations. Only an Authority can produce a valid one.
type Capability struct {
	holder   uuid.UUID
	issuedAt time.Time
	issuer   *Authority
}

func (c *Capability) Holder() uuid.UUID {
	return c.holder
}

func (c *Capability) IssuedAt() time.Time {
	return c.issuedAt
}

// Verify fails for nil, zero-value and foreign capabilities.
func (c *Capability) Verify(a *Authority) error {
	if c == nil || c.issuer == nil || c.issuer != a {
		return fmt.Errorf("Capability.Verify: %w", domain.ErrUnauthorized)
	}
	return nil
}

type Authority struct {
	id uuid.UUID
}

func NewAuthority() *Authority {
	return &Authority{id: uuid.New()}
}

// Grant issues a capability to an authenticated admin.
func (a *Authority) Grant(claims *Claims) (*Capability, error) {
	if claims == nil || !claims.IsAdmin() {
		return nil, fmt.Errorf("Grant: %w", domain.ErrUnauthorized)
	}
	return &Capability{
		holder:   claims.UserID,
		issuedAt: time.Now().UTC(),
		issuer:   a,
	}, nil
}
