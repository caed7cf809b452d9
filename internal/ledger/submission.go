package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

type Submission struct {
	Kind           domain.TransactionKind
	Postings       []domain.Posting
	IdempotencyKey string
	Memo           string
	Grant          *SupplyGrant
	// Limit caps each debit posting, in minor units. Zero disables it. It is
	// policy rather than payload, so it does not take part in Hash.
	Limit int64

	reverses *domain.Transaction
}

// FromRequest converts a validated request variant into a submission.
func FromRequest(req domain.Request, memo string, grant *SupplyGrant) (Submission, error) {
	if err := req.Validate(); err != nil {
		return Submission{}, fmt.Errorf("FromRequest: %w", err)
	}
	return Submission{
		Kind:           req.Kind(),
		Postings:       req.Postings(),
		IdempotencyKey: req.Key(),
		Memo:           memo,
		Grant:          grant,
	}, nil
}

func (s Submission) supplyAffecting() bool {
	switch s.Kind {
	case domain.KindMint, domain.KindBurn:
		return true
	case domain.KindReversal:
		return s.reverses != nil && s.reverses.SupplyAffecting
	default:
		return false
	}
}

// Hash fingerprints the payload so a reused key with a different request
// can be told apart from a retry.
func (s Submission) Hash() string {
	h := sha256.New()
	h.Write([]byte(s.Kind))
	h.Write([]byte{0})
	h.Write([]byte(s.Memo))
	h.Write([]byte{0})
	var buf [8]byte
	for _, p := range s.Postings {
		h.Write(p.AccountID[:])
		binary.BigEndian.PutUint64(buf[:], uint64(p.Delta))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// checkShape validates everything that does not need stored state.
func (s Submission) checkShape() error {
	if len(s.Postings) == 0 {
		return fmt.Errorf("checkShape: no postings: %w", domain.ErrInvalidRequest)
	}

	seen := make(map[uuid.UUID]struct{}, len(s.Postings))
	var sum int64
	for _, p := range s.Postings {
		if p.AccountID == uuid.Nil {
			return fmt.Errorf("checkShape: %w", domain.ErrAccountNotFound)
		}
		if _, dup := seen[p.AccountID]; dup {
			return fmt.Errorf("checkShape: account %s posted twice: %w", p.AccountID, domain.ErrInvalidRequest)
		}
		seen[p.AccountID] = struct{}{}

		if p.Delta == 0 || p.Delta == math.MinInt64 {
			return fmt.Errorf("checkShape: %w", domain.ErrInvalidAmount)
		}
		next, ok := addInt64(sum, p.Delta)
		if !ok {
			return fmt.Errorf("checkShape: %w", domain.ErrInvalidAmount)
		}
		sum = next

		if s.Limit > 0 && p.Delta < 0 && -p.Delta > s.Limit {
			return fmt.Errorf("checkShape: debit %d over %d: %w", -p.Delta, s.Limit, domain.ErrLimitExceeded)
		}
	}

	switch s.Kind {
	case domain.KindMint:
		if sum <= 0 {
			return fmt.Errorf("checkShape: mint must increase supply: %w", domain.ErrImbalancedTransaction)
		}
	case domain.KindBurn:
		if sum >= 0 {
			return fmt.Errorf("checkShape: burn must decrease supply: %w", domain.ErrImbalancedTransaction)
		}
	case domain.KindReversal:
		if s.reverses == nil {
			return fmt.Errorf("checkShape: reversal without original: %w", domain.ErrInvalidRequest)
		}
		if !s.reverses.SupplyAffecting && sum != 0 {
			return fmt.Errorf("checkShape: %w", domain.ErrImbalancedTransaction)
		}
	default:
		if sum != 0 {
			return fmt.Errorf("checkShape: %w", domain.ErrImbalancedTransaction)
		}
	}
	return nil
}

func (s Submission) accountIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.Postings))
	for i, p := range s.Postings {
		ids[i] = p.AccountID
	}
	return ids
}

// SortedIDs returns ids in the canonical lock order.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})
	return sorted
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}
