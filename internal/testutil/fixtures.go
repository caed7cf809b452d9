package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

var ReserveOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// SeedAccount inserts an empty account directly. Balances are only ever
// funded through the ledger so supply stays conserved.
func SeedAccount(t *testing.T, db *sql.DB, ownerID uuid.UUID, accountType domain.AccountType) *domain.Account {
	t.Helper()

	now := time.Now().UTC()
	a := &domain.Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      accountType,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, owner_id, account_type, balance, status, version, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, 1, $5, $6)`,
		a.ID, a.OwnerID, a.Type, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account for %s: %v", ownerID, err)
	}
	return a
}

func SetAccountStatus(t *testing.T, db *sql.DB, accountID uuid.UUID, status domain.AccountStatus) {
	t.Helper()

	_, err := db.Exec(`UPDATE accounts SET status = $1, version = version + 1 WHERE id = $2`, status, accountID)
	if err != nil {
		t.Fatalf("set status of %s: %v", accountID, err)
	}
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func CountLedgerEntries(t *testing.T, db *sql.DB, transactionID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE transaction_id = $1`, transactionID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for transaction %s: %v", transactionID, err)
	}
	return count
}

func CountOutbox(t *testing.T, db *sql.DB, status domain.OutboxStatus) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM audit_outbox WHERE status = $1`, status).Scan(&count)
	if err != nil {
		t.Fatalf("count outbox rows with status %s: %v", status, err)
	}
	return count
}
