package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/unified-pay/internal/domain"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *Store) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewStore(db, 1500*time.Millisecond)
}

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		concurrent bool
	}{
		{"lock timeout", &pq.Error{Code: pqLockNotAvailable}, true},
		{"serialization", &pq.Error{Code: pqSerializationFailure}, true},
		{"deadlock", &pq.Error{Code: pqDeadlockDetected}, true},
		{"unique violation", &pq.Error{Code: pqUniqueViolation}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mapPQError(tc.err)
			assert.Equal(t, tc.concurrent, errors.Is(got, domain.ErrConcurrentModification))
		})
	}
}

func TestBegin_SetsLockTimeout(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '1500ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommit_SerializationFailureIsConcurrentModification(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: pqSerializationFailure, Message: "could not serialize access"})

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	err = tx.Commit()
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalance_StaleVersion(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(50), id, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.UpdateBalance(context.Background(), id, 50, 3)
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestDiscard_WithoutReservedKeyFails(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	require.Error(t, tx.Discard(context.Background()))
}

func TestCreateAccount_DuplicateID(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	now := time.Now().UTC()
	err := store.CreateAccount(context.Background(), &domain.Account{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Type:      domain.AccountTypeUser,
		Status:    domain.AccountStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestMigrate_SkipsAppliedFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT)")},
		"001_init.down.sql": {Data: []byte("DROP TABLE a")},
		"002_more.up.sql":   {Data: []byte("CREATE TABLE b (id INT)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_init.up.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_more.up.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_more.up.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db, fsys))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitReady(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name         string
		failures     int
		retries      uint64
		wantErr      bool
		wantAttempts int
	}{
		{name: "ready at once", failures: 0, retries: 3, wantAttempts: 1},
		{name: "ready after retries", failures: 2, retries: 3, wantAttempts: 3},
		{name: "gives up", failures: 2, retries: 1, wantErr: true, wantAttempts: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()

			for i := 0; i < tc.failures; i++ {
				mock.ExpectPing().WillReturnError(refused)
			}
			if !tc.wantErr {
				mock.ExpectPing()
			}

			b := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), tc.retries)
			var waits int
			attempts, err := WaitReady(context.Background(), db, b, func(error, time.Duration) { waits++ })

			assert.Equal(t, tc.wantAttempts, attempts)
			assert.Equal(t, tc.wantAttempts-1, waits)
			if tc.wantErr {
				require.ErrorIs(t, err, refused)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
