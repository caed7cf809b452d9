package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/unified-pay/internal/auth"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/service/payment"
)

var testToken = domain.Token{Symbol: "PAY", Precision: 2}

func TestAppErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *AppError
	}{
		{"retry exhausted wins over contention", fmt.Errorf("Execute: 5 attempts: %w: %w", domain.ErrRetryExhausted, domain.ErrConcurrentModification), ErrRetryLater},
		{"contention", domain.ErrConcurrentModification, ErrVersionConflict},
		{"timeout", fmt.Errorf("Execute: %w", domain.ErrSubmissionTimeout), ErrSubmissionTimeout},
		{"storage", fmt.Errorf("Submit: %w", domain.ErrStorageUnavailable), ErrStorageUnavailable},
		{"insufficient funds", fmt.Errorf("Transfer: %w", domain.ErrInsufficientFunds), ErrInsufficientFunds},
		{"frozen", domain.ErrAccountFrozen, ErrAccountFrozen},
		{"not owner", domain.ErrNotOwner, ErrNotOwner},
		{"unauthorized", domain.ErrUnauthorized, ErrForbidden},
		{"precision", domain.ErrInvalidPrecision, ErrInvalidPrecision},
		{"idempotency conflict", domain.ErrIdempotencyConflict, ErrIdempotencyConflict},
		{"already reversed", domain.ErrAlreadyReversed, ErrAlreadyReversed},
		{"unknown transaction", domain.ErrTransactionNotFound, ErrTransactionNotFound},
		{"currency", domain.ErrUnsupportedCurrency, ErrInvalidCurrency},
		{"unmapped", errors.New("boom"), ErrInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Same(t, tc.want, appErrorFor(tc.err))
		})
	}
}

func TestRespondDomainError_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondDomainError(rec, fmt.Errorf("x: %w", domain.ErrRetryExhausted))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "RETRY_LATER", resp.Error.Code)
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErrs   int
	}{
		{"", defaultPageLimit, 0, 0},
		{"limit=10&offset=20", 10, 20, 0},
		{"limit=0", defaultPageLimit, 0, 1},
		{"limit=500", defaultPageLimit, 0, 1},
		{"offset=-1", defaultPageLimit, 0, 1},
		{"limit=x&offset=y", defaultPageLimit, 0, 2},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			limit, offset, errs := parsePage(r)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.wantOffset, offset)
			assert.Len(t, errs, tc.wantErrs)
		})
	}
}

type fakePayments struct {
	got       domain.TransferRequest
	gotRefund payment.RefundRequest
	outcome *payment.Outcome
	err     error
}

func (f *fakePayments) Transfer(_ context.Context, req domain.TransferRequest) (*payment.Outcome, error) {
	f.got = req
	return f.outcome, f.err
}

func (f *fakePayments) GetTransaction(context.Context, uuid.UUID) (*domain.Transaction, error) {
	return nil, domain.ErrTransactionNotFound
}

func (f *fakePayments) GetTransactionForOwner(context.Context, uuid.UUID, uuid.UUID) (*domain.Transaction, error) {
	return nil, domain.ErrTransactionNotFound
}

func (f *fakePayments) Refund(_ context.Context, req payment.RefundRequest) (*payment.Outcome, error) {
	f.gotRefund = req
	return f.outcome, f.err
}

func authedRequest(method, path, body string, claims *auth.Claims, key string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	ctx := auth.ContextWithClaims(r.Context(), claims)
	if key != "" {
		ctx = ContextWithIdempotencyKey(ctx, key)
	}
	return r.WithContext(ctx)
}

func TestTransfer_PassesCallerAndKey(t *testing.T) {
	from, to := uuid.New(), uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleUser}
	txn := &domain.Transaction{ID: uuid.New(), Kind: domain.KindTransfer, State: domain.StateCommitted}
	fake := &fakePayments{outcome: &payment.Outcome{Transaction: txn, Replayed: true}}
	h := NewPaymentHandler(fake, testToken)

	body := fmt.Sprintf(`{"from_account_id":%q,"to_account_id":%q,"amount":"12.34","memo":"rent"}`, from, to)
	rec := httptest.NewRecorder()
	h.Transfer(rec, authedRequest(http.MethodPost, "/api/v1/transfers", body, claims, "user:key-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, claims.UserID, fake.got.InitiatorID)
	assert.Equal(t, "user:key-1", fake.got.IdempotencyKey)
	assert.Equal(t, int64(1234), fake.got.Amount)
	assert.Equal(t, "rent", fake.got.Memo)
}

func TestTransfer_RequiresClaims(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, testToken)
	rec := httptest.NewRecorder()
	h.Transfer(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetTransaction_InvalidID(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, testToken)
	claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleUser}

	r := authedRequest(http.MethodGet, "/api/v1/transactions/nope", "", claims, "")
	r.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.GetTransaction(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeTokens struct {
	capability *auth.Capability
	report     *ledger.SupplyReport
}

func (f *fakeTokens) Mint(_ context.Context, c *auth.Capability, req domain.MintRequest) (*ledger.Receipt, error) {
	f.capability = c
	if c == nil {
		return nil, domain.ErrUnauthorized
	}
	return &ledger.Receipt{Transaction: &domain.Transaction{ID: uuid.New(), Kind: domain.KindMint, State: domain.StateCommitted}}, nil
}

func (f *fakeTokens) Burn(context.Context, *auth.Capability, domain.BurnRequest) (*ledger.Receipt, error) {
	return nil, domain.ErrInsufficientFunds
}

func (f *fakeTokens) Reverse(context.Context, *auth.Capability, ledger.ReverseRequest) (*ledger.Receipt, error) {
	return nil, domain.ErrNotReversible
}

func (f *fakeTokens) Freeze(context.Context, *auth.Capability, uuid.UUID) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (f *fakeTokens) Unfreeze(context.Context, *auth.Capability, uuid.UUID) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (f *fakeTokens) Close(context.Context, *auth.Capability, uuid.UUID) (*domain.Account, error) {
	return nil, domain.ErrNonZeroBalance
}

func (f *fakeTokens) Supply(context.Context) (*ledger.SupplyReport, error) {
	return f.report, nil
}

type fakeOpener struct{}

func (fakeOpener) OpenSystem(_ context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	return &domain.Account{ID: uuid.New(), OwnerID: ownerID, Type: domain.AccountTypeSystem, Status: domain.AccountStatusActive}, nil
}

func TestAdminMint_UsesContextCapability(t *testing.T) {
	authority := auth.NewAuthority()
	claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleAdmin}
	capability, err := authority.Grant(claims)
	require.NoError(t, err)

	tokens := &fakeTokens{}
	h := NewAdminHandler(tokens, fakeOpener{}, testToken)
	body := fmt.Sprintf(`{"account_id":%q,"amount":"5","reason":"seed"}`, uuid.New())

	r := authedRequest(http.MethodPost, "/api/v1/admin/mint", body, claims, "k")
	r = r.WithContext(auth.ContextWithCapability(r.Context(), capability))
	rec := httptest.NewRecorder()
	h.Mint(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, capability, tokens.capability)

	rec = httptest.NewRecorder()
	h.Mint(rec, authedRequest(http.MethodPost, "/api/v1/admin/mint", body, claims, "k"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminMint_Validation(t *testing.T) {
	h := NewAdminHandler(&fakeTokens{}, fakeOpener{}, testToken)
	claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleAdmin}

	rec := httptest.NewRecorder()
	h.Mint(rec, authedRequest(http.MethodPost, "/api/v1/admin/mint", `{"account_id":"x","amount":"0"}`, claims, "k"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error struct {
			Code    string       `json:"code"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	assert.Len(t, resp.Error.Details, 3)
}

func TestAdminSupply(t *testing.T) {
	tok := testToken
	tok.Minted, tok.Burned = 5000, 1000
	h := NewAdminHandler(&fakeTokens{report: &ledger.SupplyReport{
		Token: tok, Circulating: 4000, BalanceSum: 4000, Conserved: true,
	}}, fakeOpener{}, testToken)

	rec := httptest.NewRecorder()
	h.Supply(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/supply", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data supplyDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "40.00 PAY", resp.Data.CirculatingDisplay)
	assert.True(t, resp.Data.Conserved)
}

func TestAdminOpenSystem(t *testing.T) {
	h := NewAdminHandler(&fakeTokens{}, fakeOpener{}, testToken)
	claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleAdmin}

	rec := httptest.NewRecorder()
	h.OpenSystem(rec, authedRequest(http.MethodPost, "/api/v1/admin/accounts/system", "", claims, ""))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data accountDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "system", resp.Data.Type)
	assert.Equal(t, claims.UserID, resp.Data.OwnerID)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		db     pinger
		status int
		want   string
	}{
		{"memory", nil, http.StatusOK, `"database":"memory"`},
		{"postgres up", fakePinger{}, http.StatusOK, `"database":"ok"`},
		{"postgres down", fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, `"database":"down"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tc.db, "test").Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestRefund_PassesCallerAndKey(t *testing.T) {
	txnID := uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), Role: auth.RoleUser}
	reversal := &domain.Transaction{ID: uuid.New(), Kind: domain.KindReversal, State: domain.StateCommitted, ReversalOf: &txnID}

	tests := []struct {
		name       string
		pathID     string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "committed", pathID: txnID.String(), body: `{"memo":"wrong item"}`, wantStatus: http.StatusCreated},
		{name: "empty body", pathID: txnID.String(), wantStatus: http.StatusCreated},
		{name: "bad id", pathID: "nope", wantStatus: http.StatusNotFound, wantCode: "TRANSACTION_NOT_FOUND"},
		{name: "not the recipient", pathID: txnID.String(), err: domain.ErrNotOwner, wantStatus: http.StatusForbidden, wantCode: "ACCOUNT_NOT_OWNED"},
		{name: "already reversed", pathID: txnID.String(), err: domain.ErrAlreadyReversed, wantStatus: http.StatusConflict, wantCode: "ALREADY_REVERSED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakePayments{outcome: &payment.Outcome{Transaction: reversal}, err: tc.err}
			h := NewPaymentHandler(fake, testToken)

			r := authedRequest(http.MethodPost, "/api/v1/transactions/"+tc.pathID+"/refund", tc.body, claims, "user:refund-1")
			r.SetPathValue("id", tc.pathID)
			rec := httptest.NewRecorder()
			h.Refund(rec, r)

			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantCode != "" {
				assert.Contains(t, rec.Body.String(), tc.wantCode)
				return
			}
			assert.Equal(t, txnID, fake.gotRefund.TransactionID)
			assert.Equal(t, claims.UserID, fake.gotRefund.InitiatorID)
			assert.Equal(t, "user:refund-1", fake.gotRefund.IdempotencyKey)
		})
	}
}
