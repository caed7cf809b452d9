package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Format(t *testing.T) {
	tok := Token{Symbol: "PAY", Precision: 2}

	assert.Equal(t, "12.34 PAY", tok.Format(1234))
	assert.Equal(t, "0.05 PAY", tok.Format(5))
	assert.Equal(t, "-3.00 PAY", tok.Format(-300))
}

func TestToken_ParseAmount(t *testing.T) {
	tok := Token{Symbol: "PAY", Precision: 2}

	tests := []struct {
		in      string
		want    int64
		wantErr error
	}{
		{"12.34", 1234, nil},
		{"7", 700, nil},
		{"0.1", 10, nil},
		{"1.234", 0, ErrInvalidPrecision},
		{"0", 0, ErrInvalidAmount},
		{"-5", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"999999999999999999999", 0, ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := tok.ParseAmount(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPolicy_CheckPosting(t *testing.T) {
	lenient := Policy{FrozenAcceptsCredit: true}
	strict := Policy{FrozenAcceptsCredit: false}

	tests := []struct {
		name    string
		policy  Policy
		status  AccountStatus
		delta   int64
		wantErr error
	}{
		{"active debit", lenient, AccountStatusActive, -10, nil},
		{"active credit", lenient, AccountStatusActive, 10, nil},
		{"frozen debit", lenient, AccountStatusFrozen, -10, ErrAccountFrozen},
		{"frozen credit allowed", lenient, AccountStatusFrozen, 10, nil},
		{"frozen credit denied", strict, AccountStatusFrozen, 10, ErrAccountFrozen},
		{"closed credit", lenient, AccountStatusClosed, 10, ErrAccountClosed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.CheckPosting(&Account{Status: tc.status}, tc.delta)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestTransferRequest_Validate(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		req     TransferRequest
		wantErr error
	}{
		{"valid", TransferRequest{From: a, To: b, Amount: 1, IdempotencyKey: "k"}, nil},
		{"missing key", TransferRequest{From: a, To: b, Amount: 1}, ErrMissingIdempotencyKey},
		{"self transfer", TransferRequest{From: a, To: a, Amount: 1, IdempotencyKey: "k"}, ErrSelfTransfer},
		{"zero amount", TransferRequest{From: a, To: b, IdempotencyKey: "k"}, ErrInvalidAmount},
		{"missing account", TransferRequest{From: a, Amount: 1, IdempotencyKey: "k"}, ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestRequestPostings(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	transfer := TransferRequest{From: a, To: b, Amount: 300}
	assert.Equal(t, []Posting{{a, -300}, {b, 300}}, transfer.Postings())

	mint := MintRequest{AccountID: a, Amount: 1000}
	assert.Equal(t, []Posting{{a, 1000}}, mint.Postings())

	burn := BurnRequest{AccountID: a, Amount: 50}
	assert.Equal(t, []Posting{{a, -50}}, burn.Postings())

	assert.ErrorIs(t, MintRequest{AccountID: a, Amount: 5, IdempotencyKey: "k"}.Validate(), ErrInvalidRequest)
}

func TestReasonRoundTrip(t *testing.T) {
	wrapped := fmt.Errorf("applyPostings: %w", ErrInsufficientFunds)

	code := ReasonFor(wrapped)
	assert.Equal(t, ReasonInsufficientFunds, code)
	assert.ErrorIs(t, ErrorForReason(code), ErrInsufficientFunds)

	assert.Equal(t, ReasonNone, ReasonFor(ErrConcurrentModification))
	assert.Equal(t, ReasonNone, ReasonFor(errors.New("boom")))
	assert.True(t, IsTransient(fmt.Errorf("x: %w", ErrConcurrentModification)))
}
