package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAccountFrozen          = errors.New("account frozen")
	ErrAccountClosed          = errors.New("account closed")
	ErrNonZeroBalance         = errors.New("account balance must be zero")
	ErrImbalancedTransaction  = errors.New("transaction entries do not sum to zero")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrSelfTransfer           = errors.New("cannot transfer to same account")
	ErrLimitExceeded          = errors.New("transaction limit exceeded")
	ErrNotOwner               = errors.New("account not owned by caller")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrRetryExhausted         = errors.New("retry budget exhausted")
	ErrSubmissionTimeout      = errors.New("submission deadline exceeded")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with a different request")
	ErrMissingIdempotencyKey  = errors.New("idempotency key required")
	ErrNotCommitted           = errors.New("transaction not committed")
	ErrAlreadyReversed        = errors.New("transaction already reversed")
	ErrNotReversible          = errors.New("transaction cannot be reversed")
	ErrUnauthorized           = errors.New("elevated authorization required")
	ErrInvalidStatus          = errors.New("invalid account status transition")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrSupplyOverflow         = errors.New("token supply overflow")
	ErrInvalidPrecision       = errors.New("amount exceeds token precision")
	ErrUnsupportedCurrency    = errors.New("unsupported currency")
)

type ReasonCode string

const (
	ReasonNone                ReasonCode = ""
	ReasonInsufficientFunds   ReasonCode = "INSUFFICIENT_FUNDS"
	ReasonAccountNotFound     ReasonCode = "ACCOUNT_NOT_FOUND"
	ReasonAccountFrozen       ReasonCode = "ACCOUNT_FROZEN"
	ReasonAccountClosed       ReasonCode = "ACCOUNT_CLOSED"
	ReasonImbalanced          ReasonCode = "IMBALANCED_TRANSACTION"
	ReasonInvalidAmount       ReasonCode = "INVALID_AMOUNT"
	ReasonInvalidRequest      ReasonCode = "INVALID_REQUEST"
	ReasonSupplyOverflow      ReasonCode = "SUPPLY_OVERFLOW"
	ReasonLimitExceeded       ReasonCode = "TRANSACTION_LIMIT_EXCEEDED"
	ReasonTransactionNotFound ReasonCode = "TRANSACTION_NOT_FOUND"
	ReasonNotCommitted        ReasonCode = "NOT_COMMITTED"
	ReasonAlreadyReversed     ReasonCode = "ALREADY_REVERSED"
	ReasonNotReversible       ReasonCode = "NOT_REVERSIBLE"
	ReasonUnknown             ReasonCode = "UNKNOWN"
)

var reasonErrors = map[ReasonCode]error{
	ReasonInsufficientFunds:   ErrInsufficientFunds,
	ReasonAccountNotFound:     ErrAccountNotFound,
	ReasonAccountFrozen:       ErrAccountFrozen,
	ReasonAccountClosed:       ErrAccountClosed,
	ReasonImbalanced:          ErrImbalancedTransaction,
	ReasonInvalidAmount:       ErrInvalidAmount,
	ReasonInvalidRequest:      ErrInvalidRequest,
	ReasonSupplyOverflow:      ErrSupplyOverflow,
	ReasonLimitExceeded:       ErrLimitExceeded,
	ReasonTransactionNotFound: ErrTransactionNotFound,
	ReasonNotCommitted:        ErrNotCommitted,
	ReasonAlreadyReversed:     ErrAlreadyReversed,
	ReasonNotReversible:       ErrNotReversible,
}

// ReasonFor classifies a terminal rejection. Transient and infrastructure
// errors yield ReasonNone: they are never recorded against a key.
func ReasonFor(err error) ReasonCode {
	for code, sentinel := range reasonErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ReasonNone
}

// ErrorForReason is the inverse of ReasonFor, used when replaying a
// recorded rejection.
func ErrorForReason(code ReasonCode) error {
	if err, ok := reasonErrors[code]; ok {
		return err
	}
	return errors.New("rejected: " + string(code))
}

// IsTransient reports whether retrying the same submission may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
