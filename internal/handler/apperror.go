package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Elevated authorization required"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInsufficientFunds   = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountFrozen       = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_FROZEN", "Account is frozen"}
	ErrAccountClosed       = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrAccountNotFound     = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrNotOwner            = &AppError{http.StatusForbidden, "ACCOUNT_NOT_OWNED", "Account does not belong to the caller"}
	ErrNonZeroBalance      = &AppError{http.StatusUnprocessableEntity, "NON_ZERO_BALANCE", "Account balance must be zero"}
	ErrInvalidStatus       = &AppError{http.StatusConflict, "INVALID_STATUS_TRANSITION", "Account cannot move to the requested status"}
	ErrSelfTransfer        = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to the same account"}
	ErrLimitExceeded       = &AppError{http.StatusUnprocessableEntity, "TRANSACTION_LIMIT_EXCEEDED", "Transaction limit exceeded"}
	ErrImbalanced          = &AppError{http.StatusUnprocessableEntity, "IMBALANCED_TRANSACTION", "Transaction entries do not sum to zero"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidPrecision    = &AppError{http.StatusBadRequest, "INVALID_PRECISION", "Amount has more decimal places than the token supports"}
	ErrInvalidCurrency     = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Currency is not supported"}
	ErrSupplyOverflow      = &AppError{http.StatusUnprocessableEntity, "SUPPLY_OVERFLOW", "Token supply would overflow"}
	ErrTransactionNotFound = &AppError{http.StatusNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found"}
	ErrNotCommitted        = &AppError{http.StatusUnprocessableEntity, "NOT_COMMITTED", "Transaction was not committed"}
	ErrAlreadyReversed     = &AppError{http.StatusConflict, "ALREADY_REVERSED", "Transaction was already reversed"}
	ErrNotReversible       = &AppError{http.StatusUnprocessableEntity, "NOT_REVERSIBLE", "Transaction cannot be reversed"}

	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrRetryLater            = &AppError{http.StatusServiceUnavailable, "RETRY_LATER", "Ledger is busy, retry with the same idempotency key"}
	ErrSubmissionTimeout     = &AppError{http.StatusGatewayTimeout, "SUBMISSION_TIMEOUT", "Submission outcome unknown, retry with the same idempotency key"}
	ErrStorageUnavailable    = &AppError{http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
