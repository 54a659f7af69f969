package errors

import (
	stderrors "errors"
	"net/http"
)

var (
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient point balance",
	}
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "amount must be a positive number of points",
	}
	ErrInvalidMethod = &DomainError{
		Code:    "INVALID_METHOD",
		Message: "charge method must be credit or bankTransfer",
	}
	ErrInvalidClient = &DomainError{
		Code:    "INVALID_CLIENT",
		Message: "client id is required",
	}
	ErrTransactionNotFound = &DomainError{
		Code:    "TRANSACTION_NOT_FOUND",
		Message: "point transaction not found",
	}
	ErrTransactionNotPending = &DomainError{
		Code:    "TRANSACTION_NOT_PENDING",
		Message: "point transaction is not pending",
	}
	ErrTransactionMismatch = &DomainError{
		Code:    "TRANSACTION_MISMATCH",
		Message: "point transaction does not match the request",
	}
	ErrConcurrentModification = &DomainError{
		Code:    "CONCURRENT_MODIFICATION",
		Message: "wallet was modified concurrently",
	}
	ErrPaymentDeclined = &DomainError{
		Code:    "PAYMENT_DECLINED",
		Message: "card payment was declined",
	}
	ErrReservationNotFound = &DomainError{
		Code:    "RESERVATION_NOT_FOUND",
		Message: "reservation not found",
	}
	ErrInvalidReservation = &DomainError{
		Code:    "INVALID_RESERVATION",
		Message: "reservation needs a service and a start time",
	}
	ErrReservationNotCancellable = &DomainError{
		Code:    "RESERVATION_NOT_CANCELLABLE",
		Message: "reservation cannot be cancelled",
	}
	ErrStoreFailure = &DomainError{
		Code:    "STORE_FAILURE",
		Message: "ledger store failure",
	}
)

// Store wraps a persistence failure. Errors that already carry a domain
// code pass through untouched.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if Code(err) != "" {
		return err
	}
	return ErrStoreFailure.Withf("ledger store failure: %s", op).Wrap(err)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	switch Code(err) {
	case "", ErrStoreFailure.Code, ErrConcurrentModification.Code:
		return false
	}
	return true
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrInvalidAmount.Code, ErrInvalidMethod.Code, ErrInvalidClient.Code, ErrTransactionMismatch.Code, ErrInvalidReservation.Code:
		return http.StatusBadRequest
	case ErrPaymentDeclined.Code:
		return http.StatusPaymentRequired
	case ErrWalletNotFound.Code, ErrTransactionNotFound.Code, ErrReservationNotFound.Code:
		return http.StatusNotFound
	case ErrTransactionNotPending.Code, ErrReservationNotCancellable.Code, ErrConcurrentModification.Code:
		return http.StatusConflict
	case ErrInsufficientBalance.Code:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
