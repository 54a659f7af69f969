package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatchesWrappedCopies(t *testing.T) {
	err := fmt.Errorf("use: %w", ErrInsufficientBalance.Withf("balance 10 < 50"))

	assert.True(t, stderrors.Is(err, ErrInsufficientBalance))
	assert.False(t, stderrors.Is(err, ErrWalletNotFound))
	assert.Equal(t, "INSUFFICIENT_BALANCE", Code(err))
	assert.Contains(t, err.Error(), "balance 10 < 50")
}

func TestStoreWrapsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Store("update wallet", cause)

	assert.True(t, stderrors.Is(err, ErrStoreFailure))
	assert.True(t, stderrors.Is(err, cause))
	assert.Nil(t, Store("noop", nil))

	// already coded errors keep their code
	assert.Equal(t, ErrWalletNotFound.Code, Code(Store("get wallet", ErrWalletNotFound)))
}

func TestClassification(t *testing.T) {
	assert.True(t, IsRetryable(ErrConcurrentModification.Wrap(stderrors.New("version 3"))))
	assert.False(t, IsRetryable(ErrInsufficientBalance))

	assert.True(t, IsClientError(ErrInvalidAmount))
	assert.False(t, IsClientError(ErrStoreFailure))
	assert.False(t, IsClientError(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrInvalidAmount:             http.StatusBadRequest,
		ErrInsufficientBalance:       http.StatusUnprocessableEntity,
		ErrWalletNotFound:            http.StatusNotFound,
		ErrTransactionNotPending:     http.StatusConflict,
		ErrPaymentDeclined:           http.StatusPaymentRequired,
		ErrStoreFailure:              http.StatusInternalServerError,
		stderrors.New("unclassified"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
