package wallet

import (
	"errors"

	apperrors "coordy/internal/errors"
	"coordy/internal/repositories"
)

// MapStoreError translates repository errors into domain errors. op names
// the failed step for STORE_FAILURE messages.
func MapStoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.Code(err) != "":
		return err
	case errors.Is(err, repositories.ErrWalletNotFound):
		return apperrors.ErrWalletNotFound.Wrap(err)
	case errors.Is(err, repositories.ErrTransactionNotFound):
		return apperrors.ErrTransactionNotFound.Wrap(err)
	case errors.Is(err, repositories.ErrStatusConflict):
		return apperrors.ErrTransactionNotPending.Wrap(err)
	case errors.Is(err, repositories.ErrConcurrentModification):
		return apperrors.ErrConcurrentModification.Wrap(err)
	case errors.Is(err, repositories.ErrReservationNotFound):
		return apperrors.ErrReservationNotFound.Wrap(err)
	default:
		return apperrors.Store(op, err)
	}
}
