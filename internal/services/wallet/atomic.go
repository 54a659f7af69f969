package wallet

import (
	"context"
	"time"

	apperrors "coordy/internal/errors"
	"coordy/internal/models"
	"coordy/internal/repositories"
)

// RunInTransaction runs fn in one store transaction and retries the whole
// unit up to maxRetries more times when a wallet version check fails.
func RunInTransaction(ctx context.Context, repo repositories.LedgerRepository, maxRetries int, fn func(repositories.LedgerRepository) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		err = repo.ExecuteInTransaction(ctx, fn)
		if err == nil || !apperrors.IsRetryable(MapStoreError("transaction", err)) {
			return MapStoreError("transaction", err)
		}
	}
	return MapStoreError("transaction", err)
}

// LoadWallet reads the wallet of clientID through repo.
func LoadWallet(ctx context.Context, repo repositories.LedgerRepository, clientID string) (*models.ClientWallet, error) {
	w, err := repo.GetWalletByClientID(ctx, clientID)
	if err != nil {
		return nil, MapStoreError("get wallet", err)
	}
	return w, nil
}

// WriteBalance stores balance on w with a version check.
func WriteBalance(ctx context.Context, repo repositories.LedgerRepository, w *models.ClientWallet, balance int64) error {
	if balance < 0 {
		return apperrors.ErrInsufficientBalance
	}
	return MapStoreError("update wallet", repo.UpdateWalletBalance(ctx, w, balance))
}

// AppendTransaction writes a ledger row through repo.
func AppendTransaction(ctx context.Context, repo repositories.LedgerRepository, tx *models.PointTransaction) error {
	return MapStoreError("create transaction", repo.CreateTransaction(ctx, tx))
}
