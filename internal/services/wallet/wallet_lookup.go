package wallet

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	apperrors "coordy/internal/errors"
	"coordy/internal/models"
	"coordy/internal/repositories"
)

func validateClient(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return apperrors.ErrInvalidClient
	}
	return nil
}

// GetOrCreateWallet returns the client's wallet, creating an empty one on
// first access. Two concurrent first accesses end up with the same wallet.
func (s *service) GetOrCreateWallet(ctx context.Context, clientID string) (*models.ClientWallet, error) {
	if err := validateClient(clientID); err != nil {
		return nil, err
	}

	w, err := s.repo.GetWalletByClientID(ctx, clientID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, MapStoreError("get wallet", err)
	}

	w = &models.ClientWallet{ClientID: clientID}
	err = s.repo.CreateWallet(ctx, w)
	switch {
	case err == nil:
		s.logger.Info("created wallet",
			zap.String("client_id", clientID),
			zap.String("wallet_id", w.ID))
		return w, nil
	case errors.Is(err, repositories.ErrDuplicateWallet):
		// lost the creation race
		return LoadWallet(ctx, s.repo, clientID)
	default:
		return nil, MapStoreError("create wallet", err)
	}
}
