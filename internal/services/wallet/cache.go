package wallet

import (
	"context"

	"go.uber.org/zap"
)

// GetBalance reads through the wallet snapshot cache. Cache failures fall
// back to the store.
func (s *service) GetBalance(ctx context.Context, clientID string) (int64, error) {
	if err := validateClient(clientID); err != nil {
		return 0, err
	}

	cached, found, err := s.cache.GetWallet(ctx, clientID)
	if err != nil {
		s.logger.Warn("wallet cache read failed", zap.String("client_id", clientID), zap.Error(err))
	}
	if found && cached != nil {
		return cached.Balance, nil
	}

	w, err := s.GetOrCreateWallet(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetWallet(ctx, w); err != nil {
		s.logger.Warn("wallet cache write failed", zap.String("client_id", clientID), zap.Error(err))
	}
	return w.Balance, nil
}

// invalidate drops the cached snapshot after a committed mutation.
func (s *service) invalidate(ctx context.Context, clientID string) {
	if err := s.cache.InvalidateWallet(ctx, clientID); err != nil {
		s.logger.Warn("wallet cache invalidation failed", zap.String("client_id", clientID), zap.Error(err))
	}
}
