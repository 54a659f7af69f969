package wallet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coordy/internal/events"
	"coordy/internal/logging"
	"coordy/internal/models"
	"coordy/internal/repositories"
	"coordy/internal/repositories/cache"
	"coordy/internal/services/payment"
)

type service struct {
	repo      repositories.LedgerRepository
	cache     cache.WalletCache
	gateway   payment.Gateway
	publisher events.Publisher
	config    WalletConfig
	logger    *zap.Logger
}

// NewService creates a new wallet service
func NewService(
	repo repositories.LedgerRepository,
	walletCache cache.WalletCache,
	gateway payment.Gateway,
	publisher events.Publisher,
	config WalletConfig,
	logger *zap.Logger,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if gateway == nil {
		panic("payment gateway is required")
	}
	if walletCache == nil {
		walletCache = cache.NoopCache{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &service{
		repo:      repo,
		cache:     walletCache,
		gateway:   gateway,
		publisher: publisher,
		config:    config.withDefaults(),
		logger:    logging.OrNop(logger).Named("wallet"),
	}
}

func (s *service) now() time.Time {
	return s.config.Now().UTC()
}

func (s *service) ListWallets(ctx context.Context, limit, offset int) ([]models.ClientWallet, int64, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	wallets, total, err := s.repo.ListWallets(ctx, limit, offset)
	if err != nil {
		return nil, 0, MapStoreError("list wallets", err)
	}
	return wallets, total, nil
}

func (s *service) GetTransactionHistory(ctx context.Context, clientID string) ([]models.PointTransaction, error) {
	if err := validateClient(clientID); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, repositories.TransactionFilter{
		ClientID: clientID,
		Order:    repositories.SortNewestFirst,
	})
	if err != nil {
		return nil, MapStoreError("list transactions", err)
	}
	return txs, nil
}

func (s *service) GetTransactionHistoryPage(ctx context.Context, clientID string, limit, offset int) (*HistoryPage, error) {
	if err := validateClient(clientID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	filter := repositories.TransactionFilter{ClientID: clientID}
	total, err := s.repo.CountTransactions(ctx, filter)
	if err != nil {
		return nil, MapStoreError("count transactions", err)
	}

	filter.Order = repositories.SortNewestFirst
	filter.Limit = limit
	filter.Offset = offset
	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, MapStoreError("list transactions", err)
	}

	return &HistoryPage{Transactions: txs, Total: total, Limit: limit, Offset: offset}, nil
}

// publish emits a ledger event after commit. Failures are logged only.
func (s *service) publish(ctx context.Context, eventType string, w *models.ClientWallet, tx *models.PointTransaction) {
	event := events.LedgerEvent{
		Type:          eventType,
		ClientID:      tx.ClientID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		OccurredAt:    s.now(),
	}
	if w != nil {
		event.Balance = w.Balance
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish ledger event",
			zap.String("event_type", eventType),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
	}
}
