// Package approval settles bank transfer charges after an admin has
// checked the incoming transfer.
package approval

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "coordy/internal/errors"
	"coordy/internal/events"
	"coordy/internal/logging"
	"coordy/internal/models"
	"coordy/internal/repositories"
	"coordy/internal/repositories/cache"
	"coordy/internal/services/wallet"
)

// ApproveRequest identifies the pending charge to settle. ClientID and
// Amount are optional cross checks against the stored row.
type ApproveRequest struct {
	TransactionID string
	ClientID      string
	Amount        int64
	ReviewedBy    string
}

type Config struct {
	MaxRetries int
	Now        func() time.Time
}

type Service struct {
	repo      repositories.LedgerRepository
	cache     cache.WalletCache
	publisher events.Publisher
	config    Config
	logger    *zap.Logger
}

func NewService(repo repositories.LedgerRepository, walletCache cache.WalletCache, publisher events.Publisher, config Config, logger *zap.Logger) *Service {
	if repo == nil {
		panic("repo is required")
	}
	if walletCache == nil {
		walletCache = cache.NoopCache{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = wallet.DefaultMaxRetries
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		repo:      repo,
		cache:     walletCache,
		publisher: publisher,
		config:    config,
		logger:    logging.OrNop(logger).Named("approval"),
	}
}

// ListPendingBankCharges returns bank transfer charges awaiting review,
// oldest first.
func (s *Service) ListPendingBankCharges(ctx context.Context) ([]models.PointTransaction, error) {
	txs, err := s.repo.ListTransactions(ctx, repositories.TransactionFilter{
		Type:   models.TransactionTypeCharge,
		Method: models.ChargeMethodBankTransfer,
		Status: models.TransactionStatusPending,
		Order:  repositories.SortOldestFirst,
	})
	if err != nil {
		return nil, wallet.MapStoreError("list pending charges", err)
	}
	return txs, nil
}

// ApproveCharge credits a pending bank transfer charge and marks it
// completed. The status change and the credit commit together, so a
// charge can only ever be credited once.
func (s *Service) ApproveCharge(ctx context.Context, req ApproveRequest) (*wallet.Result, error) {
	if req.TransactionID == "" {
		return nil, apperrors.ErrTransactionNotFound.Withf("transaction id is required")
	}

	var result wallet.Result
	err := wallet.RunInTransaction(ctx, s.repo, s.config.MaxRetries, func(repo repositories.LedgerRepository) error {
		tx, err := repo.GetTransactionByID(ctx, req.TransactionID)
		if err != nil {
			return wallet.MapStoreError("get transaction", err)
		}
		if err := checkBankCharge(tx, req); err != nil {
			return err
		}

		reviewedAt := s.config.Now().UTC()
		updated, err := repo.TransitionStatus(ctx, tx.ID,
			models.TransactionStatusPending, models.TransactionStatusCompleted,
			repositories.StatusUpdate{
				Description: wallet.DescApproved,
				ReviewedBy:  req.ReviewedBy,
				ReviewedAt:  &reviewedAt,
			})
		if err != nil {
			return wallet.MapStoreError("approve transaction", err)
		}

		w, err := wallet.LoadWallet(ctx, repo, tx.ClientID)
		if err != nil {
			return err
		}
		if err := wallet.WriteBalance(ctx, repo, w, w.Balance+tx.Amount); err != nil {
			return err
		}
		result = wallet.Result{Wallet: w, Transaction: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSettle(ctx, events.PointsChargeApproved, result.Wallet, result.Transaction)
	s.logger.Info("bank transfer approved",
		zap.String("client_id", result.Transaction.ClientID),
		zap.String("transaction_id", result.Transaction.ID),
		zap.String("reviewed_by", req.ReviewedBy),
		zap.Int64("amount", result.Transaction.Amount),
		zap.Int64("balance", result.Wallet.Balance))
	return &result, nil
}

// RejectCharge marks a pending bank transfer charge failed. The balance is
// untouched since it was never credited.
func (s *Service) RejectCharge(ctx context.Context, transactionID, reviewedBy string) (*models.PointTransaction, error) {
	if transactionID == "" {
		return nil, apperrors.ErrTransactionNotFound.Withf("transaction id is required")
	}

	tx, err := s.repo.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, wallet.MapStoreError("get transaction", err)
	}
	if err := checkBankCharge(tx, ApproveRequest{}); err != nil {
		return nil, err
	}

	reviewedAt := s.config.Now().UTC()
	updated, err := s.repo.TransitionStatus(ctx, tx.ID,
		models.TransactionStatusPending, models.TransactionStatusFailed,
		repositories.StatusUpdate{
			Description: wallet.DescRejected,
			ReviewedBy:  reviewedBy,
			ReviewedAt:  &reviewedAt,
		})
	if err != nil {
		return nil, wallet.MapStoreError("reject transaction", err)
	}

	s.afterSettle(ctx, events.PointsChargeRejected, nil, updated)
	s.logger.Info("bank transfer rejected",
		zap.String("client_id", updated.ClientID),
		zap.String("transaction_id", updated.ID),
		zap.String("reviewed_by", reviewedBy))
	return updated, nil
}

func checkBankCharge(tx *models.PointTransaction, req ApproveRequest) error {
	if tx.Type != models.TransactionTypeCharge || tx.Method != models.ChargeMethodBankTransfer {
		return apperrors.ErrTransactionMismatch.Withf("transaction %s is not a bank transfer charge", tx.ID)
	}
	if req.ClientID != "" && req.ClientID != tx.ClientID {
		return apperrors.ErrTransactionMismatch.Withf("transaction %s belongs to another client", tx.ID)
	}
	if req.Amount != 0 && req.Amount != tx.Amount {
		return apperrors.ErrTransactionMismatch.Withf("transaction %s is for %d points, not %d", tx.ID, tx.Amount, req.Amount)
	}
	if tx.Status != models.TransactionStatusPending {
		return apperrors.ErrTransactionNotPending.Withf("transaction %s is already %s", tx.ID, tx.Status)
	}
	return nil
}

func (s *Service) afterSettle(ctx context.Context, eventType string, w *models.ClientWallet, tx *models.PointTransaction) {
	event := events.LedgerEvent{
		Type:          eventType,
		ClientID:      tx.ClientID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		OccurredAt:    s.config.Now().UTC(),
	}
	if w != nil {
		event.Balance = w.Balance
		if err := s.cache.InvalidateWallet(ctx, w.ClientID); err != nil {
			s.logger.Warn("wallet cache invalidation failed", zap.String("client_id", w.ClientID), zap.Error(err))
		}
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish ledger event", zap.String("event_type", eventType), zap.Error(err))
	}
}
