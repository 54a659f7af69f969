// Package expiration retires charged points once their expiry passes.
package expiration

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

const DefaultExpiringThresholdDays = 30

type Config struct {
	MaxRetries            int
	ExpiringThresholdDays int
	Now                   func() time.Time
}

// Result summarises one ProcessExpiredPoints run. ExpiredPoints is the
// face value of the charges that expired; DeductedPoints is what actually
// left the balance, which is lower when the points were already spent.
type Result struct {
	Processed      bool                      `json:"processed"`
	ExpiredPoints  int64                     `json:"expired_points"`
	DeductedPoints int64                     `json:"deducted_points"`
	Balance        int64                     `json:"balance"`
	Transactions   []models.PointTransaction `json:"transactions"`
}

type Processor struct {
	repo      repositories.LedgerRepository
	cache     cache.WalletCache
	publisher events.Publisher
	config    Config
	logger    *zap.Logger
}

func NewProcessor(repo repositories.LedgerRepository, walletCache cache.WalletCache, publisher events.Publisher, config Config, logger *zap.Logger) *Processor {
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
	if config.ExpiringThresholdDays <= 0 {
		config.ExpiringThresholdDays = DefaultExpiringThresholdDays
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Processor{
		repo:      repo,
		cache:     walletCache,
		publisher: publisher,
		config:    config,
		logger:    logging.OrNop(logger).Named("expiration"),
	}
}

func (p *Processor) now() time.Time {
	return p.config.Now().UTC()
}

// ProcessExpiredPoints expires every due charge of clientID exactly once.
// Charges are consumed oldest expiry first and the balance never drops
// below zero.
func (p *Processor) ProcessExpiredPoints(ctx context.Context, clientID string) (*Result, error) {
	if clientID == "" {
		return nil, apperrors.ErrInvalidClient
	}

	var result Result
	err := wallet.RunInTransaction(ctx, p.repo, p.config.MaxRetries, func(repo repositories.LedgerRepository) error {
		result = Result{}
		now := p.now()

		due, err := p.dueCharges(ctx, repo, clientID, now)
		if err != nil || len(due) == 0 {
			return err
		}

		w, err := wallet.LoadWallet(ctx, repo, clientID)
		if err != nil {
			return err
		}
		remaining := w.Balance

		for i := range due {
			charge := &due[i]
			if err := repo.MarkExpired(ctx, charge.ID, now); err != nil {
				if errors.Is(err, repositories.ErrStatusConflict) {
					// another run got there first; start over
					return apperrors.ErrConcurrentModification.Wrap(err)
				}
				return wallet.MapStoreError("mark expired", err)
			}
			result.ExpiredPoints += charge.Amount

			portion := charge.Amount
			if portion > remaining {
				portion = remaining
			}
			if portion == 0 {
				continue
			}
			remaining -= portion

			sourceID := charge.ID
			row := models.PointTransaction{
				ClientID:            clientID,
				Type:                models.TransactionTypeExpired,
				Amount:              portion,
				Status:              models.TransactionStatusCompleted,
				Description:         fmt.Sprintf("%s %s", wallet.DescExpiredPrefix, charge.ID),
				SourceTransactionID: &sourceID,
				Metadata: models.NewJSON(map[string]interface{}{
					"charged_amount": charge.Amount,
					"expires_at":     charge.ExpiresAt.Format(time.RFC3339),
				}),
			}
			if err := wallet.AppendTransaction(ctx, repo, &row); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, row)
			result.DeductedPoints += portion
		}

		if result.DeductedPoints > 0 {
			if err := wallet.WriteBalance(ctx, repo, w, remaining); err != nil {
				return err
			}
		}
		result.Processed = true
		result.Balance = w.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Processed {
		return &result, nil
	}

	if err := p.cache.InvalidateWallet(ctx, clientID); err != nil {
		p.logger.Warn("wallet cache invalidation failed", zap.String("client_id", clientID), zap.Error(err))
	}
	p.publish(ctx, result)
	p.logger.Info("points expired",
		zap.String("client_id", clientID),
		zap.Int64("expired_points", result.ExpiredPoints),
		zap.Int64("deducted_points", result.DeductedPoints),
		zap.Int64("balance", result.Balance))
	return &result, nil
}

// dueCharges lists unprocessed completed charges expiring at or before now,
// oldest expiry first.
func (p *Processor) dueCharges(ctx context.Context, repo repositories.LedgerRepository, clientID string, now time.Time) ([]models.PointTransaction, error) {
	charges, err := repo.ListTransactions(ctx, repositories.TransactionFilter{
		ClientID: clientID,
		Type:     models.TransactionTypeCharge,
		Status:   models.TransactionStatusCompleted,
		Order:    repositories.SortOldestFirst,
	})
	if err != nil {
		return nil, wallet.MapStoreError("list charges", err)
	}

	due := charges[:0]
	for _, c := range charges {
		if c.IsExpirable(now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ExpiresAt.Before(*due[j].ExpiresAt)
	})
	return due, nil
}

// GetExpiringPoints lists completed charges expiring within the next days
// days, soonest first. days <= 0 uses the configured threshold.
func (p *Processor) GetExpiringPoints(ctx context.Context, clientID string, days int) ([]models.PointTransaction, error) {
	if clientID == "" {
		return nil, apperrors.ErrInvalidClient
	}
	if days <= 0 {
		days = p.config.ExpiringThresholdDays
	}

	charges, err := p.repo.ListTransactions(ctx, repositories.TransactionFilter{
		ClientID: clientID,
		Type:     models.TransactionTypeCharge,
		Status:   models.TransactionStatusCompleted,
	})
	if err != nil {
		return nil, wallet.MapStoreError("list charges", err)
	}

	now := p.now()
	horizon := now.AddDate(0, 0, days)
	expiring := make([]models.PointTransaction, 0)
	for _, c := range charges {
		if c.ExpiresAt == nil || c.ExpiredAt != nil {
			continue
		}
		if c.ExpiresAt.After(now) && !c.ExpiresAt.After(horizon) {
			expiring = append(expiring, c)
		}
	}
	sort.SliceStable(expiring, func(i, j int) bool {
		return expiring[i].ExpiresAt.Before(*expiring[j].ExpiresAt)
	})
	return expiring, nil
}

func (p *Processor) publish(ctx context.Context, result Result) {
	if len(result.Transactions) == 0 {
		return
	}
	evts := make([]events.LedgerEvent, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		evts = append(evts, events.LedgerEvent{
			Type:          events.PointsExpired,
			ClientID:      tx.ClientID,
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Balance:       result.Balance,
			OccurredAt:    p.now(),
		})
	}
	if err := p.publisher.Publish(ctx, evts...); err != nil {
		p.logger.Warn("failed to publish expiry events", zap.Error(err))
	}
}
