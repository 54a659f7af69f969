package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coordy/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{
		db: db,
	}
}

func (r *ledgerRepository) GetWalletByClientID(ctx context.Context, clientID string) (*models.ClientWallet, error) {
	var wallet models.ClientWallet
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) CreateWallet(ctx context.Context, wallet *models.ClientWallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) UpdateWalletBalance(ctx context.Context, wallet *models.ClientWallet, balance int64) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ClientWallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":    balance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	wallet.Balance = balance
	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}

func (r *ledgerRepository) ListWallets(ctx context.Context, limit, offset int) ([]models.ClientWallet, int64, error) {
	var wallets []models.ClientWallet
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.ClientWallet{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count wallets: %w", err)
	}
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&wallets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, total, nil
}

func (r *ledgerRepository) CreateTransaction(ctx context.Context, tx *models.PointTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetTransactionByID(ctx context.Context, id string) (*models.PointTransaction, error) {
	var tx models.PointTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.PointTransaction, error) {
	var txs []models.PointTransaction

	q := applyFilter(r.db.WithContext(ctx).Model(&models.PointTransaction{}), filter)
	if filter.Order == SortOldestFirst {
		q = q.Order("created_at ASC, seq ASC")
	} else {
		q = q.Order("created_at DESC, seq DESC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (r *ledgerRepository) CountTransactions(ctx context.Context, filter TransactionFilter) (int64, error) {
	var total int64
	q := applyFilter(r.db.WithContext(ctx).Model(&models.PointTransaction{}), filter)
	if err := q.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update StatusUpdate) (*models.PointTransaction, error) {
	fields := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update.Description != "" {
		fields["description"] = update.Description
	}
	if update.ReviewedBy != "" {
		fields["reviewed_by"] = update.ReviewedBy
	}
	if update.ReviewedAt != nil {
		fields["reviewed_at"] = *update.ReviewedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetTransactionByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusConflict
	}
	return r.GetTransactionByID(ctx, id)
}

func (r *ledgerRepository) MarkExpired(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Where("id = ? AND expired_at IS NULL", id).
		Updates(map[string]interface{}{"expired_at": at, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to mark transaction expired: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *ledgerRepository) ClientsWithExpirableCharges(ctx context.Context, before time.Time, limit int) ([]string, error) {
	var clientIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Where("type = ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ? AND expired_at IS NULL",
			models.TransactionTypeCharge, models.TransactionStatusCompleted, before).
		Distinct("client_id").
		Order("client_id").
		Limit(limit).
		Pluck("client_id", &clientIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clients with expirable charges: %w", err)
	}
	return clientIDs, nil
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &ledgerRepository{db: tx}
		return fn(txRepo)
	})
}

func applyFilter(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SourceTransactionID != "" {
		q = q.Where("source_transaction_id = ?", f.SourceTransactionID)
	}
	return q
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
