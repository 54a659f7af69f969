package wallet

import (
	"context"

	"coordy/internal/models"
)

// Service defines the wallet service interface
type Service interface {
	// Wallet lookup
	GetOrCreateWallet(ctx context.Context, clientID string) (*models.ClientWallet, error)
	GetBalance(ctx context.Context, clientID string) (int64, error)
	ListWallets(ctx context.Context, limit, offset int) ([]models.ClientWallet, int64, error)

	// Balance mutations
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	ChargeWithExpiration(ctx context.Context, clientID string, amount int64, method models.ChargeMethod, expirationDays int, paymentMethodID string) (*models.PointTransaction, error)
	Use(ctx context.Context, clientID string, amount int64, description string) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*Result, error)

	// History
	GetTransactionHistory(ctx context.Context, clientID string) ([]models.PointTransaction, error)
	GetTransactionHistoryPage(ctx context.Context, clientID string, limit, offset int) (*HistoryPage, error)

	// Reconciliation
	Reconcile(ctx context.Context, clientID string) (*ReconcileReport, error)
	ReconcileAll(ctx context.Context, batchSize int) ([]ReconcileReport, error)
}
