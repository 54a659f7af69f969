package repositories

import (
	"context"
	"errors"
	"time"

	"coordy/internal/models"
)

var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrDuplicateWallet        = errors.New("wallet already exists")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrStatusConflict         = errors.New("transaction status changed")
	ErrConcurrentModification = errors.New("wallet version changed")
	ErrReservationNotFound    = errors.New("reservation not found")
)

// SortOrder orders ledger listings by created_at, then by insertion
// sequence for rows created in the same instant.
type SortOrder string

const (
	SortNewestFirst SortOrder = "desc"
	SortOldestFirst SortOrder = "asc"
)

// TransactionFilter is a conjunction of equality predicates. Zero values
// are ignored.
type TransactionFilter struct {
	ClientID            string
	Type                models.TransactionType
	Method              models.ChargeMethod
	Status              models.TransactionStatus
	SourceTransactionID string
	Order               SortOrder
	Limit               int
	Offset              int
}

// LedgerRepository is the ledger store: one wallet row per client plus
// the point transaction log.
type LedgerRepository interface {
	// Wallet operations
	GetWalletByClientID(ctx context.Context, clientID string) (*models.ClientWallet, error)
	CreateWallet(ctx context.Context, wallet *models.ClientWallet) error
	// UpdateWalletBalance writes balance only if the stored version still
	// equals wallet.Version, then bumps wallet.Version.
	UpdateWalletBalance(ctx context.Context, wallet *models.ClientWallet, balance int64) error
	ListWallets(ctx context.Context, limit, offset int) ([]models.ClientWallet, int64, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, tx *models.PointTransaction) error
	GetTransactionByID(ctx context.Context, id string) (*models.PointTransaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.PointTransaction, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int64, error)
	// TransitionStatus moves a row from one status to another, failing with
	// ErrStatusConflict if the row is no longer in from.
	TransitionStatus(ctx context.Context, id string, from, to models.TransactionStatus, update StatusUpdate) (*models.PointTransaction, error)
	MarkExpired(ctx context.Context, id string, at time.Time) error
	// ClientsWithExpirableCharges lists distinct clients owning completed,
	// unprocessed charges with expires_at <= before.
	ClientsWithExpirableCharges(ctx context.Context, before time.Time, limit int) ([]string, error)

	// ExecuteInTransaction runs fn against a repository bound to a single
	// store transaction; any error rolls everything back.
	ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error
}

// StatusUpdate carries the fields written together with a status change.
type StatusUpdate struct {
	Description string
	ReviewedBy  string
	ReviewedAt  *time.Time
}

// ReservationRepository persists bookings paid with points.
type ReservationRepository interface {
	Create(ctx context.Context, r *models.Reservation) error
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	Update(ctx context.Context, r *models.Reservation) error
	ListByClient(ctx context.Context, clientID string) ([]models.Reservation, error)
}
