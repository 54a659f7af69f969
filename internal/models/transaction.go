package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionType string

// Transaction types. charge and refund credit the wallet, use and expired debit it.
const (
	TransactionTypeCharge  TransactionType = "charge"
	TransactionTypeUse     TransactionType = "use"
	TransactionTypeExpired TransactionType = "expired"
	TransactionTypeRefund  TransactionType = "refund"
)

// IsCredit reports whether the type increases the balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeCharge || t == TransactionTypeRefund
}

type ChargeMethod string

const (
	ChargeMethodCredit       ChargeMethod = "credit"
	ChargeMethodBankTransfer ChargeMethod = "bankTransfer"
)

// Valid reports whether m is a supported charge method.
func (m ChargeMethod) Valid() bool {
	return m == ChargeMethodCredit || m == ChargeMethodBankTransfer
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// PointTransaction is one row of the points ledger.
type PointTransaction struct {
	ID          string            `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    string            `gorm:"index:idx_point_tx_client_type_status;not null" json:"client_id"`
	Type        TransactionType   `gorm:"index:idx_point_tx_client_type_status;not null" json:"type"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Method      ChargeMethod      `gorm:"default:''" json:"method,omitempty"`
	Status      TransactionStatus `gorm:"index:idx_point_tx_client_type_status;not null;default:'pending'" json:"status"`
	Description string            `json:"description"`
	ExpiresAt   *time.Time        `gorm:"index" json:"expires_at,omitempty"`

	// ExpiredAt is set on a charge once its expiry has been processed.
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	// SourceTransactionID points from an expired row to its charge, or from
	// a refund row to the use it compensates.
	SourceTransactionID *string `gorm:"type:uuid;index" json:"source_transaction_id,omitempty"`

	PaymentReference string     `json:"payment_reference,omitempty"`
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	Metadata         JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Seq is assigned by the store in insertion order and breaks ties
	// between rows created in the same instant.
	Seq int64 `gorm:"autoIncrement;index" json:"-"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

func (t *PointTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// SignedAmount returns the balance delta the row contributes once completed.
func (t *PointTransaction) SignedAmount() int64 {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return -t.Amount
}

// IsExpirable reports whether the row is a completed, not yet processed
// charge whose expiry is at or before now.
func (t *PointTransaction) IsExpirable(now time.Time) bool {
	return t.Type == TransactionTypeCharge &&
		t.Status == TransactionStatusCompleted &&
		t.ExpiresAt != nil &&
		t.ExpiredAt == nil &&
		!t.ExpiresAt.After(now)
}
