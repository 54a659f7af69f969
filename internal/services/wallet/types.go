package wallet

import (
	"time"

	"coordy/internal/models"
)

// WalletConfig holds the policy knobs of the service.
type WalletConfig struct {
	// DefaultExpirationDays applies when a charge asks for expiry without
	// naming a period.
	DefaultExpirationDays int
	// MaxRetries bounds optimistic concurrency retries per operation.
	MaxRetries      int
	MaxChargeAmount int64
	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
}

func (c WalletConfig) withDefaults() WalletConfig {
	if c.DefaultExpirationDays <= 0 {
		c.DefaultExpirationDays = DefaultExpirationDays
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxChargeAmount <= 0 {
		c.MaxChargeAmount = DefaultMaxChargeAmount
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ChargeRequest describes a point purchase.
type ChargeRequest struct {
	ClientID string
	Amount   int64
	Method   models.ChargeMethod
	// ExpirationDays: nil means the points never expire, 0 means the
	// configured default, and n > 0 means n days from now.
	ExpirationDays  *int
	PaymentMethodID string
	Description     string
}

// RefundRequest credits back a completed use.
type RefundRequest struct {
	ClientID         string
	UseTransactionID string
	Description      string
}

// Result is the wallet state after a mutation together with the ledger
// row it produced.
type Result struct {
	Wallet      *models.ClientWallet     `json:"wallet"`
	Transaction *models.PointTransaction `json:"transaction"`
}

// ChargeResult is the outcome of Charge.
type ChargeResult = Result

// HistoryPage is one page of a client's ledger, newest first.
type HistoryPage struct {
	Transactions []models.PointTransaction `json:"transactions"`
	Total        int64                     `json:"total"`
	Limit        int                       `json:"limit"`
	Offset       int                       `json:"offset"`
}

// ReconcileReport compares the stored balance with the ledger sum.
type ReconcileReport struct {
	ClientID      string `json:"client_id"`
	StoredBalance int64  `json:"stored_balance"`
	LedgerBalance int64  `json:"ledger_balance"`
	Diverged      bool   `json:"diverged"`
}
