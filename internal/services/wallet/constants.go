package wallet

import "time"

// Default configuration values
const (
	DefaultExpirationDays  = 365
	DefaultMaxRetries      = 3
	DefaultMaxChargeAmount = 1_000_000
	DefaultHistoryLimit    = 20
	MaxHistoryLimit        = 100
	DefaultReconcileBatch  = 100
)

// retryBackoff is the base pause between optimistic concurrency retries.
const retryBackoff = 5 * time.Millisecond

// Ledger descriptions written when the caller gives none.
const (
	descCreditCharge  = "Point charge (credit card)"
	descBankCharge    = "Point charge (bank transfer, awaiting approval)"
	descUse           = "Point use"
	descRefundPrefix  = "Refund of point use"
	DescApproved      = "Bank transfer confirmed by admin"
	DescRejected      = "Bank transfer rejected by admin"
	DescExpiredPrefix = "Points expired from charge"
)
