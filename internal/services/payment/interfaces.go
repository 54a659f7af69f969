// Package payment charges client cards for point purchases.
package payment

import "context"

// CardCharge is one card payment backing a credit point charge.
type CardCharge struct {
	ClientID        string
	Amount          int64
	PaymentMethodID string
	// IdempotencyKey makes a retried request reuse the first payment.
	IdempotencyKey string
	Description    string
}

// Gateway charges a card and returns the provider reference. A declined
// card yields an error matching errors.ErrPaymentDeclined.
type Gateway interface {
	ChargeCard(ctx context.Context, charge CardCharge) (string, error)
}
