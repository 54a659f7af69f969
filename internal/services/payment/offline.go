package payment

import (
	"context"

	"github.com/google/uuid"

	apperrors "coordy/internal/errors"
)

// DeclinedPaymentMethod is the Stripe test payment method that always
// declines. OfflineGateway declines it too.
const DeclinedPaymentMethod = "pm_card_visa_chargeDeclined"

// OfflineGateway accepts every card without calling out. It serves local
// development when no Stripe key is configured.
type OfflineGateway struct{}

func (OfflineGateway) ChargeCard(_ context.Context, charge CardCharge) (string, error) {
	if charge.PaymentMethodID == DeclinedPaymentMethod {
		return "", apperrors.ErrPaymentDeclined
	}
	return "offline_" + uuid.NewString(), nil
}
