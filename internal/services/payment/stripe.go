package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"go.uber.org/zap"

	"coordy/internal/config"
	apperrors "coordy/internal/errors"
	"coordy/internal/logging"
)

// intentCreator is the slice of the Stripe client the gateway needs.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway confirms an off-session PaymentIntent per charge.
type StripeGateway struct {
	intents  intentCreator
	currency string
	logger   *zap.Logger
}

func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		intents: &paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.SecretKey,
		},
		currency: strings.ToLower(cfg.Currency),
		logger:   logging.OrNop(logger),
	}
}

func (g *StripeGateway) ChargeCard(ctx context.Context, charge CardCharge) (string, error) {
	if charge.PaymentMethodID == "" {
		return "", apperrors.ErrPaymentDeclined.Withf("payment method is required")
	}

	pi, err := g.intents.New(g.intentParams(ctx, charge))
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			g.logger.Info("card declined",
				zap.String("client_id", charge.ClientID),
				zap.String("decline_code", string(stripeErr.DeclineCode)))
			return "", apperrors.ErrPaymentDeclined.Wrap(err)
		}
		return "", fmt.Errorf("stripe payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		g.logger.Info("payment intent not settled",
			zap.String("client_id", charge.ClientID),
			zap.String("payment_intent", pi.ID),
			zap.String("status", string(pi.Status)))
		return "", apperrors.ErrPaymentDeclined.Withf("payment %s ended in status %s", pi.ID, pi.Status)
	}
	return pi.ID, nil
}

func (g *StripeGateway) intentParams(ctx context.Context, charge CardCharge) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(charge.Amount),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(charge.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if charge.Description != "" {
		params.Description = stripe.String(charge.Description)
	}
	params.Context = ctx
	if charge.IdempotencyKey != "" {
		params.SetIdempotencyKey(charge.IdempotencyKey)
	}
	params.AddMetadata("client_id", charge.ClientID)
	params.AddMetadata("points", fmt.Sprintf("%d", charge.Amount))
	return params
}
