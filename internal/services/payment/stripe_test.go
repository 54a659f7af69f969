package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"

	apperrors "coordy/internal/errors"
)

type mockIntents struct {
	mock.Mock
}

func (m *mockIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	pi, _ := args.Get(0).(*stripe.PaymentIntent)
	return pi, args.Error(1)
}

func newTestGateway(m *mockIntents) *StripeGateway {
	return &StripeGateway{intents: m, currency: "jpy", logger: zap.NewNop()}
}

func TestStripeGateway_ChargeCard(t *testing.T) {
	charge := CardCharge{
		ClientID:        "client-1",
		Amount:          1500,
		PaymentMethodID: "pm_card_visa",
		IdempotencyKey:  "charge-abc",
	}

	t.Run("succeeded intent returns its id", func(t *testing.T) {
		m := new(mockIntents)
		m.On("New", mock.MatchedBy(func(p *stripe.PaymentIntentParams) bool {
			return *p.Amount == 1500 &&
				*p.Currency == "jpy" &&
				*p.PaymentMethod == "pm_card_visa" &&
				*p.Confirm &&
				*p.IdempotencyKey == "charge-abc" &&
				p.Metadata["client_id"] == "client-1"
		})).Return(&stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded}, nil)

		ref, err := newTestGateway(m).ChargeCard(context.Background(), charge)
		require.NoError(t, err)
		assert.Equal(t, "pi_123", ref)
		m.AssertExpectations(t)
	})

	t.Run("card error is a decline", func(t *testing.T) {
		m := new(mockIntents)
		m.On("New", mock.Anything).Return(nil, &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."})

		_, err := newTestGateway(m).ChargeCard(context.Background(), charge)
		assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
	})

	t.Run("unsettled intent is a decline", func(t *testing.T) {
		m := new(mockIntents)
		m.On("New", mock.Anything).Return(&stripe.PaymentIntent{ID: "pi_9", Status: stripe.PaymentIntentStatusRequiresAction}, nil)

		_, err := newTestGateway(m).ChargeCard(context.Background(), charge)
		assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
	})

	t.Run("transport errors are not declines", func(t *testing.T) {
		m := new(mockIntents)
		m.On("New", mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := newTestGateway(m).ChargeCard(context.Background(), charge)
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrPaymentDeclined)
	})

	t.Run("missing payment method", func(t *testing.T) {
		m := new(mockIntents)
		_, err := newTestGateway(m).ChargeCard(context.Background(), CardCharge{ClientID: "c", Amount: 1})
		assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
		m.AssertNotCalled(t, "New", mock.Anything)
	})
}

func TestOfflineGateway(t *testing.T) {
	ref, err := OfflineGateway{}.ChargeCard(context.Background(), CardCharge{PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.Contains(t, ref, "offline_")

	_, err = OfflineGateway{}.ChargeCard(context.Background(), CardCharge{PaymentMethodID: DeclinedPaymentMethod})
	assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
}
