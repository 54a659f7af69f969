package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "coordy/internal/errors"
	"coordy/internal/models"
	"coordy/internal/repositories/memory"
	"coordy/internal/services/payment"
	"coordy/internal/services/wallet"
)

var startsAt = time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)

func setup(t *testing.T, balance int64) (*Service, *memory.Reservations, wallet.Service) {
	t.Helper()
	ledger := memory.NewLedger()
	wallets := wallet.NewService(ledger, nil, payment.OfflineGateway{}, nil, wallet.WalletConfig{}, nil)
	if balance > 0 {
		_, err := wallets.Charge(context.Background(), wallet.ChargeRequest{
			ClientID: "client-1",
			Amount:   balance,
			Method:   models.ChargeMethodCredit,
		})
		require.NoError(t, err)
	}
	repo := memory.NewReservations()
	return NewService(repo, wallets, nil), repo, wallets
}

func TestCreate(t *testing.T) {
	svc, _, wallets := setup(t, 5000)
	ctx := context.Background()

	res, err := svc.Create(ctx, CreateRequest{ClientID: "client-1", ServiceID: "yoga-101", StartsAt: startsAt, Points: 3000})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, res.Status)
	assert.NotEmpty(t, res.UseTransactionID)

	balance, err := wallets.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance)

	listed, err := svc.List(ctx, "client-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCreate_InsufficientFundsBooksNothing(t *testing.T) {
	svc, repo, _ := setup(t, 100)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{ClientID: "client-1", ServiceID: "yoga-101", StartsAt: startsAt, Points: 3000})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	listed, err := repo.ListByClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := setup(t, 0)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{ServiceID: "s", StartsAt: startsAt, Points: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidClient)
	_, err = svc.Create(ctx, CreateRequest{ClientID: "c", StartsAt: startsAt, Points: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidReservation)
	_, err = svc.Create(ctx, CreateRequest{ClientID: "c", ServiceID: "s", Points: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidReservation)
	_, err = svc.Create(ctx, CreateRequest{ClientID: "c", ServiceID: "s", StartsAt: startsAt})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
}

func TestCreate_StoreFailureRefundsDebit(t *testing.T) {
	svc, repo, wallets := setup(t, 5000)
	ctx := context.Background()
	repo.FailCreate = errors.New("disk full")

	_, err := svc.Create(ctx, CreateRequest{ClientID: "client-1", ServiceID: "yoga-101", StartsAt: startsAt, Points: 3000})
	assert.ErrorIs(t, err, apperrors.ErrStoreFailure)

	balance, err := wallets.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	history, err := wallets.GetTransactionHistory(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.TransactionTypeRefund, history[0].Type)

	report, err := wallets.Reconcile(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, report.Diverged)
}

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) Use(ctx context.Context, clientID string, amount int64, description string) (*wallet.Result, error) {
	args := m.Called(ctx, clientID, amount, description)
	res, _ := args.Get(0).(*wallet.Result)
	return res, args.Error(1)
}

func (m *mockWallet) Refund(ctx context.Context, req wallet.RefundRequest) (*wallet.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*wallet.Result)
	return res, args.Error(1)
}

func TestCreate_FailedCompensationJoinsErrors(t *testing.T) {
	w := new(mockWallet)
	w.On("Use", mock.Anything, "client-1", int64(300), mock.Anything).Return(&wallet.Result{
		Wallet:      &models.ClientWallet{ClientID: "client-1", Balance: 0},
		Transaction: &models.PointTransaction{ID: "use-1"},
	}, nil)
	refundErr := apperrors.ErrStoreFailure.Withf("ledger unavailable")
	w.On("Refund", mock.Anything, mock.MatchedBy(func(r wallet.RefundRequest) bool {
		return r.UseTransactionID == "use-1"
	})).Return(nil, refundErr)

	repo := memory.NewReservations()
	repo.FailCreate = errors.New("disk full")
	svc := NewService(repo, w, nil)

	_, err := svc.Create(context.Background(), CreateRequest{ClientID: "client-1", ServiceID: "s", StartsAt: startsAt, Points: 300})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "use-1")
	w.AssertExpectations(t)
}

func TestCancel(t *testing.T) {
	svc, _, wallets := setup(t, 5000)
	ctx := context.Background()
	res, err := svc.Create(ctx, CreateRequest{ClientID: "client-1", ServiceID: "yoga-101", StartsAt: startsAt, Points: 3000})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "client-2", res.ID)
	assert.ErrorIs(t, err, apperrors.ErrReservationNotFound)

	cancelled, err := svc.Cancel(ctx, "client-1", res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.RefundTransactionID)

	balance, err := wallets.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	_, err = svc.Cancel(ctx, "client-1", res.ID)
	assert.ErrorIs(t, err, apperrors.ErrReservationNotCancellable)

	balance, err = wallets.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	_, err = svc.Cancel(ctx, "client-1", "missing")
	assert.ErrorIs(t, err, apperrors.ErrReservationNotFound)
}
