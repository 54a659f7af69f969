package wallet

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "coordy/internal/errors"
	"coordy/internal/events"
	"coordy/internal/models"
	"coordy/internal/repositories"
	"coordy/internal/repositories/memory"
	"coordy/internal/services/payment"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ledger    *memory.Ledger
	cache     *mapCache
	publisher *events.Recorder
	svc       Service
}

func newFixture(t *testing.T, gateway payment.Gateway) *fixture {
	t.Helper()
	if gateway == nil {
		gateway = payment.OfflineGateway{}
	}
	ledger := memory.NewLedger()
	ledger.Now = func() time.Time { return testNow }
	f := &fixture{
		ledger:    ledger,
		cache:     newMapCache(),
		publisher: &events.Recorder{},
	}
	f.svc = NewService(ledger, f.cache, gateway, f.publisher, WalletConfig{
		Now: func() time.Time { return testNow },
	}, nil)
	return f
}

// mapCache is an in-process WalletCache that counts hits.
type mapCache struct {
	mu      sync.Mutex
	wallets map[string]models.ClientWallet
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{wallets: make(map[string]models.ClientWallet)}
}

func (c *mapCache) GetWallet(_ context.Context, clientID string) (*models.ClientWallet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.wallets[clientID]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &w, true, nil
}

func (c *mapCache) SetWallet(_ context.Context, w *models.ClientWallet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets[w.ClientID] = *w
	return nil
}

func (c *mapCache) InvalidateWallet(_ context.Context, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.wallets, clientID)
	return nil
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ChargeCard(ctx context.Context, charge payment.CardCharge) (string, error) {
	args := m.Called(ctx, charge)
	return args.String(0), args.Error(1)
}

func TestGetOrCreateWallet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateWallet(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Balance)

	second, err := f.svc.GetOrCreateWallet(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.svc.GetOrCreateWallet(ctx, "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidClient)
}

func TestCharge_Credit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Charge(ctx, ChargeRequest{
		ClientID:        "client-1",
		Amount:          1000,
		Method:          models.ChargeMethodCredit,
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Wallet.Balance)
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
	assert.Equal(t, models.ChargeMethodCredit, res.Transaction.Method)
	assert.Equal(t, int64(1000), res.Transaction.Amount)
	assert.NotEmpty(t, res.Transaction.PaymentReference)
	assert.Nil(t, res.Transaction.ExpiresAt)

	history, err := f.svc.GetTransactionHistory(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{events.PointsCharged}, f.publisher.Types())
	assert.Equal(t, int64(1000), f.publisher.Events[0].Balance)
}

func TestCharge_BankTransferStaysPending(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Charge(ctx, ChargeRequest{
		ClientID: "client-1",
		Amount:   1000,
		Method:   models.ChargeMethodBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Wallet.Balance)
	assert.Equal(t, models.TransactionStatusPending, res.Transaction.Status)
	assert.Equal(t, models.ChargeMethodBankTransfer, res.Transaction.Method)

	balance, err := f.svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, []string{events.PointsChargePending}, f.publisher.Types())
}

func TestCharge_Expiration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	zero, ten := 0, 10
	tests := []struct {
		name string
		days *int
		want *time.Time
	}{
		{name: "no expiry", days: nil, want: nil},
		{name: "default period", days: &zero, want: ptrTime(testNow.AddDate(0, 0, DefaultExpirationDays))},
		{name: "explicit period", days: &ten, want: ptrTime(testNow.AddDate(0, 0, 10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Charge(ctx, ChargeRequest{
				ClientID:       "client-1",
				Amount:         100,
				Method:         models.ChargeMethodCredit,
				ExpirationDays: tt.days,
			})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, res.Transaction.ExpiresAt)
				return
			}
			require.NotNil(t, res.Transaction.ExpiresAt)
			assert.True(t, tt.want.Equal(*res.Transaction.ExpiresAt))
		})
	}

	tx, err := f.svc.ChargeWithExpiration(ctx, "client-1", 100, models.ChargeMethodBankTransfer, 0, "")
	require.NoError(t, err)
	require.NotNil(t, tx.ExpiresAt)
	assert.True(t, testNow.AddDate(0, 0, 365).Equal(*tx.ExpiresAt))
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
}

func TestCharge_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	negative := -1

	tests := []struct {
		name string
		req  ChargeRequest
		want error
	}{
		{name: "missing client", req: ChargeRequest{Amount: 1, Method: models.ChargeMethodCredit}, want: apperrors.ErrInvalidClient},
		{name: "zero amount", req: ChargeRequest{ClientID: "c", Method: models.ChargeMethodCredit}, want: apperrors.ErrInvalidAmount},
		{name: "over maximum", req: ChargeRequest{ClientID: "c", Amount: DefaultMaxChargeAmount + 1, Method: models.ChargeMethodCredit}, want: apperrors.ErrInvalidAmount},
		{name: "unknown method", req: ChargeRequest{ClientID: "c", Amount: 1, Method: "cash"}, want: apperrors.ErrInvalidMethod},
		{name: "negative expiry", req: ChargeRequest{ClientID: "c", Amount: 1, Method: models.ChargeMethodCredit, ExpirationDays: &negative}, want: apperrors.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Charge(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, total, err := f.svc.ListWallets(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCharge_DeclinedCardWritesNothing(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ChargeCard", mock.Anything, mock.MatchedBy(func(c payment.CardCharge) bool {
		return c.ClientID == "client-1" && c.Amount == 500 && c.IdempotencyKey != ""
	})).Return("", apperrors.ErrPaymentDeclined)

	f := newFixture(t, gw)
	ctx := context.Background()

	_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 500, Method: models.ChargeMethodCredit, PaymentMethodID: "pm_x"})
	assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)

	history, err := f.svc.GetTransactionHistory(ctx, "client-1")
	require.NoError(t, err)
	assert.Empty(t, history)
	balance, err := f.svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Zero(t, balance)
	gw.AssertExpectations(t)
}

func TestChargeWithExpiration_CreditChargesTheCard(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ChargeCard", mock.Anything, mock.MatchedBy(func(c payment.CardCharge) bool {
		return c.ClientID == "client-1" && c.Amount == 1000 && c.PaymentMethodID == "pm_card_visa"
	})).Return("pi_123", nil)

	f := newFixture(t, gw)
	ctx := context.Background()

	tx, err := f.svc.ChargeWithExpiration(ctx, "client-1", 1000, models.ChargeMethodCredit, 365, "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, "pi_123", tx.PaymentReference)
	require.NotNil(t, tx.ExpiresAt)
	assert.True(t, testNow.AddDate(0, 0, 365).Equal(*tx.ExpiresAt))

	balance, err := f.svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
	gw.AssertExpectations(t)
}

func TestUse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 1000, Method: models.ChargeMethodCredit})
	require.NoError(t, err)

	t.Run("insufficient balance changes nothing", func(t *testing.T) {
		_, err := f.svc.Use(ctx, "client-1", 1001, "too much")
		assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

		balance, err := f.svc.GetBalance(ctx, "client-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
		history, err := f.svc.GetTransactionHistory(ctx, "client-1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("debit within balance", func(t *testing.T) {
		res, err := f.svc.Use(ctx, "client-1", 400, "lesson")
		require.NoError(t, err)
		assert.Equal(t, int64(600), res.Wallet.Balance)
		assert.Equal(t, models.TransactionTypeUse, res.Transaction.Type)
		assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
		assert.Equal(t, "lesson", res.Transaction.Description)
	})

	t.Run("invalid amount", func(t *testing.T) {
		_, err := f.svc.Use(ctx, "client-1", 0, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	})

	t.Run("new client has nothing to spend", func(t *testing.T) {
		_, err := f.svc.Use(ctx, "client-2", 1, "")
		assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	})
}

func TestBookingScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tick := 0
	f.ledger.Now = func() time.Time {
		tick++
		return testNow.Add(time.Duration(tick) * time.Second)
	}

	res, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 5000, Method: models.ChargeMethodCredit})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Wallet.Balance)

	res, err = f.svc.Use(ctx, "client-1", 3000, "booking X")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Wallet.Balance)

	history, err := f.svc.GetTransactionHistory(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.TransactionTypeUse, history[0].Type)
	assert.Equal(t, models.TransactionTypeCharge, history[1].Type)

	res, err = f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 2000, Method: models.ChargeMethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Wallet.Balance)
	assert.Equal(t, models.TransactionStatusPending, res.Transaction.Status)

	page, err := f.svc.GetTransactionHistoryPage(ctx, "client-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, models.TransactionStatusPending, page.Transactions[0].Status)
}

func TestRefund(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 1000, Method: models.ChargeMethodCredit})
	require.NoError(t, err)
	used, err := f.svc.Use(ctx, "client-1", 300, "booking")
	require.NoError(t, err)

	res, err := f.svc.Refund(ctx, RefundRequest{ClientID: "client-1", UseTransactionID: used.Transaction.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Wallet.Balance)
	assert.Equal(t, models.TransactionTypeRefund, res.Transaction.Type)
	assert.Equal(t, int64(300), res.Transaction.Amount)
	require.NotNil(t, res.Transaction.SourceTransactionID)
	assert.Equal(t, used.Transaction.ID, *res.Transaction.SourceTransactionID)

	_, err = f.svc.Refund(ctx, RefundRequest{ClientID: "client-1", UseTransactionID: used.Transaction.ID})
	assert.ErrorIs(t, err, apperrors.ErrTransactionMismatch)

	_, err = f.svc.Refund(ctx, RefundRequest{ClientID: "client-2", UseTransactionID: used.Transaction.ID})
	assert.Error(t, err)

	_, err = f.svc.Refund(ctx, RefundRequest{ClientID: "client-1", UseTransactionID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)

	report, err := f.svc.Reconcile(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, report.Diverged)
	assert.Equal(t, []string{events.PointsCharged, events.PointsUsed, events.PointsRefunded}, f.publisher.Types())
}

func TestGetBalanceReadsThroughCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 700, Method: models.ChargeMethodCredit})
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
	assert.Equal(t, 0, f.cache.hits)

	balance, err = f.svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.Use(ctx, "client-1", 200, "")
	require.NoError(t, err)
	balance, err = f.svc.GetBalance(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance, "mutation must invalidate the snapshot")
}

func TestLedgerIdentityHoldsForRandomSequences(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var expected int64
	for i := 0; i < 200; i++ {
		amount := int64(rng.Intn(500) + 1)
		if rng.Intn(2) == 0 {
			_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: amount, Method: models.ChargeMethodCredit})
			require.NoError(t, err)
			expected += amount
			continue
		}
		_, err := f.svc.Use(ctx, "client-1", amount, "")
		if amount > expected {
			assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
			continue
		}
		require.NoError(t, err)
		expected -= amount
	}

	report, err := f.svc.Reconcile(ctx, "client-1")
	require.NoError(t, err)
	assert.False(t, report.Diverged)
	assert.Equal(t, expected, report.StoredBalance)
	assert.Equal(t, expected, report.LedgerBalance)
}

func TestConcurrentUsesNeverOverdraw(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: "client-1", Amount: 150, Method: models.ChargeMethodCredit})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Use(ctx, "client-1", 10, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 15, succeeded)
	report, err := f.svc.Reconcile(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.StoredBalance)
	assert.False(t, report.Diverged)
}

// conflictingLedger fails the first n balance writes with a version
// conflict, as a concurrent writer would.
type conflictingLedger struct {
	*memory.Ledger
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (c *conflictingLedger) ExecuteInTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	return c.Ledger.ExecuteInTransaction(ctx, func(repo repositories.LedgerRepository) error {
		return fn(conflictingTx{LedgerRepository: repo, parent: c})
	})
}

type conflictingTx struct {
	repositories.LedgerRepository
	parent *conflictingLedger
}

func (t conflictingTx) UpdateWalletBalance(ctx context.Context, w *models.ClientWallet, balance int64) error {
	t.parent.mu.Lock()
	t.parent.attempts++
	conflict := t.parent.conflicts > 0
	if conflict {
		t.parent.conflicts--
	}
	t.parent.mu.Unlock()
	if conflict {
		return repositories.ErrConcurrentModification
	}
	return t.LedgerRepository.UpdateWalletBalance(ctx, w, balance)
}

func TestVersionConflictsAreRetried(t *testing.T) {
	ctx := context.Background()

	t.Run("retry succeeds", func(t *testing.T) {
		repo := &conflictingLedger{Ledger: memory.NewLedger(), conflicts: 2}
		svc := NewService(repo, nil, payment.OfflineGateway{}, nil, WalletConfig{MaxRetries: 3}, nil)

		res, err := svc.Charge(ctx, ChargeRequest{ClientID: "c", Amount: 100, Method: models.ChargeMethodCredit})
		require.NoError(t, err)
		assert.Equal(t, int64(100), res.Wallet.Balance)
		assert.Equal(t, 3, repo.attempts)

		history, err := svc.GetTransactionHistory(ctx, "c")
		require.NoError(t, err)
		assert.Len(t, history, 1, "rolled back attempts leave no rows")
	})

	t.Run("retries exhausted", func(t *testing.T) {
		repo := &conflictingLedger{Ledger: memory.NewLedger(), conflicts: 10}
		svc := NewService(repo, nil, payment.OfflineGateway{}, nil, WalletConfig{MaxRetries: 2}, nil)

		_, err := svc.Charge(ctx, ChargeRequest{ClientID: "c", Amount: 100, Method: models.ChargeMethodCredit})
		assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)
		assert.Equal(t, 3, repo.attempts)

		balance, err := svc.GetBalance(ctx, "c")
		require.NoError(t, err)
		assert.Zero(t, balance)
	})
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	err := MapStoreError("list wallets", boom)
	assert.ErrorIs(t, err, apperrors.ErrStoreFailure)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, MapStoreError("x", repositories.ErrStatusConflict), apperrors.ErrTransactionNotPending)
	assert.Nil(t, MapStoreError("x", nil))
}

func TestReconcileAllFindsDivergence(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.svc.Charge(ctx, ChargeRequest{ClientID: id, Amount: 100, Method: models.ChargeMethodCredit})
		require.NoError(t, err)
	}

	// Corrupt b behind the service's back.
	w, err := f.ledger.GetWalletByClientID(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, f.ledger.UpdateWalletBalance(ctx, w, 999))

	reports, err := f.svc.ReconcileAll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "b", reports[0].ClientID)
	assert.Equal(t, int64(999), reports[0].StoredBalance)
	assert.Equal(t, int64(100), reports[0].LedgerBalance)

	_, err = f.svc.Reconcile(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
