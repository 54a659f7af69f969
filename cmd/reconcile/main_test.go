package main

import (
	"bytes"
	"context"
	"testing"

	"coordy/internal/models"
	"coordy/internal/repositories/memory"
	"coordy/internal/services/payment"
	"coordy/internal/services/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunReportsDivergentWallets(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	svc := wallet.NewService(ledger, nil, payment.OfflineGateway{}, nil, wallet.WalletConfig{}, nil)

	_, err := svc.Charge(ctx, wallet.ChargeRequest{ClientID: "healthy", Amount: 500, Method: models.ChargeMethodCredit})
	require.NoError(t, err)
	_, err = svc.Charge(ctx, wallet.ChargeRequest{ClientID: "drifted", Amount: 500, Method: models.ChargeMethodCredit})
	require.NoError(t, err)

	// Move the stored balance without a ledger row.
	w, err := ledger.GetWalletByClientID(ctx, "drifted")
	require.NoError(t, err)
	require.NoError(t, ledger.UpdateWalletBalance(ctx, w, 650))

	reports, err := run(ctx, svc, "", 1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "drifted", reports[0].ClientID)
	assert.Equal(t, int64(650), reports[0].StoredBalance)
	assert.Equal(t, int64(500), reports[0].LedgerBalance)

	reports, err = run(ctx, svc, "healthy", 0)
	require.NoError(t, err)
	assert.Empty(t, reports)

	var out bytes.Buffer
	printReports(&out, []wallet.ReconcileReport{{ClientID: "drifted", StoredBalance: 650, LedgerBalance: 500, Diverged: true}})
	assert.Contains(t, out.String(), "drifted")
	assert.Contains(t, out.String(), "150")
}

func TestFinishReturnsExitCode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	zl := zap.New(core)

	var out bytes.Buffer
	assert.Equal(t, 0, finish(&out, zl, nil))
	assert.Empty(t, out.String())

	code := finish(&out, zl, []wallet.ReconcileReport{{ClientID: "drifted", StoredBalance: 10, LedgerBalance: 0, Diverged: true}})
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "drifted")
	require.Equal(t, 1, logs.FilterMessage("wallets diverge from their ledger").Len())
}
