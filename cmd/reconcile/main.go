// Command reconcile compares every stored wallet balance with the sum of
// its ledger and lists the wallets that diverge. It exits 1 when any
// divergence is found and 2 when the check itself fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"coordy/internal/config"
	"coordy/internal/logging"
	"coordy/internal/repositories"
	"coordy/internal/services/payment"
	"coordy/internal/services/wallet"

	"go.uber.org/zap"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the process exit code so deferred cleanup runs before
// the process exits.
func realMain() int {
	config.LoadEnv()
	cfg := config.Load()

	batch := flag.Int("batch", wallet.DefaultReconcileBatch, "wallets read per page")
	client := flag.String("client", "", "reconcile a single client id")
	flag.Parse()

	zl, err := logging.New(cfg.Env)
	if err != nil {
		log.Print(err)
		return 2
	}
	defer zl.Sync() //nolint:errcheck

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		zl.Error("database init failed", zap.Error(err))
		return 2
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			zl.Warn("failed to close database connection", zap.Error(err))
		}
	}()

	// Reconciliation never charges cards.
	svc := wallet.NewService(repositories.NewLedgerRepository(db), nil, payment.OfflineGateway{}, nil, wallet.WalletConfig{}, zl)

	reports, err := run(context.Background(), svc, *client, *batch)
	if err != nil {
		zl.Error("reconciliation failed", zap.Error(err))
		return 2
	}

	return finish(os.Stdout, zl, reports)
}

// finish prints the divergent wallets and returns the exit code.
func finish(out io.Writer, zl *zap.Logger, reports []wallet.ReconcileReport) int {
	if len(reports) == 0 {
		zl.Info("all wallets match their ledger")
		return 0
	}
	printReports(out, reports)
	zl.Error("wallets diverge from their ledger", zap.Int("count", len(reports)))
	return 1
}

// run returns the divergent reports for one client or for every wallet.
func run(ctx context.Context, svc wallet.Service, clientID string, batch int) ([]wallet.ReconcileReport, error) {
	if clientID == "" {
		return svc.ReconcileAll(ctx, batch)
	}
	report, err := svc.Reconcile(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !report.Diverged {
		return nil, nil
	}
	return []wallet.ReconcileReport{*report}, nil
}

func printReports(out io.Writer, reports []wallet.ReconcileReport) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tSTORED\tLEDGER\tDIFF")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.ClientID, r.StoredBalance, r.LedgerBalance, r.StoredBalance-r.LedgerBalance)
	}
	w.Flush()
}
