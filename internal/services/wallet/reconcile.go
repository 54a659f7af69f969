package wallet

import (
	"context"

	"go.uber.org/zap"

	"coordy/internal/models"
	"coordy/internal/repositories"
)

// LedgerBalance sums the completed rows of a client's ledger.
func LedgerBalance(txs []models.PointTransaction) int64 {
	var sum int64
	for i := range txs {
		if txs[i].Status != models.TransactionStatusCompleted {
			continue
		}
		sum += txs[i].SignedAmount()
	}
	return sum
}

func (s *service) Reconcile(ctx context.Context, clientID string) (*ReconcileReport, error) {
	if err := validateClient(clientID); err != nil {
		return nil, err
	}
	w, err := LoadWallet(ctx, s.repo, clientID)
	if err != nil {
		return nil, err
	}
	return s.reconcileWallet(ctx, w)
}

func (s *service) reconcileWallet(ctx context.Context, w *models.ClientWallet) (*ReconcileReport, error) {
	txs, err := s.repo.ListTransactions(ctx, repositories.TransactionFilter{ClientID: w.ClientID})
	if err != nil {
		return nil, MapStoreError("list transactions", err)
	}

	report := &ReconcileReport{
		ClientID:      w.ClientID,
		StoredBalance: w.Balance,
		LedgerBalance: LedgerBalance(txs),
	}
	report.Diverged = report.StoredBalance != report.LedgerBalance
	if report.Diverged {
		s.logger.Error("wallet diverged from ledger",
			zap.String("client_id", w.ClientID),
			zap.Int64("stored_balance", report.StoredBalance),
			zap.Int64("ledger_balance", report.LedgerBalance))
	}
	return report, nil
}

// ReconcileAll pages through every wallet and returns the divergent ones.
func (s *service) ReconcileAll(ctx context.Context, batchSize int) ([]ReconcileReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultReconcileBatch
	}

	var diverged []ReconcileReport
	checked := 0
	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return diverged, err
		}
		wallets, total, err := s.repo.ListWallets(ctx, batchSize, offset)
		if err != nil {
			return diverged, MapStoreError("list wallets", err)
		}
		for i := range wallets {
			report, err := s.reconcileWallet(ctx, &wallets[i])
			if err != nil {
				return diverged, err
			}
			checked++
			if report.Diverged {
				diverged = append(diverged, *report)
			}
		}
		if len(wallets) == 0 || int64(offset+len(wallets)) >= total {
			break
		}
	}

	s.logger.Info("reconciliation finished",
		zap.Int("checked", checked),
		zap.Int("diverged", len(diverged)))
	return diverged, nil
}
