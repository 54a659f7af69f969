package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "coordy/internal/errors"
	"coordy/internal/events"
	"coordy/internal/models"
	"coordy/internal/repositories"
	"coordy/internal/services/payment"
)

type Operation string

const (
	OperationCredit Operation = "credit"
	OperationDebit  Operation = "debit"
)

// walletOperation is one balance change and the ledger row recording it.
type walletOperation struct {
	Operation Operation
	Row       models.PointTransaction
	// prepare runs inside the store transaction before the balance moves
	// and may fill in the row.
	prepare func(ctx context.Context, repo repositories.LedgerRepository, row *models.PointTransaction) error
}

// processOperation applies op atomically and drops the cached snapshot.
func (s *service) processOperation(ctx context.Context, op walletOperation) (*Result, error) {
	var result Result
	err := RunInTransaction(ctx, s.repo, s.config.MaxRetries, func(repo repositories.LedgerRepository) error {
		row := op.Row
		if op.prepare != nil {
			if err := op.prepare(ctx, repo, &row); err != nil {
				return err
			}
		}
		if row.Amount <= 0 {
			return apperrors.ErrInvalidAmount
		}

		w, err := LoadWallet(ctx, repo, row.ClientID)
		if err != nil {
			return err
		}

		balance := w.Balance
		switch op.Operation {
		case OperationDebit:
			if balance < row.Amount {
				return apperrors.ErrInsufficientBalance.Withf("balance %d is below %d", balance, row.Amount)
			}
			balance -= row.Amount
		case OperationCredit:
			balance += row.Amount
		default:
			return fmt.Errorf("unsupported operation: %s", op.Operation)
		}

		if err := WriteBalance(ctx, repo, w, balance); err != nil {
			return err
		}
		if err := AppendTransaction(ctx, repo, &row); err != nil {
			return err
		}
		result = Result{Wallet: w, Transaction: &row}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, op.Row.ClientID)
	return &result, nil
}

func (s *service) validateCharge(req ChargeRequest) error {
	if err := validateClient(req.ClientID); err != nil {
		return err
	}
	if req.Amount <= 0 {
		return apperrors.ErrInvalidAmount
	}
	if req.Amount > s.config.MaxChargeAmount {
		return apperrors.ErrInvalidAmount.Withf("amount exceeds maximum charge of %d points", s.config.MaxChargeAmount)
	}
	if !req.Method.Valid() {
		return apperrors.ErrInvalidMethod
	}
	if req.ExpirationDays != nil && *req.ExpirationDays < 0 {
		return apperrors.ErrInvalidAmount.Withf("expiration days must not be negative")
	}
	return nil
}

func (s *service) expiresAt(days *int) *time.Time {
	if days == nil {
		return nil
	}
	d := *days
	if d == 0 {
		d = s.config.DefaultExpirationDays
	}
	at := s.now().AddDate(0, 0, d)
	return &at
}

// Charge buys points. Card charges are settled with the gateway first and
// credited immediately; bank transfers only record a pending row.
func (s *service) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	if err := s.validateCharge(req); err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreateWallet(ctx, req.ClientID); err != nil {
		return nil, err
	}

	row := models.PointTransaction{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		Type:        models.TransactionTypeCharge,
		Amount:      req.Amount,
		Method:      req.Method,
		Description: req.Description,
		ExpiresAt:   s.expiresAt(req.ExpirationDays),
	}

	if req.Method == models.ChargeMethodBankTransfer {
		return s.chargeBankTransfer(ctx, row)
	}
	return s.chargeCard(ctx, row, req.PaymentMethodID)
}

func (s *service) chargeBankTransfer(ctx context.Context, row models.PointTransaction) (*Result, error) {
	row.Status = models.TransactionStatusPending
	if row.Description == "" {
		row.Description = descBankCharge
	}
	if err := AppendTransaction(ctx, s.repo, &row); err != nil {
		return nil, err
	}
	w, err := LoadWallet(ctx, s.repo, row.ClientID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("bank transfer charge pending",
		zap.String("client_id", row.ClientID),
		zap.String("transaction_id", row.ID),
		zap.Int64("amount", row.Amount))
	s.publish(ctx, events.PointsChargePending, w, &row)
	return &Result{Wallet: w, Transaction: &row}, nil
}

func (s *service) chargeCard(ctx context.Context, row models.PointTransaction, paymentMethodID string) (*Result, error) {
	if row.Description == "" {
		row.Description = descCreditCharge
	}

	ref, err := s.gateway.ChargeCard(ctx, payment.CardCharge{
		ClientID:        row.ClientID,
		Amount:          row.Amount,
		PaymentMethodID: paymentMethodID,
		IdempotencyKey:  row.ID,
		Description:     row.Description,
	})
	if err != nil {
		s.logger.Info("card charge failed",
			zap.String("client_id", row.ClientID),
			zap.Int64("amount", row.Amount),
			zap.Error(err))
		if apperrors.Code(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("charge card: %w", err)
	}

	row.Status = models.TransactionStatusCompleted
	row.PaymentReference = ref
	res, err := s.processOperation(ctx, walletOperation{Operation: OperationCredit, Row: row})
	if err != nil {
		// The card has been charged; operators settle this by hand.
		s.logger.Error("card charged but ledger write failed",
			zap.String("client_id", row.ClientID),
			zap.String("transaction_id", row.ID),
			zap.String("payment_reference", ref),
			zap.Int64("amount", row.Amount),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("points charged",
		zap.String("client_id", row.ClientID),
		zap.String("transaction_id", row.ID),
		zap.Int64("amount", row.Amount),
		zap.Int64("balance", res.Wallet.Balance))
	s.publish(ctx, events.PointsCharged, res.Wallet, res.Transaction)
	return res, nil
}

// ChargeWithExpiration charges points that expire after expirationDays,
// or after the configured default when expirationDays is not positive.
// paymentMethodID is the card to charge for the credit method and is
// ignored for bank transfers.
func (s *service) ChargeWithExpiration(ctx context.Context, clientID string, amount int64, method models.ChargeMethod, expirationDays int, paymentMethodID string) (*models.PointTransaction, error) {
	if expirationDays < 0 {
		expirationDays = 0
	}
	res, err := s.Charge(ctx, ChargeRequest{
		ClientID:        clientID,
		Amount:          amount,
		Method:          method,
		ExpirationDays:  &expirationDays,
		PaymentMethodID: paymentMethodID,
	})
	if err != nil {
		return nil, err
	}
	return res.Transaction, nil
}

// Use debits points, failing with ErrInsufficientBalance when the balance
// does not cover amount.
func (s *service) Use(ctx context.Context, clientID string, amount int64, description string) (*Result, error) {
	if err := validateClient(clientID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if description == "" {
		description = descUse
	}
	if _, err := s.GetOrCreateWallet(ctx, clientID); err != nil {
		return nil, err
	}

	res, err := s.processOperation(ctx, walletOperation{
		Operation: OperationDebit,
		Row: models.PointTransaction{
			ClientID:    clientID,
			Type:        models.TransactionTypeUse,
			Amount:      amount,
			Status:      models.TransactionStatusCompleted,
			Description: description,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("points used",
		zap.String("client_id", clientID),
		zap.String("transaction_id", res.Transaction.ID),
		zap.Int64("amount", amount),
		zap.Int64("balance", res.Wallet.Balance))
	s.publish(ctx, events.PointsUsed, res.Wallet, res.Transaction)
	return res, nil
}

// Refund credits back the full amount of a completed use. A use is
// refunded at most once.
func (s *service) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	if err := validateClient(req.ClientID); err != nil {
		return nil, err
	}
	if req.UseTransactionID == "" {
		return nil, apperrors.ErrTransactionNotFound.Withf("use transaction id is required")
	}

	useID := req.UseTransactionID
	res, err := s.processOperation(ctx, walletOperation{
		Operation: OperationCredit,
		Row: models.PointTransaction{
			ClientID:            req.ClientID,
			Type:                models.TransactionTypeRefund,
			Status:              models.TransactionStatusCompleted,
			Description:         req.Description,
			SourceTransactionID: &useID,
		},
		prepare: func(ctx context.Context, repo repositories.LedgerRepository, row *models.PointTransaction) error {
			use, err := repo.GetTransactionByID(ctx, useID)
			if err != nil {
				return MapStoreError("get transaction", err)
			}
			if use.Type != models.TransactionTypeUse || use.ClientID != row.ClientID || use.Status != models.TransactionStatusCompleted {
				return apperrors.ErrTransactionMismatch.Withf("transaction %s is not a completed use of this client", useID)
			}
			prior, err := repo.CountTransactions(ctx, repositories.TransactionFilter{
				ClientID:            row.ClientID,
				Type:                models.TransactionTypeRefund,
				SourceTransactionID: useID,
			})
			if err != nil {
				return MapStoreError("count refunds", err)
			}
			if prior > 0 {
				return apperrors.ErrTransactionMismatch.Withf("use %s was already refunded", useID)
			}
			row.Amount = use.Amount
			if row.Description == "" {
				row.Description = fmt.Sprintf("%s %s", descRefundPrefix, useID)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("points refunded",
		zap.String("client_id", req.ClientID),
		zap.String("transaction_id", res.Transaction.ID),
		zap.String("use_transaction_id", useID),
		zap.Int64("amount", res.Transaction.Amount),
		zap.Int64("balance", res.Wallet.Balance))
	s.publish(ctx, events.PointsRefunded, res.Wallet, res.Transaction)
	return res, nil
}
