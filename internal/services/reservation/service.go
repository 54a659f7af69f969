// Package reservation books services paid with points.
//
// Booking debits first and persists the reservation second. When the
// second write fails the debit is refunded, so a client is never charged
// for a booking that does not exist.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "coordy/internal/errors"
	"coordy/internal/logging"
	"coordy/internal/models"
	"coordy/internal/repositories"
	"coordy/internal/services/wallet"
)

// Wallet is the part of the wallet service bookings depend on.
type Wallet interface {
	Use(ctx context.Context, clientID string, amount int64, description string) (*wallet.Result, error)
	Refund(ctx context.Context, req wallet.RefundRequest) (*wallet.Result, error)
}

type CreateRequest struct {
	ClientID    string
	ServiceID   string
	StartsAt    time.Time
	Points      int64
	Description string
}

type Service struct {
	repo    repositories.ReservationRepository
	wallets Wallet
	logger  *zap.Logger
}

func NewService(repo repositories.ReservationRepository, wallets Wallet, logger *zap.Logger) *Service {
	if repo == nil {
		panic("repo is required")
	}
	if wallets == nil {
		panic("wallet service is required")
	}
	return &Service{
		repo:    repo,
		wallets: wallets,
		logger:  logging.OrNop(logger).Named("reservation"),
	}
}

// Create debits the booking price and records the reservation. Insufficient
// funds leave no reservation behind.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, apperrors.ErrInvalidClient
	}
	if strings.TrimSpace(req.ServiceID) == "" || req.StartsAt.IsZero() {
		return nil, apperrors.ErrInvalidReservation
	}
	if req.Points <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Booking of service %s at %s", req.ServiceID, req.StartsAt.UTC().Format(time.RFC3339))
	}

	used, err := s.wallets.Use(ctx, req.ClientID, req.Points, description)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		ClientID:         req.ClientID,
		ServiceID:        req.ServiceID,
		StartsAt:         req.StartsAt.UTC(),
		Points:           req.Points,
		Status:           models.ReservationStatusConfirmed,
		Description:      description,
		UseTransactionID: used.Transaction.ID,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		createErr := wallet.MapStoreError("create reservation", err)
		return nil, s.compensate(ctx, req.ClientID, used.Transaction.ID, createErr)
	}

	s.logger.Info("reservation created",
		zap.String("client_id", res.ClientID),
		zap.String("reservation_id", res.ID),
		zap.String("use_transaction_id", res.UseTransactionID),
		zap.Int64("points", res.Points),
		zap.Int64("balance", used.Wallet.Balance))
	return res, nil
}

// compensate refunds a debit whose reservation could not be stored and
// returns cause, joined with the refund error if that failed too.
func (s *Service) compensate(ctx context.Context, clientID, useID string, cause error) error {
	_, err := s.wallets.Refund(ctx, wallet.RefundRequest{
		ClientID:         clientID,
		UseTransactionID: useID,
		Description:      "Refund for booking that could not be saved",
	})
	if err != nil {
		s.logger.Error("failed to refund debit of unsaved reservation",
			zap.String("client_id", clientID),
			zap.String("use_transaction_id", useID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return errors.Join(cause, fmt.Errorf("refund %s: %w", useID, err))
	}
	s.logger.Warn("reservation failed, debit refunded",
		zap.String("client_id", clientID),
		zap.String("use_transaction_id", useID),
		zap.Error(cause))
	return cause
}

// Cancel cancels a confirmed reservation and refunds its points once.
func (s *Service) Cancel(ctx context.Context, clientID, reservationID string) (*models.Reservation, error) {
	res, err := s.Get(ctx, clientID, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ReservationStatusConfirmed {
		return nil, apperrors.ErrReservationNotCancellable.Withf("reservation %s is %s", res.ID, res.Status)
	}

	refund, err := s.wallets.Refund(ctx, wallet.RefundRequest{
		ClientID:         clientID,
		UseTransactionID: res.UseTransactionID,
		Description:      fmt.Sprintf("Refund for cancelled reservation %s", res.ID),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionMismatch) {
			// a concurrent cancel already refunded it
			return nil, apperrors.ErrReservationNotCancellable.Wrap(err)
		}
		return nil, err
	}

	refundID := refund.Transaction.ID
	res.Status = models.ReservationStatusCancelled
	res.RefundTransactionID = &refundID
	if err := s.repo.Update(ctx, res); err != nil {
		s.logger.Error("refunded reservation could not be marked cancelled",
			zap.String("reservation_id", res.ID),
			zap.String("refund_transaction_id", refundID),
			zap.Error(err))
		return nil, wallet.MapStoreError("update reservation", err)
	}

	s.logger.Info("reservation cancelled",
		zap.String("client_id", clientID),
		zap.String("reservation_id", res.ID),
		zap.Int64("points", res.Points),
		zap.Int64("balance", refund.Wallet.Balance))
	return res, nil
}

// Get returns a reservation owned by clientID.
func (s *Service) Get(ctx context.Context, clientID, reservationID string) (*models.Reservation, error) {
	res, err := s.repo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, wallet.MapStoreError("get reservation", err)
	}
	if res.ClientID != clientID {
		return nil, apperrors.ErrReservationNotFound
	}
	return res, nil
}

func (s *Service) List(ctx context.Context, clientID string) ([]models.Reservation, error) {
	out, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, wallet.MapStoreError("list reservations", err)
	}
	return out, nil
}
