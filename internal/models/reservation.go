package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a booking paid for with points.
type Reservation struct {
	ID                  string            `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID            string            `gorm:"index;not null" json:"client_id"`
	ServiceID           string            `gorm:"index;not null" json:"service_id"`
	StartsAt            time.Time         `json:"starts_at"`
	Points              int64             `gorm:"not null" json:"points"`
	Status              ReservationStatus `gorm:"not null;default:'confirmed'" json:"status"`
	Description         string            `json:"description"`
	UseTransactionID    string            `gorm:"type:uuid" json:"use_transaction_id"`
	RefundTransactionID *string           `gorm:"type:uuid" json:"refund_transaction_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
