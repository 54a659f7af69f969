package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientWallet holds the point balance of one client. Version is the
// optimistic concurrency token; every balance write bumps it.
type ClientWallet struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID  string    `gorm:"uniqueIndex;not null" json:"client_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ClientWallet) TableName() string {
	return "client_wallets"
}

func (w *ClientWallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	// Wallets always start empty
	w.Balance = 0
	return nil
}
