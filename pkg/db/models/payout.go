package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Payout tracks the manual bank/UPI refund owed on a returned COD order.
type Payout struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID                `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"orderId"`
	UserID      uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	AmountMinor int64                    `gorm:"column:amount_minor;not null" json:"amountMinor"`
	Currency    string                   `gorm:"column:currency;type:text;not null;default:'INR'" json:"currency"`
	Status      enums.PayoutStatus       `gorm:"column:status;type:text;not null;default:'pending_destination'" json:"status"`
	Destination *types.PayoutDestination `gorm:"column:destination;type:jsonb;serializer:json" json:"destination,omitempty"`
	Transfer    *types.PayoutTransfer    `gorm:"column:transfer;type:jsonb;serializer:json" json:"transfer,omitempty"`
	Version     int64                    `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Payout) TableName() string { return "payouts" }

func (p *Payout) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}
