package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalog row read at checkout. Stock is the only column this
// service mutates, always through a conditional update.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Image          string    `gorm:"column:image;not null;default:''"`
	Color          string    `gorm:"column:color;not null;default:''"`
	PriceMinor     int64     `gorm:"column:price_minor;not null"`
	SalePriceMinor *int64    `gorm:"column:sale_price_minor"`
	Stock          int       `gorm:"column:stock;not null;default:0"`
	IsBlocked      bool      `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectivePriceMinor returns the sale price when one is set, otherwise the regular price.
func (p Product) EffectivePriceMinor() int64 {
	if p.SalePriceMinor != nil {
		return *p.SalePriceMinor
	}
	return p.PriceMinor
}
