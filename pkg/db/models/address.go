package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Address is a saved address-book entry owned by a user.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Type       string    `gorm:"column:type;not null"`
	Name       string    `gorm:"column:name;not null"`
	Apartment  string    `gorm:"column:apartment;not null;default:''"`
	Building   string    `gorm:"column:building;not null"`
	Street     string    `gorm:"column:street;not null"`
	Landmark   string    `gorm:"column:landmark;not null;default:''"`
	City       string    `gorm:"column:city;not null"`
	State      string    `gorm:"column:state;not null"`
	Country    string    `gorm:"column:country;not null"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	Phone      string    `gorm:"column:phone;not null"`
	AltPhone   string    `gorm:"column:alt_phone;not null;default:''"`
	IsDefault  bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Address) TableName() string { return "addresses" }

func (a *Address) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Snapshot copies the address into the immutable form stored on an order.
func (a Address) Snapshot() types.AddressSnapshot {
	return types.AddressSnapshot{
		Type:       a.Type,
		Name:       a.Name,
		Apartment:  a.Apartment,
		Building:   a.Building,
		Street:     a.Street,
		Landmark:   a.Landmark,
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		Phone:      a.Phone,
		AltPhone:   a.AltPhone,
	}
}
