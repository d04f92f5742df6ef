package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderItem is the line item snapshot taken when an order is placed.
// Only Status and the reason fields change after placement.
type OrderItem struct {
	LineID         uuid.UUID            `json:"lineId"`
	ProductID      uuid.UUID            `json:"productId"`
	Name           string               `json:"name"`
	Image          string               `json:"image,omitempty"`
	Color          string               `json:"color,omitempty"`
	UnitPriceMinor int64                `json:"unitPriceMinor"`
	Quantity       int                  `json:"quantity"`
	LineTotalMinor int64                `json:"lineTotalMinor"`
	Status         enums.LineItemStatus `json:"status"`
	CancelReason   string               `json:"cancelReason,omitempty"`
	ReturnReason   string               `json:"returnReason,omitempty"`
	CancelledAt    *time.Time           `json:"cancelledAt,omitempty"`
	ReturnedAt     *time.Time           `json:"returnedAt,omitempty"`
}

// AddressSnapshot is the immutable copy of the shipping address stored on an order.
type AddressSnapshot struct {
	Type       string `json:"type" validate:"required,max=30"`
	Name       string `json:"name" validate:"required,max=120"`
	Apartment  string `json:"apartment,omitempty" validate:"max=200"`
	Building   string `json:"building" validate:"required,max=200"`
	Street     string `json:"street" validate:"required,max=200"`
	Landmark   string `json:"landmark" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	Country    string `json:"country" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=12"`
	Phone      string `json:"phone" validate:"required,min=7,max=20"`
	AltPhone   string `json:"altPhone" validate:"required,min=7,max=20"`
}

// RefundRecord is one entry of the append-only refund ledger kept on an order.
type RefundRecord struct {
	ID          string             `json:"id"`
	AmountMinor int64              `json:"amountMinor"`
	Status      enums.RefundStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	Notes       map[string]string  `json:"notes,omitempty"`
}

// ReturnItem snapshots a returned line so later item changes cannot alter refund math.
type ReturnItem struct {
	LineID         uuid.UUID `json:"lineId"`
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceMinor int64     `json:"unitPriceMinor"`
	LineTotalMinor int64     `json:"lineTotalMinor"`
}

// ReturnRequest is the return sub-record embedded in an order.
type ReturnRequest struct {
	Status            enums.ReturnStatus `json:"status"`
	Reason            string             `json:"reason,omitempty"`
	Description       string             `json:"description,omitempty"`
	Evidence          []string           `json:"evidence,omitempty"`
	Items             []ReturnItem       `json:"items,omitempty"`
	RequestedAt       *time.Time         `json:"requestedAt,omitempty"`
	ReviewedAt        *time.Time         `json:"reviewedAt,omitempty"`
	ReceivedAt        *time.Time         `json:"receivedAt,omitempty"`
	RejectionReason   string             `json:"rejectionReason,omitempty"`
	RejectionCategory string             `json:"rejectionCategory,omitempty"`
}

// Tracking holds carrier details set by an admin once the order ships.
type Tracking struct {
	Provider  string    `json:"provider"`
	Number    string    `json:"number"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
