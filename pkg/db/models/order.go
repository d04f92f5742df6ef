package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the durable order aggregate. Line items, the address snapshot,
// the refund ledger and the return sub-record are stored as jsonb documents
// so the aggregate is loaded and persisted as a single row.
type Order struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code   string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`

	Status          enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Items           []types.OrderItem     `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	ShippingAddress types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json;not null" json:"shippingAddress"`
	Note            string                `gorm:"column:note;not null;default:''" json:"note"`
	Currency        string                `gorm:"column:currency;type:text;not null;default:'INR'" json:"currency"`

	SubtotalMinor   int64 `gorm:"column:subtotal_minor;not null;default:0" json:"subtotalMinor"`
	DiscountMinor   int64 `gorm:"column:discount_minor;not null;default:0" json:"discountMinor"`
	ShippingMinor   int64 `gorm:"column:shipping_minor;not null;default:0" json:"shippingMinor"`
	TaxMinor        int64 `gorm:"column:tax_minor;not null;default:0" json:"taxMinor"`
	GrandTotalMinor int64 `gorm:"column:grand_total_minor;not null;default:0" json:"grandTotalMinor"`

	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"paymentMethod"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'" json:"paymentStatus"`
	IsPaid           bool                `gorm:"column:is_paid;not null;default:false" json:"isPaid"`
	GatewayIntentID  *string             `gorm:"column:gateway_intent_id;index" json:"gatewayIntentId,omitempty"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;uniqueIndex" json:"gatewayPaymentId,omitempty"`
	GatewaySignature *string             `gorm:"column:gateway_signature" json:"-"`
	CapturedMinor    int64               `gorm:"column:captured_minor;not null;default:0" json:"capturedMinor"`
	PaidAt           *time.Time          `gorm:"column:paid_at" json:"paidAt,omitempty"`

	Refunds []types.RefundRecord `gorm:"column:refunds;type:jsonb;serializer:json" json:"refunds"`

	Return   types.ReturnRequest `gorm:"column:return_request;type:jsonb;serializer:json" json:"return"`
	Tracking *types.Tracking     `gorm:"column:tracking;type:jsonb;serializer:json" json:"tracking,omitempty"`

	CancelReason string     `gorm:"column:cancel_reason;not null;default:''" json:"cancelReason"`
	ShippedAt    *time.Time `gorm:"column:shipped_at" json:"shippedAt,omitempty"`
	DeliveredAt  *time.Time `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	ReturnedAt   *time.Time `gorm:"column:returned_at" json:"returnedAt,omitempty"`

	Version   int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }

// BeforeCreate assigns an identifier when the caller did not supply one.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// RefundedMinor sums every refund that has not failed. Pending refunds count
// so an in-flight refund cannot be issued twice.
func (o *Order) RefundedMinor() int64 {
	var total int64
	for _, r := range o.Refunds {
		if r.Status != enums.RefundStatusFailed {
			total += r.AmountMinor
		}
	}
	return total
}

// HasRefund reports whether a refund with the given id is already recorded.
func (o *Order) HasRefund(id string) bool {
	return o.RefundByID(id) != nil
}

// RefundByID returns a pointer into Refunds so callers can update a record.
func (o *Order) RefundByID(id string) *types.RefundRecord {
	for i := range o.Refunds {
		if o.Refunds[i].ID == id {
			return &o.Refunds[i]
		}
	}
	return nil
}

// ItemByLineID returns a pointer into Items so callers can mutate in place.
func (o *Order) ItemByLineID(lineID uuid.UUID) *types.OrderItem {
	for i := range o.Items {
		if o.Items[i].LineID == lineID {
			return &o.Items[i]
		}
	}
	return nil
}

func (o *Order) IntentID() string {
	if o.GatewayIntentID == nil {
		return ""
	}
	return *o.GatewayIntentID
}

func (o *Order) PaymentID() string {
	if o.GatewayPaymentID == nil {
		return ""
	}
	return *o.GatewayPaymentID
}
