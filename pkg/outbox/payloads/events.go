package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderPlacedEvent is emitted when an order row is created. COD orders have
// already taken stock at this point; gateway orders take it once paid.
type OrderPlacedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	Code            string              `json:"code"`
	UserID          uuid.UUID           `json:"user_id"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	GrandTotalMinor int64               `json:"grand_total_minor"`
	Currency        string              `json:"currency"`
}

// OrderPaidEvent is emitted when a gateway payment finalizes an order.
type OrderPaidEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	Code             string    `json:"code"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	AmountMinor      int64     `json:"amount_minor"`
	PaidAt           time.Time `json:"paid_at"`
}

// OrderStatusChangedEvent records every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted when an order is cancelled by a user, an admin, or auto-refund.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderRefundedEvent is emitted for every refund appended to an order's ledger.
type OrderRefundedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	RefundID      string              `json:"refund_id"`
	AmountMinor   int64               `json:"amount_minor"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

// ReturnRequestedEvent is emitted when a customer opens a return.
type ReturnRequestedEvent struct {
	OrderID   uuid.UUID   `json:"order_id"`
	LineIDs   []uuid.UUID `json:"line_ids"`
	Reason    string      `json:"reason"`
	Requested time.Time   `json:"requested_at"`
}

// ReturnDecidedEvent is emitted on approve, reject, and receipt.
type ReturnDecidedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	ReturnStatus enums.ReturnStatus `json:"return_status"`
	OrderStatus  enums.OrderStatus  `json:"order_status"`
	Reason       string             `json:"reason,omitempty"`
}

// PayoutCreatedEvent is emitted when a COD return opens a payout.
type PayoutCreatedEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountMinor int64     `json:"amount_minor"`
}

// PayoutPaidEvent is emitted when an admin records the manual transfer.
type PayoutPaidEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountMinor int64     `json:"amount_minor"`
	Reference   string    `json:"reference"`
	PaidAt      time.Time `json:"paid_at"`
}
