// Package payments drives online payments: intent creation, client
// verification, gateway webhooks, and the compensating refund that runs when
// a captured payment cannot be honoured.
package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentState is the gateway-neutral state of a payment.
type PaymentState string

const (
	PaymentStateCreated    PaymentState = "created"
	PaymentStateAuthorized PaymentState = "authorized"
	PaymentStateCaptured   PaymentState = "captured"
	PaymentStateFailed     PaymentState = "failed"
)

// Settleable reports whether the payment holds money the order can be finalized with.
func (s PaymentState) Settleable() bool {
	return s == PaymentStateAuthorized || s == PaymentStateCaptured
}

// WebhookEventType is the gateway-neutral webhook event name.
type WebhookEventType string

const (
	EventPaymentAuthorized WebhookEventType = "payment.authorized"
	EventPaymentCaptured   WebhookEventType = "payment.captured"
	EventPaymentFailed     WebhookEventType = "payment.failed"
	EventRefundProcessed   WebhookEventType = "refund.processed"
)

// IntentRequest asks the gateway for a payable intent.
type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	Receipt        string
	IdempotencyKey string
	Notes          map[string]string
}

// GatewayIntent is the gateway-side object the client pays against.
type GatewayIntent struct {
	ID          string
	AmountMinor int64
	Currency    string
}

// GatewayPayment is the authoritative payment as reported by the gateway.
type GatewayPayment struct {
	ID          string
	IntentID    string
	AmountMinor int64
	Currency    string
	State       PaymentState
}

// RefundRequest returns money for a payment.
type RefundRequest struct {
	PaymentID      string
	AmountMinor    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

// GatewayRefund is the gateway's answer to a refund.
type GatewayRefund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Status      enums.RefundStatus
}

// WebhookEvent is a decoded gateway notification. Exactly one of Payment or
// Refund is set for the known event types.
type WebhookEvent struct {
	ID      string
	Type    WebhookEventType
	Payment *GatewayPayment
	Refund  *GatewayRefund
}

// Gateway is the payment provider contract.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*GatewayIntent, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	CapturePayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*GatewayRefund, error)
	ParseWebhook(body []byte) (*WebhookEvent, error)
}

// Intent is returned to the client so it can open the gateway's payment sheet.
type Intent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderCode   string    `json:"orderCode"`
	KeyID       string    `json:"keyId"`
	IntentID    string    `json:"intentId"`
	AmountMinor int64     `json:"amountMinor"`
	Currency    string    `json:"currency"`
}
