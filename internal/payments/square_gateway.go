package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

// NewSquareGateway adapts the shared Square client to the Gateway contract.
// Square orders play the role of intents: the buyer pays against the order
// and the resulting payment carries its order_id.
func NewSquareGateway(client *square.Client) Gateway {
	return &squareGateway{client: client}
}

type squareGateway struct {
	client *square.Client
}

func (g *squareGateway) CreateIntent(ctx context.Context, req IntentRequest) (*GatewayIntent, error) {
	if g.client == nil {
		return nil, fmt.Errorf("square client required")
	}
	order, err := g.client.CreateOrder(ctx, intentParams(req))
	if err != nil {
		return nil, err
	}
	id := textOf(order.GetID())
	if id == "" {
		return nil, fmt.Errorf("square order missing id")
	}
	return &GatewayIntent{ID: id, AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

// intentParams maps an intent request onto a Square order. An empty key lets
// the client mint one.
func intentParams(req IntentRequest) square.OrderCreateParams {
	return square.OrderCreateParams{
		ReferenceID:    req.Receipt,
		Name:           "Order " + req.Receipt,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	}
}

func (g *squareGateway) FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	payment, err := g.client.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return paymentFromSquare(payment), nil
}

func (g *squareGateway) CapturePayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	payment, err := g.client.CompletePayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return paymentFromSquare(payment), nil
}

func (g *squareGateway) RefundPayment(ctx context.Context, req RefundRequest) (*GatewayRefund, error) {
	refund, err := g.client.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      req.PaymentID,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	amount, _ := square.MoneyValues(refund.GetAmountMoney())
	if amount == 0 {
		amount = req.AmountMinor
	}
	return &GatewayRefund{
		ID:          textOf(refund.GetID()),
		PaymentID:   req.PaymentID,
		AmountMinor: amount,
		Status:      refundStatusFromSquare(textOf(refund.GetStatus())),
	}, nil
}

type squareWebhook struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment *squareWebhookPayment `json:"payment"`
			Refund  *squareWebhookRefund  `json:"refund"`
		} `json:"object"`
	} `json:"data"`
}

type squareWebhookMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squareWebhookPayment struct {
	ID          string             `json:"id"`
	OrderID     string             `json:"order_id"`
	Status      string             `json:"status"`
	AmountMoney squareWebhookMoney `json:"amount_money"`
}

type squareWebhookRefund struct {
	ID          string             `json:"id"`
	PaymentID   string             `json:"payment_id"`
	Status      string             `json:"status"`
	AmountMoney squareWebhookMoney `json:"amount_money"`
}

// ParseWebhook decodes payment.* and refund.* notifications. Event types the
// engine does not act on come back with an empty Type.
func (g *squareGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var hook squareWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("decode square webhook: %w", err)
	}
	if strings.TrimSpace(hook.EventID) == "" {
		return nil, fmt.Errorf("square webhook missing event_id")
	}
	event := &WebhookEvent{ID: hook.EventID}

	switch {
	case strings.HasPrefix(hook.Type, "payment.") && hook.Data.Object.Payment != nil:
		p := hook.Data.Object.Payment
		payment := &GatewayPayment{
			ID:          p.ID,
			IntentID:    p.OrderID,
			AmountMinor: p.AmountMoney.Amount,
			Currency:    p.AmountMoney.Currency,
			State:       paymentStateFromSquare(p.Status),
		}
		event.Payment = payment
		switch payment.State {
		case PaymentStateAuthorized:
			event.Type = EventPaymentAuthorized
		case PaymentStateCaptured:
			event.Type = EventPaymentCaptured
		case PaymentStateFailed:
			event.Type = EventPaymentFailed
		}
	case strings.HasPrefix(hook.Type, "refund.") && hook.Data.Object.Refund != nil:
		r := hook.Data.Object.Refund
		status := refundStatusFromSquare(r.Status)
		event.Refund = &GatewayRefund{
			ID:          r.ID,
			PaymentID:   r.PaymentID,
			AmountMinor: r.AmountMoney.Amount,
			Status:      status,
		}
		if status == enums.RefundStatusProcessed {
			event.Type = EventRefundProcessed
		}
	}
	return event, nil
}

func paymentFromSquare(payment *sq.Payment) *GatewayPayment {
	amount, currency := square.MoneyValues(payment.GetAmountMoney())
	return &GatewayPayment{
		ID:          textOf(payment.GetID()),
		IntentID:    textOf(payment.GetOrderID()),
		AmountMinor: amount,
		Currency:    currency,
		State:       paymentStateFromSquare(textOf(payment.GetStatus())),
	}
}

func paymentStateFromSquare(status string) PaymentState {
	switch strings.ToUpper(status) {
	case "APPROVED":
		return PaymentStateAuthorized
	case "COMPLETED":
		return PaymentStateCaptured
	case "FAILED", "CANCELED":
		return PaymentStateFailed
	default:
		return PaymentStateCreated
	}
}

func refundStatusFromSquare(status string) enums.RefundStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return enums.RefundStatusProcessed
	case "FAILED", "REJECTED":
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

// textOf flattens the SDK's mix of string and *string getters.
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	default:
		return ""
	}
}
