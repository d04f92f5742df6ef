package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	webhookConsumer = "gateway-webhook"

	// AutoRefundReason is recorded when a captured payment cannot be honoured
	// because stock ran out between checkout and payment.
	AutoRefundReason = "Auto-refund: inventory unavailable after payment."
	// MismatchRefundReason is recorded when a webhook reports a payment whose
	// amount or currency differs from the order.
	MismatchRefundReason = "Webhook refund (amount mismatch)."

	nextActionRedirect = "redirect"
	nextActionPay      = "pay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, items []inventory.Item) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// VerifyInput is what the client posts after the gateway's payment sheet closes.
type VerifyInput struct {
	OrderID   uuid.UUID `json:"orderId" validate:"required"`
	IntentID  string    `json:"intentId" validate:"required"`
	PaymentID string    `json:"paymentId" validate:"required"`
	Signature string    `json:"signature" validate:"required"`
}

// VerifyResult reports how a verification ended. AlreadyProcessed is set when
// another request or a webhook settled the payment first.
type VerifyResult struct {
	Order            *models.Order `json:"order"`
	AlreadyProcessed bool          `json:"alreadyProcessed"`
	NextAction       string        `json:"nextAction"`
}

// RetryResult is either a fresh intent or a redirect for an order that has
// been paid in the meantime.
type RetryResult struct {
	Order      *models.Order `json:"order"`
	NextAction string        `json:"nextAction"`
	Payment    *Intent       `json:"payment,omitempty"`
}

// Refund types recorded in the ledger notes under "type".
const (
	RefundTypeReturn = "RETURN"
	RefundTypeManual = "MANUAL"
	RefundTypeCancel = "CANCELLATION"
)

// RefundInput asks for money back on a paid gateway order. A RETURN refund is
// issued at most once per order.
type RefundInput struct {
	OrderID     uuid.UUID
	AmountMinor int64
	Type        string
	Reason      string
	Notes       map[string]string
	Actor       *outbox.ActorRef
}

// Service is the payment orchestrator.
type Service interface {
	CreateIntent(ctx context.Context, order *models.Order) (*Intent, error)
	RetryIntent(ctx context.Context, userID, orderID uuid.UUID) (*RetryResult, error)
	Verify(ctx context.Context, userID uuid.UUID, input VerifyInput) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	Refund(ctx context.Context, input RefundInput) (*models.Order, error)
}

// ServiceParams wires the payments service.
type ServiceParams struct {
	Tx            txRunner
	Orders        orders.Repository
	Stock         stockDecrementer
	Carts         cart.CartRepository
	Outbox        outboxPublisher
	Gateway       Gateway
	Events        eventGuard
	Metrics       *metrics.OrderMetrics
	Logger        *logger.Logger
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Now           func() time.Time
}

type service struct {
	tx            txRunner
	orders        orders.Repository
	stock         stockDecrementer
	carts         cart.CartRepository
	outbox        outboxPublisher
	gateway       Gateway
	events        eventGuard
	metrics       *metrics.OrderMetrics
	logg          *logger.Logger
	keyID         string
	keySecret     string
	webhookSecret string
	now           func() time.Time
}

// NewService builds the payments service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock decrementer required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Events == nil:
		return nil, fmt.Errorf("webhook idempotency guard required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:            params.Tx,
		orders:        params.Orders,
		stock:         params.Stock,
		carts:         params.Carts,
		outbox:        params.Outbox,
		gateway:       params.Gateway,
		events:        params.Events,
		metrics:       params.Metrics,
		logg:          params.Logger,
		keyID:         params.KeyID,
		keySecret:     params.KeySecret,
		webhookSecret: params.WebhookSecret,
		now:           now,
	}, nil
}

// CreateIntent opens a gateway intent for the order's grand total and stores
// its id on the order, replacing any earlier intent.
func (s *service) CreateIntent(ctx context.Context, order *models.Order) (*Intent, error) {
	intent, err := s.gateway.CreateIntent(ctx, IntentRequest{
		AmountMinor: order.GrandTotalMinor,
		Currency:    order.Currency,
		Receipt:        order.Code,
		IdempotencyKey: intentKey(order),
		Notes:          map[string]string{"order_id": order.ID.String()},
	})
	s.metrics.RecordOperation("create_intent", err)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	if err := s.orders.SetIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}
	order.GatewayIntentID = &intent.ID
	return &Intent{
		OrderID:     order.ID,
		OrderCode:   order.Code,
		KeyID:       s.keyID,
		IntentID:    intent.ID,
		AmountMinor: order.GrandTotalMinor,
		Currency:    order.Currency,
	}, nil
}

func (s *service) RetryIntent(ctx context.Context, userID, orderID uuid.UUID) (*RetryResult, error) {
	order, err := s.ownedGatewayOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return &RetryResult{Order: order, NextAction: nextActionRedirect}, nil
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be paid", order.Status))
	}
	if order.GatewayPaymentID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a payment is already recorded for this order")
	}
	intent, err := s.CreateIntent(ctx, order)
	if err != nil {
		return nil, err
	}
	return &RetryResult{Order: order, NextAction: nextActionPay, Payment: intent}, nil
}

func (s *service) Verify(ctx context.Context, userID uuid.UUID, input VerifyInput) (*VerifyResult, error) {
	order, err := s.ownedGatewayOrder(ctx, userID, input.OrderID)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"payment_id": input.PaymentID,
		"source":     "verify",
	})
	if order.IsPaid {
		return &VerifyResult{Order: order, AlreadyProcessed: true, NextAction: nextActionRedirect}, nil
	}
	if order.IntentID() == "" || order.IntentID() != input.IntentID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent does not belong to this order")
	}
	if !VerifyPaymentSignature(s.keySecret, input.IntentID, input.PaymentID, input.Signature) {
		s.metrics.RecordOperation("verify", nil, metrics.OutcomeFailure)
		s.logg.Warn(logCtx, "payment signature rejected")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid payment signature")
	}

	payment, err := s.gateway.FetchPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment")
	}
	if !payment.State.Settleable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment is %s", payment.State))
	}
	if payment.IntentID != input.IntentID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment belongs to a different intent")
	}
	if !amountMatches(order, payment) {
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"expected_minor": order.GrandTotalMinor,
			"paid_minor":     payment.AmountMinor,
			"paid_currency":  payment.Currency,
		}), "payment amount mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "paid amount does not match the order total")
	}

	settled, processed, err := s.settle(logCtx, order.ID, payment, input.Signature)
	s.metrics.RecordOperation("verify", err)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Order: settled, AlreadyProcessed: processed, NextAction: nextActionRedirect}, nil
}

// Refund returns money for a paid gateway order. The cumulative amount may
// never exceed what was captured.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodGateway || order.PaymentID() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway payment to refund")
	}
	if order.PaymentStatus == enums.PaymentStatusAuthorized {
		captured, err := s.gateway.CapturePayment(ctx, order.PaymentID())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture payment before refund")
		}
		order, err = s.mutate(ctx, order.ID, func(_ *gorm.DB, o *models.Order) error {
			o.PaymentStatus = enums.PaymentStatusPaid
			o.CapturedMinor = captured.AmountMinor
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if !order.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been paid")
	}
	if input.Type == RefundTypeReturn && HasReturnRefund(order) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return has already been refunded")
	}
	if remaining := order.CapturedMinor - order.RefundedMinor(); input.AmountMinor > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("refund of %d exceeds the %d still refundable", input.AmountMinor, remaining))
	}

	refund, err := s.gateway.RefundPayment(ctx, RefundRequest{
		PaymentID:      order.PaymentID(),
		AmountMinor:    input.AmountMinor,
		Currency:       order.Currency,
		Reason:         input.Reason,
		IdempotencyKey: refundKey(order, input.Type),
	})
	s.metrics.RecordOperation("refund", err)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway refund")
	}

	notes := map[string]string{"reason": input.Reason}
	for k, v := range input.Notes {
		notes[k] = v
	}
	if input.Type != "" {
		notes["type"] = input.Type
	}

	// The checks above ran on a snapshot taken before the gateway call. The
	// refund already happened, so it is recorded either way; a concurrent
	// writer that got there first leaves the order for reconciliation.
	var conflict string
	updated, err := s.mutate(ctx, order.ID, func(tx *gorm.DB, o *models.Order) error {
		conflict = ""
		if o.HasRefund(refund.ID) {
			RecordRefund(o, *refund, notes, s.now())
			return nil
		}
		switch {
		case input.Type == RefundTypeReturn && HasReturnRefund(o):
			conflict = "duplicate_return_refund"
		case o.CapturedMinor-o.RefundedMinor() < refund.AmountMinor:
			conflict = "refund_exceeds_captured"
		}
		RecordRefund(o, *refund, notes, s.now())
		return s.emitRefunded(ctx, tx, o, *refund, input.Actor)
	})
	if err != nil {
		return nil, err
	}
	if conflict != "" {
		s.flagReconciliation(ctx, order.ID, conflict,
			fmt.Errorf("refund %s of %d recorded past the refundable balance", refund.ID, refund.AmountMinor))
	}
	return updated, nil
}

// HandleWebhook processes one gateway notification. Each event id is handled
// once; the marker is cleared again when handling fails so a redelivery can
// retry.
func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifyWebhookSignature(s.webhookSecret, body, signature) {
		s.metrics.RecordOperation("webhook", nil, metrics.OutcomeFailure)
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid webhook signature")
	}
	event, err := s.gateway.ParseWebhook(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"source":     "webhook",
	})

	seen, err := s.events.CheckAndMarkProcessed(ctx, webhookConsumer, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency")
	}
	if seen {
		s.logg.Info(logCtx, "duplicate webhook ignored")
		s.metrics.RecordOperation("webhook", nil, metrics.OutcomeSkipped)
		return nil
	}

	err = s.dispatch(logCtx, event)
	s.metrics.RecordOperation("webhook", err)
	if err != nil {
		if delErr := s.events.Delete(ctx, webhookConsumer, event.ID); delErr != nil {
			err = multierr.Append(err, delErr)
		}
		return err
	}
	return nil
}

func (s *service) dispatch(ctx context.Context, event *WebhookEvent) error {
	switch event.Type {
	case EventPaymentAuthorized, EventPaymentCaptured:
		return s.onPaymentSettled(ctx, event.Payment)
	case EventPaymentFailed:
		return s.onPaymentFailed(ctx, event.Payment)
	case EventRefundProcessed:
		return s.onRefundProcessed(ctx, event.Refund)
	default:
		s.logg.Info(ctx, "webhook event ignored")
		return nil
	}
}

func (s *service) onPaymentSettled(ctx context.Context, payment *GatewayPayment) error {
	order, err := s.orders.FindByIntentID(ctx, payment.IntentID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(ctx, "webhook payment for unknown intent")
		return nil
	}
	if err != nil {
		return err
	}
	ctx = s.logg.WithPaymentID(s.logg.WithOrderID(ctx, order.ID.String()), payment.ID)
	if order.IsPaid {
		s.logg.Debug(ctx, "webhook for already paid order")
		return nil
	}
	if amountMatches(order, payment) {
		_, _, err := s.settle(ctx, order.ID, payment, "")
		return err
	}

	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"expected_minor": order.GrandTotalMinor,
		"paid_minor":     payment.AmountMinor,
	}), "webhook payment amount mismatch")
	won, err := s.orders.ClaimPayment(ctx, order.ID, payment.ID, "")
	if err != nil || !won {
		return err
	}
	if payment.State == PaymentStateAuthorized {
		if _, err := s.gateway.CapturePayment(ctx, payment.ID); err != nil {
			return s.needsReconciliation(ctx, order.ID, "capture_failed", err)
		}
	}
	return s.compensate(ctx, order.ID, payment, MismatchRefundReason, nil)
}

func (s *service) onPaymentFailed(ctx context.Context, payment *GatewayPayment) error {
	order, err := s.orders.FindByIntentID(ctx, payment.IntentID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(ctx, "webhook payment for unknown intent")
		return nil
	}
	if err != nil {
		return err
	}
	if order.IsPaid || order.GatewayPaymentID != nil {
		return nil
	}
	_, err = s.mutate(ctx, order.ID, func(_ *gorm.DB, o *models.Order) error {
		if o.IsPaid || o.GatewayPaymentID != nil {
			return nil
		}
		o.PaymentStatus = enums.PaymentStatusFailed
		return nil
	})
	return err
}

func (s *service) onRefundProcessed(ctx context.Context, refund *GatewayRefund) error {
	order, err := s.orders.FindByPaymentID(ctx, refund.PaymentID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(ctx, "webhook refund for unknown payment")
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, order.ID, func(tx *gorm.DB, o *models.Order) error {
		if existing := o.RefundByID(refund.ID); existing != nil && existing.Status == refund.Status {
			return nil
		}
		if !RecordRefund(o, *refund, map[string]string{"source": "webhook"}, s.now()) {
			return nil
		}
		return s.emitRefunded(ctx, tx, o, *refund, nil)
	})
	return err
}

// settle claims the payment for the order and finalizes it. Losing the claim
// is not an error: somebody else already owns the payment.
func (s *service) settle(ctx context.Context, orderID uuid.UUID, payment *GatewayPayment, signature string) (*models.Order, bool, error) {
	won, err := s.orders.ClaimPayment(ctx, orderID, payment.ID, signature)
	if err != nil {
		return nil, false, err
	}
	if !won {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, true, err
		}
		s.logg.Info(ctx, "payment already claimed")
		return order, true, nil
	}

	if payment.State == PaymentStateAuthorized {
		captured, err := s.gateway.CapturePayment(ctx, payment.ID)
		if err != nil {
			return nil, false, s.needsReconciliation(ctx, orderID, "capture_failed", err)
		}
		payment.State = captured.State
	}

	order, err := s.finalize(ctx, orderID, payment)
	if err == nil {
		s.logg.Info(ctx, "payment finalized")
		return order, false, nil
	}
	s.logg.Error(ctx, "finalize failed; refunding payment", err)
	return nil, false, s.compensate(ctx, orderID, payment, AutoRefundReason, err)
}

// finalize takes stock and marks the order paid in one transaction.
func (s *service) finalize(ctx context.Context, orderID uuid.UUID, payment *GatewayPayment) (*models.Order, error) {
	now := s.now()
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		from := order.Status
		if err := orders.Transition(order, enums.OrderStatusProcessing, now); err != nil {
			return err
		}
		if err := s.stock.Decrement(ctx, tx, activeStock(order)); err != nil {
			return err
		}
		paidAt := now.UTC()
		order.PaymentStatus = enums.PaymentStatusPaid
		order.IsPaid = true
		order.CapturedMinor = payment.AmountMinor
		order.PaidAt = &paidAt
		if err := s.carts.WithTx(tx).Clear(ctx, order.UserID); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:          order.ID,
				Code:             order.Code,
				GatewayPaymentID: payment.ID,
				AmountMinor:      payment.AmountMinor,
				PaidAt:           paidAt,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          payloads.OrderStatusChangedEvent{OrderID: order.ID, From: from, To: order.Status},
		})
	})
}

// compensate refunds a captured payment the order could not keep and cancels
// the order. When the refund itself fails the payment is flagged for manual
// reconciliation. The returned error combines cause and any refund failure.
func (s *service) compensate(ctx context.Context, orderID uuid.UUID, payment *GatewayPayment, reason string, cause error) error {
	refund, refundErr := s.gateway.RefundPayment(ctx, RefundRequest{
		PaymentID:      payment.ID,
		AmountMinor:    payment.AmountMinor,
		Currency:       payment.Currency,
		Reason:         reason,
		IdempotencyKey: "auto-" + payment.ID,
	})
	s.metrics.RecordOperation("auto_refund", refundErr)

	_, saveErr := s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		order.CapturedMinor = payment.AmountMinor
		if refundErr != nil {
			order.PaymentStatus = enums.PaymentStatusFailed
			return nil
		}
		RecordRefund(order, *refund, map[string]string{"reason": reason, "source": "auto_refund"}, s.now())
		if order.Status != enums.OrderStatusCancelled {
			if err := orders.Transition(order, enums.OrderStatusCancelled, s.now()); err != nil {
				return err
			}
			order.CancelReason = reason
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderCancelledEvent{
					OrderID:     order.ID,
					Reason:      reason,
					CancelledAt: *order.CancelledAt,
				},
			}); err != nil {
				return err
			}
		}
		return s.emitRefunded(ctx, tx, order, *refund, nil)
	})

	if refundErr != nil {
		refundErr = s.needsReconciliation(ctx, orderID, "auto_refund_failed", refundErr)
	} else if saveErr != nil {
		saveErr = s.needsReconciliation(ctx, orderID, "auto_refund_unrecorded", saveErr)
	} else {
		s.logg.Info(s.logg.WithField(ctx, "reason", reason), "payment refunded automatically")
	}

	if cause == nil {
		return multierr.Combine(refundErr, saveErr)
	}
	code := pkgerrors.CodeInternal
	if te := pkgerrors.As(cause); te != nil {
		code = te.Code()
	}
	message := "payment could not be applied to the order and was refunded"
	if refundErr != nil || saveErr != nil {
		message = "payment could not be applied to the order; the refund needs manual reconciliation"
	}
	return pkgerrors.Wrap(code, multierr.Combine(cause, refundErr, saveErr), message)
}

func (s *service) needsReconciliation(ctx context.Context, orderID uuid.UUID, reason string, err error) error {
	s.flagReconciliation(ctx, orderID, reason, err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment needs manual reconciliation")
}

func (s *service) flagReconciliation(ctx context.Context, orderID uuid.UUID, reason string, err error) {
	s.metrics.IncNeedsReconciliation(reason)
	s.logg.Error(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"outcome":  "needs_manual_reconciliation",
		"reason":   reason,
	}), "payment needs manual reconciliation", err)
}

func (s *service) emitRefunded(ctx context.Context, tx *gorm.DB, order *models.Order, refund GatewayRefund, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRefunded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderRefundedEvent{
			OrderID:       order.ID,
			RefundID:      refund.ID,
			AmountMinor:   refund.AmountMinor,
			PaymentStatus: order.PaymentStatus,
		},
	})
}

func (s *service) ownedGatewayOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not paid online")
	}
	return order, nil
}

func (s *service) mutate(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func amountMatches(order *models.Order, payment *GatewayPayment) bool {
	return payment.AmountMinor == order.GrandTotalMinor && strings.EqualFold(payment.Currency, order.Currency)
}

// refundKey is stable for a given ledger length, so two racing refunds on the
// same snapshot collapse into one at the gateway.
// refundKey is fixed for the single return refund of an order, so a repeated
// request collapses at the gateway. Other refunds are keyed by ledger position.
func refundKey(order *models.Order, refundType string) string {
	id := strings.ReplaceAll(order.ID.String(), "-", "")
	if refundType == RefundTypeReturn {
		return "rf" + id + "ret"
	}
	return fmt.Sprintf("rf%s%d", id, len(order.Refunds)+1)
}

// HasReturnRefund reports whether the order's return was already refunded.
func HasReturnRefund(order *models.Order) bool {
	for _, r := range order.Refunds {
		if r.Status != enums.RefundStatusFailed && r.Notes["type"] == RefundTypeReturn {
			return true
		}
	}
	return false
}

// intentKey changes per attempt so a retry gets a fresh gateway order.
func intentKey(order *models.Order) string {
	return "in" + strings.ReplaceAll(order.ID.String(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func activeStock(order *models.Order) []inventory.Item {
	items := make([]inventory.Item, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Status != enums.LineItemStatusActive {
			continue
		}
		items = append(items, inventory.Item{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity})
	}
	return items
}
