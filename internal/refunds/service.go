package refunds

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type refundIssuer interface {
	Refund(ctx context.Context, input payments.RefundInput) (*models.Order, error)
}

// ReturnRefundInput optionally lowers the computed return refund.
type ReturnRefundInput struct {
	AmountOverrideMinor *int64 `json:"amountOverrideMinor" validate:"omitempty,gt=0"`
	Reason              string `json:"reason" validate:"max=500"`
}

// ManualRefundInput refunds an explicit amount.
type ManualRefundInput struct {
	AmountMinor int64  `json:"amountMinor" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required,max=500"`
}

// Service issues gateway refunds for paid online orders.
type Service interface {
	Quote(ctx context.Context, orderID uuid.UUID) (*Breakdown, error)
	IssueReturnRefund(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input ReturnRefundInput) (*models.Order, error)
	IssueManualRefund(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input ManualRefundInput) (*models.Order, error)
}

type service struct {
	orders orderReader
	issuer refundIssuer
	logg   *logger.Logger
}

// NewService builds the refunds service.
func NewService(orders orderReader, issuer refundIssuer, logg *logger.Logger) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("refund issuer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{orders: orders, issuer: issuer, logg: logg}, nil
}

func (s *service) Quote(ctx context.Context, orderID uuid.UUID) (*Breakdown, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	b := Compute(order, order.Return.Items)
	return &b, nil
}

// IssueReturnRefund refunds the returned items of a gateway order. An override
// may lower the amount but never raise it above the computed value.
func (s *service) IssueReturnRefund(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input ReturnRefundInput) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireRefundableGateway(order); err != nil {
		return nil, err
	}
	if len(order.Return.Items) == 0 || order.Return.Status != enums.ReturnStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no approved return to refund")
	}
	if payments.HasReturnRefund(order) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return has already been refunded")
	}

	computed := Refundable(order, order.Return.Items)
	amount := computed
	if input.AmountOverrideMinor != nil {
		if *input.AmountOverrideMinor > computed {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("override %d exceeds the computed refund of %d", *input.AmountOverrideMinor, computed))
		}
		amount = *input.AmountOverrideMinor
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing left to refund for this return")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "Return refund"
	}

	updated, err := s.issuer.Refund(ctx, payments.RefundInput{
		OrderID:     order.ID,
		AmountMinor: amount,
		Type:        payments.RefundTypeReturn,
		Reason:      reason,
		Notes:       map[string]string{"computed_minor": strconv.FormatInt(computed, 10)},
		Actor:       &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"amount_minor": amount,
		"type":         "return",
	}), "refund issued")
	return updated, nil
}

func (s *service) IssueManualRefund(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input ManualRefundInput) (*models.Order, error) {
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireRefundableGateway(order); err != nil {
		return nil, err
	}
	updated, err := s.issuer.Refund(ctx, payments.RefundInput{
		OrderID:     order.ID,
		AmountMinor: input.AmountMinor,
		Type:        payments.RefundTypeManual,
		Reason:      input.Reason,
		Actor:       &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"amount_minor": input.AmountMinor,
		"type":         "manual",
	}), "refund issued")
	return updated, nil
}

func requireRefundableGateway(order *models.Order) error {
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cash on delivery orders are refunded through payouts")
	}
	switch order.PaymentStatus {
	case enums.PaymentStatusPaid, enums.PaymentStatusAuthorized, enums.PaymentStatusPartialRefund:
		return nil
	case enums.PaymentStatusRefunded:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already fully refunded")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been paid")
	}
}
