// Package payouts tracks the manual bank or UPI transfer that refunds a
// returned cash-on-delivery order.
package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// RefundIDPrefix marks the order ledger entry mirrored from a paid payout.
const RefundIDPrefix = "COD-PAYOUT-"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages COD payouts.
type Service interface {
	EnsureForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Payout, error)
	Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Payout, error)
	SetDestination(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input DestinationInput) (*models.Payout, error)
	MarkPaid(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input TransferInput) (*models.Payout, error)
}

// ServiceParams wires the payouts service.
type ServiceParams struct {
	Tx     txRunner
	Repo   Repository
	Orders orders.Repository
	Outbox outboxPublisher
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	tx     txRunner
	repo   Repository
	orders orders.Repository
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("payouts repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:     params.Tx,
		repo:   params.Repo,
		orders: params.Orders,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// EnsureForOrder opens the payout for a returned COD order inside the caller's
// transaction. An existing payout is returned unchanged. The amount is always
// computed from the order's return snapshot.
func (s *service) EnsureForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Payout, error) {
	if order.PaymentMethod != enums.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only cash on delivery orders are refunded through payouts")
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByOrderID(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	amount := refunds.Refundable(order, order.Return.Items)
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing refundable for this order")
	}
	payout := &models.Payout{
		OrderID:     order.ID,
		UserID:      order.UserID,
		AmountMinor: amount,
		Currency:    order.Currency,
		Status:      enums.PayoutStatusPendingDestination,
	}
	if err := repo.Create(ctx, payout); err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutCreated,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Data: payloads.PayoutCreatedEvent{
			PayoutID:    payout.ID,
			OrderID:     order.ID,
			AmountMinor: payout.AmountMinor,
		},
	}); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"payout_id":    payout.ID.String(),
		"amount_minor": payout.AmountMinor,
	}), "payout created")
	return payout, nil
}

func (s *service) Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Payout, error) {
	payout, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && payout.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	return payout, nil
}

// SetDestination records where the refund goes. The destination is locked
// once the payout leaves pending_destination.
func (s *service) SetDestination(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input DestinationInput) (*models.Payout, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, orderID, func(_ *gorm.DB, payout *models.Payout) error {
		if !actor.IsAdmin() && payout.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		if payout.Status != enums.PayoutStatusPendingDestination {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payout is %s; destination can no longer change", payout.Status))
		}
		dest := &types.PayoutDestination{Method: input.Method, SetAt: s.now().UTC()}
		if input.Method == enums.PayoutMethodUPI {
			dest.UPIID = input.UPIID
		} else {
			dest.AccountName = input.AccountName
			dest.AccountNumber = input.AccountNumber
			dest.IFSC = input.IFSC
			dest.BankName = input.BankName
			dest.Branch = input.Branch
		}
		payout.Destination = dest
		payout.Status = enums.PayoutStatusReady
		return nil
	})
}

// MarkPaid stamps the transfer and mirrors it into the order's refund ledger
// in the same transaction.
func (s *service) MarkPaid(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input TransferInput) (*models.Payout, error) {
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	now := s.now().UTC()
	payout, err := s.mutate(ctx, orderID, func(tx *gorm.DB, payout *models.Payout) error {
		if payout.Status != enums.PayoutStatusReady || payout.Destination == nil {
			return pkgerrors.New(pkgerrors.CodePayoutNotReady, fmt.Sprintf("payout is %s; a destination must be set first", payout.Status))
		}
		payout.Transfer = &types.PayoutTransfer{Reference: input.Reference, PaidAt: now, Notes: input.Notes}
		payout.Status = enums.PayoutStatusPaid

		orderRepo := s.orders.WithTx(tx)
		order, err := orderRepo.FindByID(ctx, payout.OrderID)
		if err != nil {
			return err
		}
		refundID := RefundIDPrefix + payout.ID.String()
		if !order.HasRefund(refundID) {
			order.Refunds = append(order.Refunds, types.RefundRecord{
				ID:          refundID,
				AmountMinor: payout.AmountMinor,
				Status:      enums.RefundStatusProcessed,
				CreatedAt:   now,
				Notes: map[string]string{
					"type":         "COD_PAYOUT",
					"transfer_ref": input.Reference,
				},
			})
		}
		order.PaymentStatus = settledPaymentStatus(order)
		if err := orderRepo.Save(ctx, order); err != nil {
			return err
		}

		actorRef := &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutPaid,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Actor:         actorRef,
			Data: payloads.PayoutPaidEvent{
				PayoutID:    payout.ID,
				OrderID:     order.ID,
				AmountMinor: payout.AmountMinor,
				Reference:   input.Reference,
				PaidAt:      now,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef,
			Data: payloads.OrderRefundedEvent{
				OrderID:       order.ID,
				RefundID:      refundID,
				AmountMinor:   payout.AmountMinor,
				PaymentStatus: order.PaymentStatus,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":  orderID.String(),
		"payout_id": payout.ID.String(),
		"reference": input.Reference,
	}), "payout marked paid")
	return payout, nil
}

func (s *service) mutate(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, payout *models.Payout) error) (*models.Payout, error) {
	var out *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(tx, payout); err != nil {
			return err
		}
		if err := repo.Save(ctx, payout); err != nil {
			return err
		}
		out = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// settledPaymentStatus is refunded only once the ledger covers the whole order.
func settledPaymentStatus(order *models.Order) enums.PaymentStatus {
	if order.RefundedMinor() >= order.GrandTotalMinor {
		return enums.PaymentStatusRefunded
	}
	return enums.PaymentStatusPartialRefund
}
