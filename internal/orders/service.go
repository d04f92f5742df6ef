package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, items []inventory.Item) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CancellationRefunder returns captured money for a cancelled gateway order.
// It runs after the cancellation commits.
type CancellationRefunder func(ctx context.Context, orderID uuid.UUID, amountMinor int64, reason string) error

// Service exposes the order commands outside checkout, payments and returns.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, input TrackingInput) (*models.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	CancelItem(ctx context.Context, orderID, lineID uuid.UUID, reason string) (*models.Order, error)
}

// ServiceParams wires the orders service.
type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Stock    stockRestorer
	Outbox   outboxPublisher
	Refunder CancellationRefunder
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	tx       txRunner
	repo     Repository
	stock    stockRestorer
	outbox   outboxPublisher
	refunder CancellationRefunder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		stock:    params.Stock,
		outbox:   params.Outbox,
		refunder: params.Refunder,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		// do not reveal other users' orders
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return s.repo.ListForUser(ctx, userID, params)
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	return s.repo.List(ctx, params, filters)
}

// UpdateStatus drives the fulfilment edges of the state machine. Cancellation
// and the return chain have their own commands.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	switch status {
	case enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %q cannot be set directly", status))
	}

	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.PaymentMethod == enums.PaymentMethodGateway && !order.IsPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not been completed for this order")
		}
		from := order.Status
		if err := Transition(order, status, s.now()); err != nil {
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

func (s *service) UpdateTracking(ctx context.Context, orderID uuid.UUID, input TrackingInput) (*models.Order, error) {
	return s.mutate(ctx, orderID, func(_ *gorm.DB, order *models.Order) error {
		if order.Status.IsTerminal() {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrTerminalState,
				fmt.Sprintf("order is %s and cannot change tracking", order.Status))
		}
		order.Tracking = &types.Tracking{
			Provider:  input.Provider,
			Number:    input.Number,
			URL:       input.URL,
			UpdatedAt: s.now().UTC(),
		}
		return nil
	})
}

// Cancel moves a pending or processing order to cancelled, puts decremented
// stock back and, for a captured gateway payment, refunds what is still held.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	if reason == "" {
		if actor.IsAdmin() {
			reason = "Cancelled by admin"
		} else {
			reason = "Cancelled by customer"
		}
	}

	order, err := s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if !actor.IsAdmin() && order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrTerminalState, "order already cancelled")
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in this state")
		}
		if stockWasTaken(order) {
			if err := s.stock.Restore(ctx, tx, activeStock(order)); err != nil {
				return err
			}
		}
		if err := Transition(order, enums.OrderStatusCancelled, s.now()); err != nil {
			return err
		}
		order.CancelReason = reason
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				Reason:      reason,
				CancelledAt: *order.CancelledAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "order_code": order.Code})
	s.logg.Info(logCtx, "order cancelled")

	owed := order.CapturedMinor - order.RefundedMinor()
	if order.PaymentMethod != enums.PaymentMethodGateway || !order.IsPaid || owed <= 0 {
		return order, nil
	}
	if s.refunder == nil {
		s.logg.Warn(logCtx, "cancelled paid order has no refunder configured; needs manual refund")
		return order, nil
	}
	if err := s.refunder(ctx, order.ID, owed, reason); err != nil {
		s.logg.Error(s.logg.WithField(logCtx, "outcome", "needs_manual_reconciliation"), "refund for cancelled order failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order cancelled but the refund failed; it will need to be retried")
	}
	return s.repo.FindByID(ctx, order.ID)
}

// CancelItem cancels one line. Before shipment the line's stock is restored
// together with the totals recomputation.
func (s *service) CancelItem(ctx context.Context, orderID, lineID uuid.UUID, reason string) (*models.Order, error) {
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		item := order.ItemByLineID(lineID)
		var restore []inventory.Item
		if item != nil && item.Status == enums.LineItemStatusActive && !order.Status.IsShipped() && stockWasTaken(order) {
			restore = []inventory.Item{{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity}}
		}
		if err := CancelItem(order, lineID, reason, s.now()); err != nil {
			return err
		}
		if len(restore) > 0 {
			return s.stock.Restore(ctx, tx, restore)
		}
		return nil
	})
}

// mutate is the load → transition → compare-and-swap loop every command uses.
func (s *service) mutate(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
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

// stockWasTaken reports whether placement already decremented inventory:
// COD decrements at placement, gateway orders only once paid.
func stockWasTaken(order *models.Order) bool {
	return order.PaymentMethod != enums.PaymentMethodGateway || order.IsPaid
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
