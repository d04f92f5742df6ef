package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

var validate = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type payoutOpener interface {
	EnsureForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Payout, error)
}

// RequestItem selects a quantity of one order line.
type RequestItem struct {
	LineID   uuid.UUID `json:"lineId" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// RequestInput is a customer's return request.
type RequestInput struct {
	Items       []RequestItem `json:"items" validate:"required,min=1,dive"`
	Reason      string        `json:"reason" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Evidence    []string      `json:"evidence" validate:"max=6,dive,url"`
}

// RejectInput carries the admin's rejection detail.
type RejectInput struct {
	Category string `json:"category" validate:"required,max=60"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

// EligibilityResult answers "can I return this order" for the storefront.
type EligibilityResult struct {
	Eligible bool       `json:"eligible"`
	Reason   string     `json:"reason,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// Service runs the return workflow.
type Service interface {
	CheckEligibility(ctx context.Context, userID, orderID uuid.UUID) (*EligibilityResult, error)
	Request(ctx context.Context, userID, orderID uuid.UUID, input RequestInput) (*models.Order, error)
	Approve(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error)
	Reject(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input RejectInput) (*models.Order, error)
	MarkReceived(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error)
}

// ServiceParams wires the returns service.
type ServiceParams struct {
	Tx      txRunner
	Orders  orders.Repository
	Payouts payoutOpener
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Window  time.Duration
	Now     func() time.Time
}

type service struct {
	tx      txRunner
	orders  orders.Repository
	payouts payoutOpener
	outbox  outboxPublisher
	logg    *logger.Logger
	window  time.Duration
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Payouts == nil:
		return nil, fmt.Errorf("payout opener required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	window := params.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:      params.Tx,
		orders:  params.Orders,
		payouts: params.Payouts,
		outbox:  params.Outbox,
		logg:    params.Logger,
		window:  window,
		now:     now,
	}, nil
}

func (s *service) CheckEligibility(ctx context.Context, userID, orderID uuid.UUID) (*EligibilityResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	res := &EligibilityResult{Eligible: true, Deadline: Deadline(order, s.window)}
	if err := Eligibility(order, s.now(), s.window); err != nil {
		res.Eligible = false
		if te := pkgerrors.As(err); te != nil {
			res.Reason = te.Message()
		}
	}
	return res, nil
}

// Request snapshots the selected lines and moves the order to return_requested.
func (s *service) Request(ctx context.Context, userID, orderID uuid.UUID, input RequestInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return request")
	}
	now := s.now()
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err := Eligibility(order, now, s.window); err != nil {
			return err
		}
		items, err := snapshot(order, input.Items)
		if err != nil {
			return err
		}
		requestedAt := now.UTC()
		order.Return = types.ReturnRequest{
			Status:      enums.ReturnStatusPending,
			Reason:      strings.TrimSpace(input.Reason),
			Description: strings.TrimSpace(input.Description),
			Evidence:    input.Evidence,
			Items:       items,
			RequestedAt: &requestedAt,
		}
		if err := orders.Transition(order, enums.OrderStatusReturnRequested, now); err != nil {
			return err
		}
		lineIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			lineIDs = append(lineIDs, item.LineID)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.ActorRoleCustomer},
			Data: payloads.ReturnRequestedEvent{
				OrderID:   order.ID,
				LineIDs:   lineIDs,
				Reason:    order.Return.Reason,
				Requested: requestedAt,
			},
		})
	})
}

func (s *service) Approve(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	now := s.now()
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusReturnRequested || order.Return.Status != enums.ReturnStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no return request to approve")
		}
		if err := orders.Transition(order, enums.OrderStatusReturning, now); err != nil {
			return err
		}
		reviewedAt := now.UTC()
		order.Return.Status = enums.ReturnStatusApproved
		order.Return.ReviewedAt = &reviewedAt
		return s.emitDecision(ctx, tx, actor, order, "")
	})
}

// Reject rolls the order back to delivered. The original delivery date is
// kept, so the window does not restart.
func (s *service) Reject(ctx context.Context, actor orders.Actor, orderID uuid.UUID, input RejectInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rejection")
	}
	now := s.now()
	return s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusReturnRequested || order.Return.Status != enums.ReturnStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no return request to reject")
		}
		if err := orders.Transition(order, enums.OrderStatusDelivered, now); err != nil {
			return err
		}
		reviewedAt := now.UTC()
		order.Return.Status = enums.ReturnStatusRejected
		order.Return.ReviewedAt = &reviewedAt
		order.Return.RejectionCategory = input.Category
		order.Return.RejectionReason = input.Reason
		return s.emitDecision(ctx, tx, actor, order, input.Reason)
	})
}

// MarkReceived flags the returned lines and closes the order. COD orders get
// their payout opened in the same transaction.
func (s *service) MarkReceived(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	now := s.now()
	order, err := s.mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != enums.OrderStatusReturning || order.Return.Status != enums.ReturnStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting a returned parcel")
		}
		stamp := now.UTC()
		for _, ret := range order.Return.Items {
			item := order.ItemByLineID(ret.LineID)
			if item == nil || item.Status != enums.LineItemStatusActive {
				continue
			}
			item.Status = enums.LineItemStatusReturned
			item.ReturnReason = order.Return.Reason
			item.ReturnedAt = &stamp
		}
		order.Return.ReceivedAt = &stamp
		if err := orders.Transition(order, enums.OrderStatusReturned, now); err != nil {
			return err
		}
		if order.PaymentMethod == enums.PaymentMethodCOD {
			if _, err := s.payouts.EnsureForOrder(ctx, tx, order); err != nil {
				return err
			}
		}
		return s.emitDecision(ctx, tx, actor, order, "")
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"payment_method": string(order.PaymentMethod),
	}), "return received")
	return order, nil
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, actor orders.Actor, order *models.Order, reason string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReturnDecided,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
		Data: payloads.ReturnDecidedEvent{
			OrderID:      order.ID,
			ReturnStatus: order.Return.Status,
			OrderStatus:  order.Status,
			Reason:       reason,
		},
	})
}

// snapshot copies the selected lines so later line changes cannot alter the
// refund computed for this return.
func snapshot(order *models.Order, selected []RequestItem) ([]types.ReturnItem, error) {
	seen := make(map[uuid.UUID]struct{}, len(selected))
	out := make([]types.ReturnItem, 0, len(selected))
	for _, sel := range selected {
		if _, dup := seen[sel.LineID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each item may be selected once")
		}
		seen[sel.LineID] = struct{}{}

		item := order.ItemByLineID(sel.LineID)
		if item == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected item is not part of this order")
		}
		if item.Status != enums.LineItemStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is %s and cannot be returned", item.Name, item.Status))
		}
		if sel.Quantity > item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("cannot return %d of %s; only %d purchased", sel.Quantity, item.Name, item.Quantity))
		}
		out = append(out, types.ReturnItem{
			LineID:         item.LineID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       sel.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
			LineTotalMinor: item.UnitPriceMinor * int64(sel.Quantity),
		})
	}
	return out, nil
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
