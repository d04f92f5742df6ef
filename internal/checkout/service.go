package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	NextActionRedirect = "redirect"
	NextActionPay      = "pay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type contextBuilder interface {
	Build(ctx context.Context, userID uuid.UUID) (*Context, error)
}

type stockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, items []inventory.Item) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type intentCreator interface {
	CreateIntent(ctx context.Context, order *models.Order) (*payments.Intent, error)
}

// Service executes checkout orchestration.
type Service interface {
	BuildContext(ctx context.Context, userID uuid.UUID) (*Context, error)
	Validate(ctx context.Context, userID uuid.UUID) (*Context, error)
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error)
}

// PlaceOrderInput is what the buyer submits. Exactly one of AddressID or
// Address must be set.
type PlaceOrderInput struct {
	PaymentMethod enums.PaymentMethod
	AddressID     *uuid.UUID
	Address       *types.AddressSnapshot
	Note          string
}

// PlaceOrderResult tells the client what to do next: follow the redirect for
// COD, or pay against Payment for gateway orders.
type PlaceOrderResult struct {
	Order      *models.Order    `json:"order"`
	NextAction string           `json:"nextAction"`
	Payment    *payments.Intent `json:"payment,omitempty"`
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Tx         txRunner
	Builder    contextBuilder
	Addresses  addresses.Repository
	Carts      cart.CartRepository
	Orders     orders.Repository
	Stock      stockDecrementer
	Outbox     outboxPublisher
	Intents    intentCreator
	Logger     *logger.Logger
	CodePrefix string
	Now        func() time.Time
}

type service struct {
	tx         txRunner
	builder    contextBuilder
	addresses  addresses.Repository
	carts      cart.CartRepository
	orders     orders.Repository
	stock      stockDecrementer
	outbox     outboxPublisher
	intents    intentCreator
	logg       *logger.Logger
	codePrefix string
	now        func() time.Time
	validate   *validator.Validate
}

// NewService builds the checkout service. Intents may be nil when online
// payments are not configured; gateway placement is then refused.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("context builder required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock decrementer required")
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
		tx:         params.Tx,
		builder:    params.Builder,
		addresses:  params.Addresses,
		carts:      params.Carts,
		orders:     params.Orders,
		stock:      params.Stock,
		outbox:     params.Outbox,
		intents:    params.Intents,
		logg:       params.Logger,
		codePrefix: params.CodePrefix,
		now:        now,
		validate:   validator.New(),
	}, nil
}

func (s *service) BuildContext(ctx context.Context, userID uuid.UUID) (*Context, error) {
	return s.builder.Build(ctx, userID)
}

// Validate returns the context and a CodeValidation error carrying the
// blocking issues when the cart cannot be placed.
func (s *service) Validate(ctx context.Context, userID uuid.UUID) (*Context, error) {
	checkoutCtx, err := s.builder.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	if checkoutCtx.HasBlockingIssues() {
		return checkoutCtx, blockingError(checkoutCtx)
	}
	return checkoutCtx, nil
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	switch input.PaymentMethod {
	case enums.PaymentMethodCOD, enums.PaymentMethodGateway:
	case enums.PaymentMethodWallet:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Wallet payments not implemented yet.")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid payment method.")
	}
	if input.PaymentMethod == enums.PaymentMethodGateway && s.intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Online payment not available. Please choose COD.")
	}

	checkoutCtx, err := s.Validate(ctx, userID)
	if err != nil {
		return nil, err
	}
	address, err := s.resolveAddress(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	order := s.newOrder(userID, checkoutCtx, input, address)
	if input.PaymentMethod == enums.PaymentMethodCOD {
		if err := s.placeCOD(ctx, order); err != nil {
			return nil, err
		}
		s.logPlaced(ctx, order)
		return &PlaceOrderResult{Order: order, NextAction: NextActionRedirect}, nil
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.insert(ctx, tx, order)
	}); err != nil {
		return nil, err
	}
	s.logPlaced(ctx, order)

	intent, err := s.intents.CreateIntent(ctx, order)
	if err != nil {
		// the order stays pending without an intent; the buyer retries payment from the order page
		return nil, err
	}
	return &PlaceOrderResult{Order: order, NextAction: NextActionPay, Payment: intent}, nil
}

// placeCOD decrements stock, stores the order, clears the cart and queues the
// event atomically.
func (s *service) placeCOD(ctx context.Context, order *models.Order) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.stock.Decrement(ctx, tx, stockItems(order)); err != nil {
			return err
		}
		if err := s.insert(ctx, tx, order); err != nil {
			return err
		}
		return s.carts.WithTx(tx).Clear(ctx, order.UserID)
	})
}

func (s *service) insert(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	code, err := orders.NextCode(ctx, tx, s.codePrefix, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order code")
	}
	order.Code = code
	if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: enums.ActorRoleCustomer},
		Data: payloads.OrderPlacedEvent{
			OrderID:         order.ID,
			Code:            order.Code,
			UserID:          order.UserID,
			PaymentMethod:   order.PaymentMethod,
			GrandTotalMinor: order.GrandTotalMinor,
			Currency:        order.Currency,
		},
	})
}

func (s *service) newOrder(userID uuid.UUID, checkoutCtx *Context, input PlaceOrderInput, address types.AddressSnapshot) *models.Order {
	items := make([]types.OrderItem, 0, len(checkoutCtx.Lines))
	for _, line := range checkoutCtx.Lines {
		items = append(items, types.OrderItem{
			LineID:         uuid.New(),
			ProductID:      line.ProductID,
			Name:           line.Name,
			Image:          line.Image,
			Color:          line.Color,
			UnitPriceMinor: line.UnitPriceMinor,
			Quantity:       line.Quantity,
			LineTotalMinor: line.LineTotalMinor,
			Status:         enums.LineItemStatusActive,
		})
	}
	totals := checkoutCtx.Totals
	return &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		Items:           items,
		ShippingAddress: address,
		Note:            strings.TrimSpace(input.Note),
		Currency:        checkoutCtx.Currency,
		SubtotalMinor:   totals.SubtotalMinor,
		DiscountMinor:   totals.DiscountMinor,
		ShippingMinor:   totals.ShippingMinor,
		TaxMinor:        totals.TaxMinor,
		GrandTotalMinor: totals.GrandTotalMinor,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusPending,
		Return:          types.ReturnRequest{Status: enums.ReturnStatusNone},
	}
}

func (s *service) resolveAddress(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (types.AddressSnapshot, error) {
	if input.AddressID != nil {
		addr, err := s.addresses.FindForUser(ctx, userID, *input.AddressID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return types.AddressSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "Selected address not found.")
			}
			return types.AddressSnapshot{}, err
		}
		return addr.Snapshot(), nil
	}
	if input.Address != nil {
		if err := s.validate.Struct(input.Address); err != nil {
			return types.AddressSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping address is incomplete")
		}
		return *input.Address, nil
	}
	return types.AddressSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "Shipping address is required.")
}

func (s *service) logPlaced(ctx context.Context, order *models.Order) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"order_code":     order.Code,
		"payment_method": order.PaymentMethod,
		"grand_total":    order.GrandTotalMinor,
	})
	s.logg.Info(logCtx, "order placed")
}

func blockingError(checkoutCtx *Context) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Please resolve cart issues before checkout.").
		WithDetails(map[string]any{"issues": checkoutCtx.BlockingIssues()})
}

func stockItems(order *models.Order) []inventory.Item {
	items := make([]inventory.Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, inventory.Item{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity})
	}
	return items
}
