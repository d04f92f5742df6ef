package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/addresses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/payouts"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type serviceDeps struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           *db.Client
	redis        *redis.Client
	gateway      payments.Gateway
	orderMetrics *metrics.OrderMetrics
}

// buildServices wires repositories and domain services in dependency order:
// payments before orders so cancellation refunds can go through the gateway.
func buildServices(deps serviceDeps) (routes.Services, error) {
	conn := deps.db.DB()
	cfg := deps.cfg

	orderRepo := orders.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	payoutRepo := payouts.NewRepository(conn)
	ledger := inventory.NewLedger()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), deps.logg)

	events, err := idempotency.NewManager(deps.redis, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		return routes.Services{}, fmt.Errorf("webhook idempotency: %w", err)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Tx:            deps.db,
		Orders:        orderRepo,
		Stock:         ledger,
		Carts:         cartRepo,
		Outbox:        outboxSvc,
		Gateway:       deps.gateway,
		Events:        events,
		Metrics:       deps.orderMetrics,
		Logger:        deps.logg,
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("payments service: %w", err)
	}

	builder, err := checkout.NewBuilder(cartRepo, catalog.NewRepository(conn), checkout.PricingRules{
		FreeShippingThresholdMinor: cfg.Checkout.FreeShippingThresholdMinor,
		FlatShippingFeeMinor:       cfg.Checkout.FlatShippingFeeMinor,
		Tax:                        checkout.RateTax{BasisPoints: cfg.Checkout.TaxRateBasisPoints},
	}, cfg.Gateway.Currency)
	if err != nil {
		return routes.Services{}, fmt.Errorf("checkout builder: %w", err)
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:         deps.db,
		Builder:    builder,
		Addresses:  addresses.NewRepository(conn),
		Carts:      cartRepo,
		Orders:     orderRepo,
		Stock:      ledger,
		Outbox:     outboxSvc,
		Intents:    paymentsSvc,
		Logger:     deps.logg,
		CodePrefix: cfg.Orders.CodePrefix,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("checkout service: %w", err)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Tx:       deps.db,
		Repo:     orderRepo,
		Stock:    ledger,
		Outbox:   outboxSvc,
		Refunder: cancellationRefunder(paymentsSvc),
		Logger:   deps.logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("orders service: %w", err)
	}

	payoutsSvc, err := payouts.NewService(payouts.ServiceParams{
		Tx:     deps.db,
		Repo:   payoutRepo,
		Orders: orderRepo,
		Outbox: outboxSvc,
		Logger: deps.logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("payouts service: %w", err)
	}

	returnsSvc, err := returns.NewService(returns.ServiceParams{
		Tx:      deps.db,
		Orders:  orderRepo,
		Payouts: payoutsSvc,
		Outbox:  outboxSvc,
		Logger:  deps.logg,
		Window:  cfg.Returns.Window,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("returns service: %w", err)
	}

	refundsSvc, err := refunds.NewService(orderRepo, paymentsSvc, deps.logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("refunds service: %w", err)
	}

	return routes.Services{
		Checkout: checkoutSvc,
		Orders:   ordersSvc,
		Payments: paymentsSvc,
		Returns:  returnsSvc,
		Refunds:  refundsSvc,
		Payouts:  payoutsSvc,
	}, nil
}

// cancellationRefunder refunds whatever was captured on a cancelled gateway order.
func cancellationRefunder(svc payments.Service) orders.CancellationRefunder {
	return func(ctx context.Context, orderID uuid.UUID, amountMinor int64, reason string) error {
		_, err := svc.Refund(ctx, payments.RefundInput{
			OrderID:     orderID,
			AmountMinor: amountMinor,
			Type:        payments.RefundTypeCancel,
			Reason:      reason,
			Notes:       map[string]string{"source": "order_cancelled"},
		})
		return err
	}
}
