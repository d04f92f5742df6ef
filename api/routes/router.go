package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payments"
	payoutcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payouts"
	refundcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/refunds"
	returncontrollers "github.com/angelmondragon/storefront-backend/api/controllers/returns"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/payouts"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// RedisStore is the redis surface used by the idempotency and rate limit middleware.
type RedisStore interface {
	Ping(context.Context) error
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// Services groups the domain services the API exposes.
type Services struct {
	Checkout checkout.Service
	Orders   orders.Service
	Payments payments.Service
	Returns  returns.Service
	Refunds  refunds.Service
	Payouts  payouts.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
		httpMetrics.Middleware,
	)

	// interface values holding a nil client would otherwise pass the nil checks
	var (
		redisPinger controllers.Pinger
		idemStore   interface {
			Get(context.Context, string) (string, error)
			SetNX(context.Context, string, any, time.Duration) (bool, error)
			IdempotencyKey(scope, id string) string
		}
		limiterStore interface {
			IncrWithTTL(context.Context, string, time.Duration) (int64, error)
		}
	)
	if redisStore != nil {
		redisPinger, idemStore, limiterStore = redisStore, redisStore, redisStore
	}

	verifyPolicy := middleware.NewRateLimitPolicy(
		"payment_verify",
		cfg.RateLimit.VerifyWindow,
		0,
		cfg.RateLimit.VerifyLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping("public"))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(svc.Payments, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.Ping("customer"))

		r.Route("/v1/checkout", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.Context(svc.Checkout, logg))
			r.Post("/", checkoutcontrollers.Place(svc.Checkout, logg))
			r.Post("/validate", checkoutcontrollers.Validate(svc.Checkout, logg))
		})

		r.With(middleware.RateLimit(verifyPolicy, limiterStore, logg)).
			Post("/v1/payments/verify", paymentcontrollers.Verify(svc.Payments, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(svc.Orders, logg))
				r.Post("/cancel", ordercontrollers.Cancel(svc.Orders, logg))
				r.Post("/retry", paymentcontrollers.Retry(svc.Payments, logg))
				r.Get("/return/eligibility", returncontrollers.Eligibility(svc.Returns, logg))
				r.Post("/return", returncontrollers.Request(svc.Returns, logg))
				r.Get("/payout", payoutcontrollers.Get(svc.Payouts, logg))
				r.Put("/payout/destination", payoutcontrollers.SetDestination(svc.Payouts, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Get("/ping", controllers.Ping("admin"))

			r.Route("/v1/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.AdminList(svc.Orders, logg))
				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", ordercontrollers.Detail(svc.Orders, logg))
					r.Patch("/status", ordercontrollers.AdminUpdateStatus(svc.Orders, logg))
					r.Put("/tracking", ordercontrollers.AdminUpdateTracking(svc.Orders, logg))
					r.Post("/cancel", ordercontrollers.Cancel(svc.Orders, logg))
					r.Post("/items/{lineId}/cancel", ordercontrollers.AdminCancelItem(svc.Orders, logg))

					r.Post("/return/approve", returncontrollers.AdminApprove(svc.Returns, logg))
					r.Post("/return/reject", returncontrollers.AdminReject(svc.Returns, logg))
					r.Post("/return/received", returncontrollers.AdminReceived(svc.Returns, logg))

					r.Get("/refunds/quote", refundcontrollers.Quote(svc.Refunds, logg))
					r.Post("/refunds/return", refundcontrollers.IssueReturn(svc.Refunds, logg))
					r.Post("/refunds/manual", refundcontrollers.IssueManual(svc.Refunds, logg))

					r.Get("/payout", payoutcontrollers.Get(svc.Payouts, logg))
					r.Put("/payout/destination", payoutcontrollers.SetDestination(svc.Payouts, logg))
					r.Post("/payout/paid", payoutcontrollers.MarkPaid(svc.Payouts, logg))
				})
			})
		})
	})

	return r
}
