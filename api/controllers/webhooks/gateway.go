package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	signatureHeader       = "X-Gateway-Signature"
	squareSignatureHeader = "X-Square-Hmacsha256-Signature"
	maxWebhookBodyBytes   = 1 << 20
)

// GatewayWebhookService is the slice of the payments service the webhook needs.
type GatewayWebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// GatewayWebhook always acknowledges with 200. Failures are logged; the gateway
// must not keep redelivering an event the service has already recorded.
func GatewayWebhook(svc GatewayWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			logFailure(ctx, logg, "gateway webhook read failed", err)
			responses.WriteSuccess(w, map[string]bool{"received": true})
			return
		}

		signature := strings.TrimSpace(r.Header.Get(signatureHeader))
		if signature == "" {
			signature = strings.TrimSpace(r.Header.Get(squareSignatureHeader))
		}

		if svc == nil {
			logFailure(ctx, logg, "gateway webhook service unavailable", nil)
		} else if err := svc.HandleWebhook(ctx, payload, signature); err != nil {
			logFailure(ctx, logg, "gateway webhook handling failed", err)
		}

		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}

func logFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
