package square

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Buyer side failures are not retryable by us; the order stays where it is
// and the buyer can try another card.
var declineCodes = map[string]bool{
	"CARD_DECLINED":                true,
	"GENERIC_DECLINE":              true,
	"INSUFFICIENT_FUNDS":           true,
	"CVV_FAILURE":                  true,
	"ADDRESS_VERIFICATION_FAILURE": true,
	"CARD_EXPIRED":                 true,
	"TRANSACTION_LIMIT":            true,
}

// Refund rejections that mean the money cannot go back through this payment.
var refundRejectCodes = map[string]bool{
	"PAYMENT_NOT_REFUNDABLE": true,
	"REFUND_AMOUNT_INVALID":  true,
	"REFUND_ALREADY_PENDING": true,
}

// mapError turns an SDK error into a domain error. Transport failures and
// gateway 5xx are Dependency so callers can route the order to manual
// reconciliation.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"

	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}

	code := domainCodeForStatus(apiErr.StatusCode)
	for _, sqErr := range squareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		switch {
		case sqErr.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case sqErr.Category == sq.ErrorCategoryAuthenticationError:
			// our credentials, not the caller's
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
		case declineCodes[string(sqErr.Code)]:
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "payment was declined").
				WithDetails(map[string]any{"gatewayCode": string(sqErr.Code)})
		case refundRejectCodes[string(sqErr.Code)]:
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "refund rejected by gateway").
				WithDetails(map[string]any{"gatewayCode": string(sqErr.Code)})
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeDependency
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
