package payments

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// RecordRefund appends a gateway refund to the order's ledger, or updates the
// status of the record already carrying that id, then recomputes the payment
// status. It reports whether a new record was appended.
func RecordRefund(order *models.Order, refund GatewayRefund, notes map[string]string, now time.Time) bool {
	appended := false
	if existing := order.RefundByID(refund.ID); existing != nil {
		existing.Status = refund.Status
	} else {
		order.Refunds = append(order.Refunds, types.RefundRecord{
			ID:          refund.ID,
			AmountMinor: refund.AmountMinor,
			Status:      refund.Status,
			CreatedAt:   now.UTC(),
			Notes:       notes,
		})
		appended = true
	}
	order.PaymentStatus = RefundedPaymentStatus(order)
	return appended
}

// RefundedPaymentStatus is refunded once the ledger covers everything
// captured, partial_refund while something is still held.
func RefundedPaymentStatus(order *models.Order) enums.PaymentStatus {
	refunded := order.RefundedMinor()
	switch {
	case refunded <= 0:
		return order.PaymentStatus
	case order.CapturedMinor > 0 && refunded >= order.CapturedMinor:
		return enums.PaymentStatusRefunded
	default:
		return enums.PaymentStatusPartialRefund
	}
}
