package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// GrandTotal applies the order total formula, floored at zero.
func GrandTotal(subtotal, discount, shipping, tax int64) int64 {
	total := subtotal - discount + shipping + tax
	if total < 0 {
		return 0
	}
	return total
}

// RecomputeTotals derives subtotal from the line totals and refreshes the
// grand total. Discount is capped at the subtotal so the formula never needs
// the zero floor on a persisted order.
func RecomputeTotals(order *models.Order) {
	var subtotal int64
	for _, item := range order.Items {
		subtotal += item.LineTotalMinor
	}
	order.SubtotalMinor = subtotal
	if order.DiscountMinor > subtotal {
		order.DiscountMinor = subtotal
	}
	order.GrandTotalMinor = GrandTotal(order.SubtotalMinor, order.DiscountMinor, order.ShippingMinor, order.TaxMinor)
}

// CancelItem flags a single line as cancelled. Before shipment the line total
// is zeroed and the order totals shrink; afterwards only the flag is recorded
// and any refund goes through a manual refund.
func CancelItem(order *models.Order, lineID uuid.UUID, reason string, now time.Time) error {
	if order.Status.IsTerminal() {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrTerminalState,
			fmt.Sprintf("order is %s and cannot change items", order.Status))
	}
	item := order.ItemByLineID(lineID)
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if item.Status != enums.LineItemStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item already cancelled/returned")
	}
	if reason == "" {
		reason = "Cancelled by admin"
	}
	stamp := now.UTC()
	item.Status = enums.LineItemStatusCancelled
	item.CancelReason = reason
	item.CancelledAt = &stamp

	if !order.Status.IsShipped() {
		item.LineTotalMinor = 0
		RecomputeTotals(order)
	}
	return nil
}
