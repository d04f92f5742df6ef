// Package returns runs the customer return sub-workflow of a delivered order:
// request, admin decision, and receipt at the warehouse.
package returns

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// DefaultWindow is how long after delivery a return may be requested.
const DefaultWindow = 7 * 24 * time.Hour

// Reasons a return request is refused.
const (
	ReasonNotDelivered     = "Only delivered orders can be returned."
	ReasonNoDeliveryDate   = "Delivery date is not recorded for this order."
	ReasonWindowClosed     = "The return window for this order has closed."
	ReasonAlreadyRequested = "A return is already in progress for this order."
)

// Eligibility reports whether a return may be requested at now. The window
// end is exclusive: a request at exactly DeliveredAt+window is refused.
func Eligibility(order *models.Order, now time.Time, window time.Duration) error {
	if window <= 0 {
		window = DefaultWindow
	}
	if order.Status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeStateConflict, ReasonNotDelivered)
	}
	if order.DeliveredAt == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, ReasonNoDeliveryDate)
	}
	if !now.Before(order.DeliveredAt.Add(window)) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, ReasonWindowClosed)
	}
	if order.Return.Status.InProgress() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, ReasonAlreadyRequested)
	}
	return nil
}

// Deadline is the first instant a return is no longer accepted.
func Deadline(order *models.Order, window time.Duration) *time.Time {
	if order.DeliveredAt == nil {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}
	end := order.DeliveredAt.Add(window)
	return &end
}
