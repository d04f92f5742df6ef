package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrTerminalState is wrapped by every transition attempted on a cancelled or
// returned order.
var ErrTerminalState = errors.New("order is in a terminal state")

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:         {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:      {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:         {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:       {enums.OrderStatusReturnRequested},
	enums.OrderStatusReturnRequested: {enums.OrderStatusReturning, enums.OrderStatusDelivered},
	enums.OrderStatusReturning:       {enums.OrderStatusReturned},
}

// CanTransition reports whether from → to is an edge of the lifecycle graph.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves order to the target status and stamps the lifecycle
// timestamps. It mutates only the in-memory aggregate.
func Transition(order *models.Order, to enums.OrderStatus, now time.Time) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order required")
	}
	from := order.Status
	if from.IsTerminal() {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrTerminalState,
			fmt.Sprintf("order is %s and cannot change status", from))
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", from, to))
	}

	stamp := now.UTC()
	switch to {
	case enums.OrderStatusShipped:
		order.ShippedAt = &stamp
	case enums.OrderStatusDelivered:
		// a rejected return rolls back to delivered; the window keeps its original start
		if from == enums.OrderStatusShipped {
			order.DeliveredAt = &stamp
		}
	case enums.OrderStatusCancelled:
		order.CancelledAt = &stamp
	case enums.OrderStatusReturned:
		order.ReturnedAt = &stamp
	}
	order.Status = to
	return nil
}
