package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Actor is the caller on whose behalf a command runs.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// ListFilters narrows admin order listings.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
	UserID        *uuid.UUID
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// TrackingInput carries carrier details from the admin.
type TrackingInput struct {
	Provider string `json:"provider" validate:"required,max=100"`
	Number   string `json:"number" validate:"required,max=100"`
	URL      string `json:"url" validate:"omitempty,url,max=500"`
}
