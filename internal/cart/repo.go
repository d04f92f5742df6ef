package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository exposes persistence operations for user carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the user's cart with its items. A user without a cart gets
// an empty one so callers can report EMPTY_CART uniformly.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Where("user_id = ?", userID).
		First(&record).Error
	if err != nil {
		if db.IsNotFound(err) {
			return &models.Cart{UserID: userID}, nil
		}
		return nil, err
	}
	return &record, nil
}

// Clear removes every item from the user's cart.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	sub := r.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	return r.db.WithContext(ctx).
		Where("cart_id IN (?)", sub).
		Delete(&models.CartItem{}).Error
}
