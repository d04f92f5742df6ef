package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	SetIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	ClaimPayment(ctx context.Context, orderID uuid.UUID, paymentID, signature string) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.findOne(ctx, "gateway_intent_id = ?", intentID)
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.findOne(ctx, "gateway_payment_id = ?", paymentID)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where(query, arg).First(&order).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return &order, nil
}

// Save persists the whole aggregate when its version still matches the loaded
// one, then bumps the version. A concurrent writer makes it fail with CodeConflict.
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	expected := order.Version
	order.Version = expected + 1
	res := r.db.WithContext(ctx).
		Model(order).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(order)
	if res.Error != nil {
		order.Version = expected
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save order")
	}
	if res.RowsAffected == 0 {
		order.Version = expected
		return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently; retry")
	}
	return nil
}

// SetIntent records the gateway intent the client should pay against.
func (r *repository) SetIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gateway_payment_id IS NULL", orderID).
		Updates(map[string]any{
			"gateway_intent_id": intentID,
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "store payment intent")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already recorded for this order")
	}
	return nil
}

// ClaimPayment records paymentID on the order only if no payment was recorded
// before. Exactly one caller per order observes true.
func (r *repository) ClaimPayment(ctx context.Context, orderID uuid.UUID, paymentID, signature string) (bool, error) {
	updates := map[string]any{
		"gateway_payment_id": paymentID,
		"version":            gorm.Expr("version + 1"),
	}
	if signature != "" {
		updates["gateway_signature"] = signature
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gateway_payment_id IS NULL", orderID).
		Updates(updates)
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error, "") {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "claim payment")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return r.list(ctx, params, r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	q := r.db.WithContext(ctx)
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.PaymentMethod != nil {
		q = q.Where("payment_method = ?", *filters.PaymentMethod)
	}
	if filters.UserID != nil {
		q = q.Where("user_id = ?", *filters.UserID)
	}
	return r.list(ctx, params, q)
}

func (r *repository) list(ctx context.Context, params pagination.Params, q *gorm.DB) (*OrderList, error) {
	window, err := params.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var rows []models.Order
	if err := window.Apply(q.WithContext(ctx)).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	page, next := pagination.Split(rows, window.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &OrderList{Orders: page, NextCursor: next}, nil
}
