package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Repository persists payouts, one per order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payout, error)
	Save(ctx context.Context, payout *models.Payout) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts a payout. A second payout for the same order trips the
// unique order_id index and comes back as CodeConflict.
func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payout already exists for order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payout")
	}
	return nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payout).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout")
	}
	return &payout, nil
}

// Save writes the payout when its version is unchanged since it was loaded.
func (r *repository) Save(ctx context.Context, payout *models.Payout) error {
	expected := payout.Version
	payout.Version = expected + 1
	res := r.db.WithContext(ctx).
		Model(payout).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(payout)
	if res.Error != nil {
		payout.Version = expected
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save payout")
	}
	if res.RowsAffected == 0 {
		payout.Version = expected
		return pkgerrors.New(pkgerrors.CodeConflict, "payout was modified concurrently; retry")
	}
	return nil
}
