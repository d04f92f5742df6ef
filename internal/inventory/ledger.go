// Package inventory applies stock movements with conditional updates so stock
// can never go negative, regardless of how many checkouts race.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Item is one stock movement request.
type Item struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
}

// OutOfStockError reports the product whose conditional decrement matched no row.
type OutOfStockError struct {
	ProductID   uuid.UUID
	ProductName string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock", e.ProductName)
}

// Ledger runs decrements and restores against the products table. It never
// opens its own transaction: callers pass the tx that also persists the order.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Decrement removes quantity for every item, only when the product is unblocked
// and has enough stock. The first failing item aborts with a CodeOutOfStock
// error; the caller's transaction rollback undoes the earlier rows.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, items []Item) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	merged, err := merge(items)
	if err != nil {
		return err
	}
	for _, item := range merged {
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND is_blocked = ? AND stock >= ?", item.ProductID, false, item.Quantity).
			Update("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			oos := &OutOfStockError{ProductID: item.ProductID, ProductName: item.Name}
			return pkgerrors.Wrap(pkgerrors.CodeOutOfStock, oos, oos.Error()).
				WithDetails(map[string]any{"productId": item.ProductID, "product": item.Name})
		}
	}
	return nil
}

// Restore adds quantity back, used when a placed order is cancelled.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, items []Item) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	merged, err := merge(items)
	if err != nil {
		return err
	}
	for _, item := range merged {
		err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}
	return nil
}

// merge sums quantities per product and orders rows by id so concurrent
// transactions touch rows in the same order.
func merge(items []Item) ([]Item, error) {
	byID := make(map[uuid.UUID]*Item, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if existing, ok := byID[item.ProductID]; ok {
			existing.Quantity += item.Quantity
			continue
		}
		out = append(out, item)
		byID[item.ProductID] = &out[len(out)-1]
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}
