package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func seedProduct(t *testing.T, client *db.Client, name string, stock int, blocked bool) models.Product {
	t.Helper()
	p := models.Product{Name: name, PriceMinor: 1000, Stock: stock, IsBlocked: blocked}
	require.NoError(t, client.DB().Create(&p).Error)
	return p
}

func stockOf(t *testing.T, client *db.Client, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, client.DB().First(&p, "id = ?", id).Error)
	return p.Stock
}

func TestDecrementIsAllOrNothing(t *testing.T) {
	client := dbtest.Open(t)
	ledger := NewLedger()
	ctx := context.Background()

	plenty := seedProduct(t, client, "Mug", 10, false)
	scarce := seedProduct(t, client, "Lamp", 1, false)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Decrement(ctx, tx, []Item{
			{ProductID: plenty.ID, Name: plenty.Name, Quantity: 3},
			{ProductID: scarce.ID, Name: scarce.Name, Quantity: 2},
		})
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))

	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "Lamp", oos.ProductName)

	assert.Equal(t, 10, stockOf(t, client, plenty.ID))
	assert.Equal(t, 1, stockOf(t, client, scarce.ID))
}

func TestDecrementRejectsBlockedProduct(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	blocked := seedProduct(t, client, "Recalled", 5, true)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return NewLedger().Decrement(ctx, tx, []Item{{ProductID: blocked.ID, Name: blocked.Name, Quantity: 1}})
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))
	assert.Equal(t, 5, stockOf(t, client, blocked.ID))
}

func TestDecrementMergesDuplicateLines(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	p := seedProduct(t, client, "Sock", 3, false)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return NewLedger().Decrement(ctx, tx, []Item{
			{ProductID: p.ID, Name: p.Name, Quantity: 2},
			{ProductID: p.ID, Name: p.Name, Quantity: 2},
		})
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))
	assert.Equal(t, 3, stockOf(t, client, p.ID))
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	const (
		stock    = 7
		quantity = 2
		buyers   = 6
	)
	p := seedProduct(t, client, "Limited", stock, false)
	ledger := NewLedger()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		outOfStk  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(ctx, func(tx *gorm.DB) error {
				return ledger.Decrement(ctx, tx, []Item{{ProductID: p.ID, Name: p.Name, Quantity: quantity}})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock):
				outOfStk++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock/quantity, succeeded)
	assert.Equal(t, buyers-stock/quantity, outOfStk)
	assert.Equal(t, stock-(stock/quantity)*quantity, stockOf(t, client, p.ID))
}

func TestRestoreAddsStockBack(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	p := seedProduct(t, client, "Cap", 2, false)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return NewLedger().Restore(ctx, tx, []Item{{ProductID: p.ID, Quantity: 3}})
	}))
	assert.Equal(t, 5, stockOf(t, client, p.ID))
}

func TestDecrementValidatesQuantity(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return NewLedger().Decrement(ctx, tx, []Item{{ProductID: uuid.New(), Quantity: 0}})
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
