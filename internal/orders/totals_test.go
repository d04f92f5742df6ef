package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func sampleOrder(status enums.OrderStatus) *models.Order {
	order := &models.Order{
		Status: status,
		Items: []types.OrderItem{
			{LineID: uuid.New(), Name: "Kurta", UnitPriceMinor: 60000, Quantity: 1, LineTotalMinor: 60000, Status: enums.LineItemStatusActive},
			{LineID: uuid.New(), Name: "Scarf", UnitPriceMinor: 20000, Quantity: 2, LineTotalMinor: 40000, Status: enums.LineItemStatusActive},
		},
		DiscountMinor: 5000,
		ShippingMinor: 4900,
		TaxMinor:      1800,
	}
	RecomputeTotals(order)
	return order
}

func assertGrandTotalInvariant(t *testing.T, order *models.Order) {
	t.Helper()
	assert.Equal(t, order.SubtotalMinor-order.DiscountMinor+order.ShippingMinor+order.TaxMinor, order.GrandTotalMinor)
}

func TestRecomputeTotalsHoldsInvariant(t *testing.T) {
	order := sampleOrder(enums.OrderStatusPending)
	assert.Equal(t, int64(100000), order.SubtotalMinor)
	assert.Equal(t, int64(101700), order.GrandTotalMinor)
	assertGrandTotalInvariant(t, order)
}

func TestCancelItemBeforeShipmentShrinksTotals(t *testing.T) {
	order := sampleOrder(enums.OrderStatusProcessing)
	line := order.Items[1].LineID

	require.NoError(t, CancelItem(order, line, "", time.Now()))

	item := order.ItemByLineID(line)
	assert.Equal(t, enums.LineItemStatusCancelled, item.Status)
	assert.Equal(t, int64(0), item.LineTotalMinor)
	assert.Equal(t, "Cancelled by admin", item.CancelReason)
	assert.Equal(t, int64(60000), order.SubtotalMinor)
	assertGrandTotalInvariant(t, order)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
}

func TestCancelItemAfterShipmentOnlyFlags(t *testing.T) {
	order := sampleOrder(enums.OrderStatusShipped)
	before := order.GrandTotalMinor
	line := order.Items[0].LineID

	require.NoError(t, CancelItem(order, line, "damaged", time.Now()))

	assert.Equal(t, enums.LineItemStatusCancelled, order.ItemByLineID(line).Status)
	assert.Equal(t, int64(60000), order.ItemByLineID(line).LineTotalMinor)
	assert.Equal(t, before, order.GrandTotalMinor)
	assertGrandTotalInvariant(t, order)
}

func TestCancelItemRejectsInactiveOrMissing(t *testing.T) {
	order := sampleOrder(enums.OrderStatusProcessing)
	line := order.Items[0].LineID
	require.NoError(t, CancelItem(order, line, "", time.Now()))

	err := CancelItem(order, line, "", time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	err = CancelItem(order, uuid.New(), "", time.Now())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRecomputeCapsDiscountAtSubtotal(t *testing.T) {
	order := sampleOrder(enums.OrderStatusPending)
	order.DiscountMinor = 500000
	RecomputeTotals(order)
	assert.Equal(t, order.SubtotalMinor, order.DiscountMinor)
	assertGrandTotalInvariant(t, order)
	assert.GreaterOrEqual(t, order.GrandTotalMinor, int64(0))
}

func TestGrandTotalFloorsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), GrandTotal(100, 500, 0, 0))
	assert.Equal(t, int64(950), GrandTotal(1000, 100, 50, 0))
}
