// Package refunds computes what a return is worth and issues gateway refunds
// for it.
package refunds

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Breakdown explains a refundable amount line by line.
type Breakdown struct {
	ItemsValueMinor    int64 `json:"itemsValueMinor"`
	DiscountShareMinor int64 `json:"discountShareMinor"`
	TaxShareMinor      int64 `json:"taxShareMinor"`
	ShippingMinor      int64 `json:"shippingMinor"`
	FullReturn         bool  `json:"fullReturn"`
	TotalMinor         int64 `json:"totalMinor"`
}

// Compute prorates the order's discount and tax over the returned value.
// Shipping is only refunded when every purchased unit comes back. The total is
// clamped to [0, GrandTotal].
func Compute(order *models.Order, items []types.ReturnItem) Breakdown {
	var b Breakdown
	returnedQty := 0
	for _, item := range items {
		b.ItemsValueMinor += item.UnitPriceMinor * int64(item.Quantity)
		returnedQty += item.Quantity
	}

	if order.SubtotalMinor > 0 && b.ItemsValueMinor > 0 {
		ratio := decimal.NewFromInt(b.ItemsValueMinor).Div(decimal.NewFromInt(order.SubtotalMinor))
		b.DiscountShareMinor = share(order.DiscountMinor, ratio)
		b.TaxShareMinor = share(order.TaxMinor, ratio)
	}

	purchasedQty := 0
	for _, item := range order.Items {
		if item.Status != enums.LineItemStatusCancelled {
			purchasedQty += item.Quantity
		}
	}
	b.FullReturn = purchasedQty > 0 && returnedQty >= purchasedQty
	if b.FullReturn {
		b.ShippingMinor = order.ShippingMinor
	}

	total := b.ItemsValueMinor - b.DiscountShareMinor + b.TaxShareMinor + b.ShippingMinor
	if total < 0 {
		total = 0
	}
	if total > order.GrandTotalMinor {
		total = order.GrandTotalMinor
	}
	b.TotalMinor = total
	return b
}

// Refundable is Compute(order, items).TotalMinor.
func Refundable(order *models.Order, items []types.ReturnItem) int64 {
	return Compute(order, items).TotalMinor
}

// share rounds half-up to the minor unit.
func share(amount int64, ratio decimal.Decimal) int64 {
	if amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(ratio).Round(0).IntPart()
}
