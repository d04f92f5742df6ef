package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/orders"
)

// Totals is the money breakdown of a checkout, all in minor units.
type Totals struct {
	SubtotalMinor   int64 `json:"subtotalMinor"`
	DiscountMinor   int64 `json:"discountMinor"`
	ShippingMinor   int64 `json:"shippingMinor"`
	TaxMinor        int64 `json:"taxMinor"`
	GrandTotalMinor int64 `json:"grandTotalMinor"`
}

// TaxPolicy computes tax for a discounted subtotal.
type TaxPolicy interface {
	TaxMinor(taxableMinor int64) int64
}

// RateTax applies a flat rate expressed in basis points, rounded half up.
type RateTax struct {
	BasisPoints int64
}

func (r RateTax) TaxMinor(taxableMinor int64) int64 {
	if r.BasisPoints <= 0 || taxableMinor <= 0 {
		return 0
	}
	return decimal.NewFromInt(taxableMinor).
		Mul(decimal.NewFromInt(r.BasisPoints)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}

// PricingRules configures shipping and tax.
type PricingRules struct {
	FreeShippingThresholdMinor int64
	FlatShippingFeeMinor       int64
	Tax                        TaxPolicy
}

// DefaultPricingRules ships free from 999.00 and charges 49.00 below it, with no tax.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		FreeShippingThresholdMinor: 99900,
		FlatShippingFeeMinor:       4900,
		Tax:                        RateTax{},
	}
}

// ComputeTotals prices a subtotal. The threshold is inclusive: a subtotal equal
// to it ships free.
func ComputeTotals(subtotalMinor, discountMinor int64, rules PricingRules) Totals {
	if discountMinor < 0 {
		discountMinor = 0
	}
	if discountMinor > subtotalMinor {
		discountMinor = subtotalMinor
	}
	shipping := rules.FlatShippingFeeMinor
	if subtotalMinor >= rules.FreeShippingThresholdMinor {
		shipping = 0
	}
	var tax int64
	if rules.Tax != nil {
		tax = rules.Tax.TaxMinor(subtotalMinor - discountMinor)
	}
	return Totals{
		SubtotalMinor:   subtotalMinor,
		DiscountMinor:   discountMinor,
		ShippingMinor:   shipping,
		TaxMinor:        tax,
		GrandTotalMinor: orders.GrandTotal(subtotalMinor, discountMinor, shipping, tax),
	}
}
