package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	lookupChunkSize   = 100
	lookupConcurrency = 4
)

// Builder turns a stored cart into a priced, validated checkout context.
type Builder struct {
	carts    cart.CartRepository
	products catalog.Repository
	rules    PricingRules
	currency string
}

// NewBuilder wires a builder. An empty currency defaults to INR.
func NewBuilder(carts cart.CartRepository, products catalog.Repository, rules PricingRules, currency string) (*Builder, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if currency == "" {
		currency = "INR"
	}
	return &Builder{carts: carts, products: products, rules: rules, currency: currency}, nil
}

// Build validates every cart line against live product state. It never fails
// on cart content: problems are reported as issues so the caller can render them.
func (b *Builder) Build(ctx context.Context, userID uuid.UUID) (*Context, error) {
	record, err := b.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	out := &Context{UserID: userID, Currency: b.currency, Lines: []Line{}, Issues: []Issue{}}
	if len(record.Items) == 0 {
		out.Issues = append(out.Issues, Issue{
			Level:   enums.IssueLevelError,
			Code:    enums.IssueEmptyCart,
			Message: "Your cart is empty.",
		})
		out.Totals = ComputeTotals(0, 0, b.rules)
		return out, nil
	}

	products, err := b.lookup(ctx, record.Items)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for _, item := range record.Items {
		itemID := item.ID
		if item.Quantity <= 0 {
			out.Issues = append(out.Issues, Issue{
				Level:      enums.IssueLevelError,
				Code:       enums.IssueInvalidQuantity,
				Message:    "Item quantity must be at least 1.",
				CartItemID: &itemID,
			})
			continue
		}
		product, ok := products[item.ProductID]
		if !ok {
			out.Issues = append(out.Issues, Issue{
				Level:      enums.IssueLevelError,
				Code:       enums.IssueMissingProduct,
				Message:    "One of your items is no longer available.",
				CartItemID: &itemID,
			})
			continue
		}
		productID := product.ID
		if product.IsBlocked {
			out.Issues = append(out.Issues, Issue{
				Level:     enums.IssueLevelError,
				Code:      enums.IssueProductBlocked,
				Message:   fmt.Sprintf("%s is currently unavailable.", product.Name),
				ProductID: &productID,
			})
			continue
		}
		if product.Stock < item.Quantity {
			available, requested := product.Stock, item.Quantity
			out.Issues = append(out.Issues, Issue{
				Level:     enums.IssueLevelError,
				Code:      enums.IssueOutOfStock,
				Message:   fmt.Sprintf("%s has only %d left in stock.", product.Name, product.Stock),
				ProductID: &productID,
				Available: &available,
				Requested: &requested,
			})
			continue
		}

		price := product.EffectivePriceMinor()
		if item.PriceAtAddMinor != price {
			oldPrice, newPrice := item.PriceAtAddMinor, price
			out.Issues = append(out.Issues, Issue{
				Level:         enums.IssueLevelWarn,
				Code:          enums.IssuePriceChanged,
				Message:       fmt.Sprintf("Price updated for %s.", product.Name),
				ProductID:     &productID,
				OldPriceMinor: &oldPrice,
				NewPriceMinor: &newPrice,
			})
		}

		color := item.Color
		if color == "" {
			color = product.Color
		}
		line := Line{
			CartItemID:     item.ID,
			ProductID:      product.ID,
			Name:           product.Name,
			Image:          product.Image,
			Color:          color,
			UnitPriceMinor: price,
			Quantity:       item.Quantity,
			LineTotalMinor: price * int64(item.Quantity),
		}
		subtotal += line.LineTotalMinor
		out.Lines = append(out.Lines, line)
	}

	out.Totals = ComputeTotals(subtotal, 0, b.rules)
	return out, nil
}

// lookup resolves the distinct products of a cart. Large carts are split into
// chunks queried concurrently.
func (b *Builder) lookup(ctx context.Context, items []models.CartItem) (map[uuid.UUID]models.Product, error) {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	found := make(map[uuid.UUID]models.Product, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for start := 0; start < len(ids); start += lookupChunkSize {
		end := start + lookupChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		g.Go(func() error {
			rows, err := b.products.FindByIDs(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, p := range rows {
				found[p.ID] = p
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	return found, nil
}
