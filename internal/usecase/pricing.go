package usecase

import (
	"fmt"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/shopspring/decimal"
)

// PricingConfig holds the storefront's pricing policy. All rates and fees are
// decimals so totals stay exact at 2dp.
type PricingConfig struct {
	TaxRate               decimal.Decimal
	ShippingFlatFee       decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Currency              string
}

type Quote struct {
	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

// ComputePrices derives the order totals from catalog-resolved items.
// Rounding is half-up at 2 decimal places at every step. Deterministic, no
// side effects.
func ComputePrices(cfg PricingConfig, items []domain.OrderItem) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, fmt.Errorf("%w: no items", ErrInvalidInput)
	}

	itemsPrice := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w: quantity %d for product %s", ErrInvalidInput, it.Quantity, it.ProductRef)
		}
		if it.UnitPrice.IsNegative() {
			return Quote{}, fmt.Errorf("%w: negative price for product %s", ErrInvalidInput, it.ProductRef)
		}
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		itemsPrice = itemsPrice.Add(line)
	}
	// Round half up at 2dp; amounts are non-negative so Round's half-away
	// behavior is exactly half-up here.
	itemsPrice = itemsPrice.Round(2)

	shipping := cfg.ShippingFlatFee
	if itemsPrice.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	shipping = shipping.Round(2)

	tax := itemsPrice.Mul(cfg.TaxRate).Round(2)
	total := itemsPrice.Add(tax).Add(shipping).Round(2)

	return Quote{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    total,
	}, nil
}
