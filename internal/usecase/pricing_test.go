package usecase_test

import (
	"testing"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testPricing() usecase.PricingConfig {
	return usecase.PricingConfig{
		TaxRate:               dec("0.10"),
		ShippingFlatFee:       dec("5.00"),
		FreeShippingThreshold: dec("100.00"),
		Currency:              "usd",
	}
}

func item(ref string, qty int, price string) domain.OrderItem {
	return domain.OrderItem{ProductRef: ref, Name: ref, Quantity: qty, UnitPrice: dec(price)}
}

func TestComputePrices(t *testing.T) {
	type want struct {
		items, tax, shipping, total string
	}
	tests := []struct {
		name  string
		items []domain.OrderItem
		want  want
	}{
		{
			name:      "two units below free shipping threshold",
			items:     []domain.OrderItem{item("P1", 2, "25.00")},
			want:      want{items: "50.00", tax: "5.00", shipping: "5.00", total: "60.00"},
		},
		{
			name:      "at threshold shipping is free",
			items:     []domain.OrderItem{item("P1", 4, "25.00")},
			want:      want{items: "100.00", tax: "10.00", shipping: "0.00", total: "110.00"},
		},
		{
			name:      "just under threshold still pays shipping",
			items:     []domain.OrderItem{item("P1", 1, "99.99")},
			want:      want{items: "99.99", tax: "10.00", shipping: "5.00", total: "114.99"},
		},
		{
			name:      "line totals round half up",
			items:     []domain.OrderItem{item("P1", 1, "0.335"), item("P2", 1, "10.00")},
			want:      want{items: "10.34", tax: "1.03", shipping: "5.00", total: "16.37"},
		},
		{
			name:      "multiple lines sum before rounding",
			items:     []domain.OrderItem{item("P1", 3, "19.99"), item("P2", 1, "0.01")},
			want:      want{items: "59.98", tax: "6.00", shipping: "5.00", total: "70.98"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := usecase.ComputePrices(testPricing(), tt.items)
			require.NoError(t, err)
			assert.Equal(t, tt.want.items, q.ItemsPrice.StringFixed(2))
			assert.Equal(t, tt.want.tax, q.TaxPrice.StringFixed(2))
			assert.Equal(t, tt.want.shipping, q.ShippingPrice.StringFixed(2))
			assert.Equal(t, tt.want.total, q.TotalPrice.StringFixed(2))
			assert.True(t, q.TotalPrice.Equal(q.ItemsPrice.Add(q.TaxPrice).Add(q.ShippingPrice)))
		})
	}
}

func TestComputePricesInvalidInput(t *testing.T) {
	cfg := testPricing()

	_, err := usecase.ComputePrices(cfg, nil)
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	_, err = usecase.ComputePrices(cfg, []domain.OrderItem{item("P1", 0, "10.00")})
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	_, err = usecase.ComputePrices(cfg, []domain.OrderItem{item("P1", -1, "10.00")})
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	_, err = usecase.ComputePrices(cfg, []domain.OrderItem{item("P1", 1, "-0.01")})
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}

func TestComputePricesDeterministic(t *testing.T) {
	items := []domain.OrderItem{item("P1", 2, "25.00"), item("P2", 1, "3.33")}
	a, err := usecase.ComputePrices(testPricing(), items)
	require.NoError(t, err)
	b, err := usecase.ComputePrices(testPricing(), items)
	require.NoError(t, err)
	assert.True(t, a.TotalPrice.Equal(b.TotalPrice))
}
