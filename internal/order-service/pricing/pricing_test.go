package pricing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeCatalog struct {
	items map[string]*domain.CatalogItem
	err   error
	calls int
}

func (f *fakeCatalog) GetItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	it, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return it, nil
}

func (f *fakeCatalog) DecreaseStock(context.Context, string, int) (int, error) {
	return 0, errors.New("not used")
}

func TestTax(t *testing.T) {
	cases := []struct {
		subtotal string
		want     string
	}{
		{"10.00", "1.20"},
		{"60.00", "7.20"},
		{"0.00", "0.00"},
		{"0.04", "0.00"},
		{"0.05", "0.01"},
		{"10.04", "1.20"},
		{"10.05", "1.21"},
		{"10.375", "1.25"},
	}
	for _, tc := range cases {
		t.Run(tc.subtotal, func(t *testing.T) {
			got := Tax(d(tc.subtotal), DefaultTaxRate)
			assert.True(t, d(tc.want).Equal(got), "tax(%s) = %s, want %s", tc.subtotal, got, tc.want)
		})
	}
}

func TestComputeLine_RoundsSubtotalBeforeTax(t *testing.T) {
	// 3.3325 * 3 = 9.9975 -> subtotal 10.00 -> tax 1.20
	p := ComputeLine(d("3.3325"), 3, DefaultTaxRate)
	assert.Equal(t, "10.00", p.Subtotal.StringFixed(2))
	assert.Equal(t, "1.20", p.Tax.StringFixed(2))
	assert.True(t, d("3.3325").Equal(p.UnitPrice), "unit price is kept unrounded")
}

func TestComputeLine_HalfUpOnRoundedSubtotal(t *testing.T) {
	// 9.995 rounds to 10.00 before the rate is applied.
	p := ComputeLine(d("9.995"), 1, DefaultTaxRate)
	assert.Equal(t, "10.00", p.Subtotal.StringFixed(2))
	assert.Equal(t, "1.20", p.Tax.StringFixed(2))
}

func TestComputeLine_TwoUnitsAtThirty(t *testing.T) {
	p := ComputeLine(d("30.00"), 2, DefaultTaxRate)
	assert.Equal(t, "60.00", p.Subtotal.StringFixed(2))
	assert.Equal(t, "7.20", p.Tax.StringFixed(2))
	assert.Equal(t, "67.20", p.Total().StringFixed(2))
}

func TestResolver_PriceLine(t *testing.T) {
	cat := &fakeCatalog{items: map[string]*domain.CatalogItem{
		"I": {ID: "I", Name: "Hollow Knight", Price: d("30.00"), Stock: 5, Active: true},
	}}
	r := NewResolver(cat, DefaultTaxRate)

	p, item, err := r.PriceLine(context.Background(), "I", 2)
	require.NoError(t, err)
	assert.Equal(t, "Hollow Knight", item.Name)
	assert.Equal(t, "67.20", p.Total().StringFixed(2))
	assert.Equal(t, 1, cat.calls)
}

func TestResolver_PriceLine_Errors(t *testing.T) {
	t.Run("item not found", func(t *testing.T) {
		r := NewResolver(&fakeCatalog{items: map[string]*domain.CatalogItem{}}, DefaultTaxRate)
		_, _, err := r.PriceLine(context.Background(), "missing", 1)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("upstream unavailable", func(t *testing.T) {
		r := NewResolver(&fakeCatalog{err: domain.ErrUpstreamUnavailable}, DefaultTaxRate)
		_, _, err := r.PriceLine(context.Background(), "I", 1)
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	})

	t.Run("zero quantity never reaches the catalog", func(t *testing.T) {
		cat := &fakeCatalog{}
		r := NewResolver(cat, DefaultTaxRate)
		_, _, err := r.PriceLine(context.Background(), "I", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		assert.Zero(t, cat.calls)
	})
}

func TestComputeLine_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 10_000_000).Draw(t, "cents")
		qty := rapid.IntRange(1, 500).Draw(t, "qty")
		unit := decimal.New(cents, -2)

		p := ComputeLine(unit, qty, DefaultTaxRate)

		if !p.Subtotal.Equal(unit.Mul(decimal.NewFromInt(int64(qty)))) {
			t.Fatalf("subtotal %s != %s * %d", p.Subtotal, unit, qty)
		}
		if !p.Tax.Equal(p.Subtotal.Mul(DefaultTaxRate).Round(2)) {
			t.Fatalf("tax %s not rounded from subtotal %s", p.Tax, p.Subtotal)
		}
		if p.Tax.Exponent() < -2 {
			t.Fatalf("tax %s has more than two places", p.Tax)
		}
		// rounding moves tax by at most half a cent
		diff := p.Tax.Sub(p.Subtotal.Mul(DefaultTaxRate)).Abs()
		if diff.GreaterThan(d("0.005")) {
			t.Fatalf("tax %s too far from exact %s", p.Tax, p.Subtotal.Mul(DefaultTaxRate))
		}
		if !p.Total().Equal(p.Subtotal.Add(p.Tax)) {
			t.Fatalf("total mismatch")
		}
	})
}
