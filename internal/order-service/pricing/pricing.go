// Package pricing turns a catalog item and a quantity into an immutable
// priced line: unit price, subtotal and tax.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

// MoneyPlaces is the number of decimal places kept on subtotals and taxes.
const MoneyPlaces = 2

// DefaultTaxRate is the flat sales tax applied to every line.
var DefaultTaxRate = decimal.RequireFromString("0.12")

// LinePrice is a point-in-time quote for one order line.
type LinePrice struct {
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
}

// Total returns subtotal + tax.
func (p LinePrice) Total() decimal.Decimal {
	return p.Subtotal.Add(p.Tax)
}

// ComputeLine prices quantity units at unitPrice. Both subtotal and tax are
// rounded half-up to two places; tax is taken on the rounded subtotal.
func ComputeLine(unitPrice decimal.Decimal, quantity int, rate decimal.Decimal) LinePrice {
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(MoneyPlaces)
	return LinePrice{
		UnitPrice: unitPrice,
		Subtotal:  subtotal,
		Tax:       Tax(subtotal, rate),
	}
}

// Tax returns round(subtotal * rate, 2) with HALF_UP semantics.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	// decimal.Round rounds half away from zero, which is HALF_UP for the
	// non-negative amounts handled here.
	return subtotal.Mul(rate).Round(MoneyPlaces)
}

// Resolver reads the current catalog price and quotes a line. It performs no
// writes.
type Resolver struct {
	catalog ports.CatalogClient
	rate    decimal.Decimal
}

func NewResolver(catalog ports.CatalogClient, rate decimal.Decimal) *Resolver {
	return &Resolver{catalog: catalog, rate: rate}
}

func (r *Resolver) Rate() decimal.Decimal {
	return r.rate
}

// PriceLine fetches itemID from the catalog and quotes quantity units.
// It returns the catalog item too so callers can reuse its display fields.
func (r *Resolver) PriceLine(ctx context.Context, itemID string, quantity int) (LinePrice, *domain.CatalogItem, error) {
	if quantity < 1 {
		return LinePrice{}, nil, domain.Invalidf("quantity must be at least 1")
	}

	item, err := r.catalog.GetItem(ctx, itemID)
	if err != nil {
		return LinePrice{}, nil, fmt.Errorf("price line %s: %w", itemID, err)
	}
	if item.Price.IsNegative() {
		return LinePrice{}, nil, fmt.Errorf("price line %s: catalog returned negative price %s", itemID, item.Price)
	}

	return ComputeLine(item.Price, quantity, r.rate), item, nil
}
