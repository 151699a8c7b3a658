// Package inventory decrements catalog stock for purchased lines.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

// Adjuster asks the catalog to take stock off an item. The catalog enforces
// non-negative stock; this package never checks it locally.
type Adjuster struct {
	catalog ports.CatalogClient
}

func NewAdjuster(catalog ports.CatalogClient) *Adjuster {
	return &Adjuster{catalog: catalog}
}

// Decrease removes quantity units of itemID and returns the new stock level.
// A transport failure is retried once; a refusal from the catalog is not.
func (a *Adjuster) Decrease(ctx context.Context, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.Invalidf("decrease quantity must be positive, got %d", quantity)
	}

	stock, err := a.catalog.DecreaseStock(ctx, itemID, quantity)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, domain.ErrUpstreamUnavailable) || ctx.Err() != nil {
		return 0, err
	}

	slog.WarnContext(ctx, "retrying stock decrease after transport failure",
		"item_id", itemID,
		"quantity", quantity,
		"error", err,
	)
	stock, err = a.catalog.DecreaseStock(ctx, itemID, quantity)
	if err != nil {
		return 0, fmt.Errorf("decrease stock %s after retry: %w", itemID, err)
	}
	return stock, nil
}
