// Package licensing binds free license keys to purchased order lines.
package licensing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

// Binder issues the earliest-expiring free key first.
type Binder struct {
	client ports.LicensingClient
}

func NewBinder(client ports.LicensingClient) *Binder {
	return &Binder{client: client}
}

// AssignFreeLicense binds the oldest-expiring free key of itemID to
// orderLineID. found is false when the item has no free keys left.
func (b *Binder) AssignFreeLicense(ctx context.Context, itemID, orderLineID string) (license *domain.License, found bool, err error) {
	free, err := b.client.FreeLicenses(ctx, itemID, 1)
	if err != nil {
		return nil, false, fmt.Errorf("find free license for %s: %w", itemID, err)
	}

	candidates := make([]domain.License, 0, len(free))
	for _, l := range free {
		if l.State == "" || l.State == domain.LicenseFree {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		slog.InfoContext(ctx, "no free license for item", "item_id", itemID)
		return nil, false, nil
	}
	// The collaborator sorts already; a stale or unsorted answer must not
	// hand out a later key first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})
	pick := candidates[0]

	bound, err := b.client.Assign(ctx, pick.ID, orderLineID)
	if errors.Is(err, domain.ErrNoFreeLicense) {
		slog.InfoContext(ctx, "license taken before bind", "item_id", itemID, "license_id", pick.ID)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bind license %s to line %s: %w", pick.ID, orderLineID, err)
	}
	if bound == nil {
		bound = &pick
		bound.State = domain.LicenseBound
	}
	return bound, true, nil
}
