// Package entitlement records item ownership in the buyer's library.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

type Registrar struct {
	library ports.LibraryClient
}

func NewRegistrar(library ports.LibraryClient) *Registrar {
	return &Registrar{library: library}
}

// Grant adds itemID to userID's library. An existing entry for the pair is
// reported through alreadyOwned with a nil error.
func (r *Registrar) Grant(ctx context.Context, userID, itemID string, meta domain.EntryMetadata) (entry *domain.LibraryEntry, alreadyOwned bool, err error) {
	entry, err = r.library.AddEntry(ctx, domain.LibraryEntry{
		UserID:   userID,
		ItemID:   itemID,
		Metadata: meta,
	})
	if errors.Is(err, domain.ErrAlreadyOwned) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("grant %s to user %s: %w", itemID, userID, err)
	}
	return entry, false, nil
}
