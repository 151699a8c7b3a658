package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

var _ ports.LibraryClient = (*LibraryClient)(nil)

type LibraryClient struct {
	baseClient
}

func NewLibraryClient(loc *locator.Locator) *LibraryClient {
	return &LibraryClient{baseClient{loc: loc, service: ServiceLibrary}}
}

type EntryMetadataDTO struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type EntryDTO struct {
	ID       string           `json:"id,omitempty"`
	UserID   string           `json:"userId"`
	ItemID   string           `json:"itemId"`
	Metadata EntryMetadataDTO `json:"metadata"`
}

// AddEntry creates a library entry. A 409 from the library maps to
// domain.ErrAlreadyOwned.
func (c *LibraryClient) AddEntry(ctx context.Context, entry domain.LibraryEntry) (*domain.LibraryEntry, error) {
	in := EntryDTO{
		UserID: entry.UserID,
		ItemID: entry.ItemID,
		Metadata: EntryMetadataDTO{
			Name:  entry.Metadata.Name,
			Price: entry.Metadata.Price,
		},
	}

	var out EntryDTO
	err := c.call(ctx, http.MethodPost, "/entries", in, &out)
	if statusIs(err, http.StatusConflict) {
		return nil, fmt.Errorf("%w: user %s item %s", domain.ErrAlreadyOwned, entry.UserID, entry.ItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("library add entry: %w", err)
	}
	return &domain.LibraryEntry{
		ID:     out.ID,
		UserID: out.UserID,
		ItemID: out.ItemID,
		Metadata: domain.EntryMetadata{
			Name:  out.Metadata.Name,
			Price: out.Metadata.Price,
		},
	}, nil
}
