package ports

import (
	"context"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

// CatalogClient reads items and decrements stock on the catalog service.
type CatalogClient interface {
	GetItem(ctx context.Context, itemID string) (*domain.CatalogItem, error)
	DecreaseStock(ctx context.Context, itemID string, quantity int) (int, error)
}

type IdentityClient interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

type LicensingClient interface {
	// FreeLicenses lists unbound keys for an item, earliest expiration first.
	FreeLicenses(ctx context.Context, itemID string, limit int) ([]domain.License, error)
	Assign(ctx context.Context, licenseID, orderLineID string) (*domain.License, error)
	GetLicense(ctx context.Context, licenseID string) (*domain.License, error)
}

type LibraryClient interface {
	AddEntry(ctx context.Context, entry domain.LibraryEntry) (*domain.LibraryEntry, error)
}

type ReviewsClient interface {
	GetRating(ctx context.Context, itemID string) (*domain.Rating, error)
}
