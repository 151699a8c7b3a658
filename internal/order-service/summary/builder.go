// Package summary assembles the display view of an order from the store and
// four collaborators. A failed lookup degrades its field to nil; only a
// missing order fails the build.
package summary

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

// DefaultConcurrency bounds in-flight collaborator reads per summary.
const DefaultConcurrency = 8

type Builder struct {
	orders      ports.OrderRepository
	identity    ports.IdentityClient
	catalog     ports.CatalogClient
	reviews     ports.ReviewsClient
	licensing   ports.LicensingClient
	concurrency int
}

func NewBuilder(
	orders ports.OrderRepository,
	identity ports.IdentityClient,
	catalog ports.CatalogClient,
	reviews ports.ReviewsClient,
	licensing ports.LicensingClient,
	concurrency int,
) *Builder {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Builder{
		orders:      orders,
		identity:    identity,
		catalog:     catalog,
		reviews:     reviews,
		licensing:   licensing,
		concurrency: concurrency,
	}
}

// Build returns the enriched summary of orderID.
func (b *Builder) Build(ctx context.Context, orderID string) (*domain.Summary, error) {
	order, err := b.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("summary of %s: %w", orderID, err)
	}

	s := &domain.Summary{
		ID:              order.ID,
		Status:          order.Status,
		Total:           order.Total,
		CreatedAt:       order.CreatedAt,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		Lines:           make([]domain.LineSummary, len(order.Lines)),
	}

	// Every lookup writes its own fields and swallows its own error, so the
	// group never cancels and Wait never fails.
	var g errgroup.Group
	g.SetLimit(b.concurrency)

	g.Go(func() error {
		user, err := b.identity.GetUser(ctx, order.UserID)
		if err != nil {
			degraded(ctx, "user", order.ID, order.UserID, err)
			return nil
		}
		s.User = user
		return nil
	})

	for i, line := range order.Lines {
		ls := &s.Lines[i]
		*ls = domain.LineSummary{
			ID:        line.ID,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			Tax:       line.Tax,
			LineTotal: line.Total(),
		}

		g.Go(func() error {
			b.fillItem(ctx, ls)
			return nil
		})
		g.Go(func() error {
			b.fillRating(ctx, ls)
			return nil
		})
		if line.LicenseID != "" {
			licenseID := line.LicenseID
			ls.LicenseID = &licenseID
			g.Go(func() error {
				b.fillLicense(ctx, ls, licenseID)
				return nil
			})
		}
	}

	_ = g.Wait()
	return s, nil
}

func (b *Builder) fillItem(ctx context.Context, ls *domain.LineSummary) {
	item, err := b.catalog.GetItem(ctx, ls.ItemID)
	if err != nil {
		degraded(ctx, "item", ls.ID, ls.ItemID, err)
		return
	}
	name := item.Name
	ls.ItemName = &name

	status := item.Status
	if status == "" {
		status = "inactive"
		if item.Active {
			status = "active"
		}
	}
	ls.ItemStatus = &status
}

func (b *Builder) fillRating(ctx context.Context, ls *domain.LineSummary) {
	rating, err := b.reviews.GetRating(ctx, ls.ItemID)
	if err != nil {
		degraded(ctx, "rating", ls.ID, ls.ItemID, err)
		return
	}
	if rating.Count < 0 || rating.Average.IsNegative() {
		degraded(ctx, "rating", ls.ID, ls.ItemID, fmt.Errorf("malformed rating %s/%d", rating.Average, rating.Count))
		return
	}
	avg, count := rating.Average, rating.Count
	ls.AverageRating = &avg
	ls.RatingCount = &count
}

func (b *Builder) fillLicense(ctx context.Context, ls *domain.LineSummary, licenseID string) {
	lic, err := b.licensing.GetLicense(ctx, licenseID)
	if err != nil {
		degraded(ctx, "license", ls.ID, licenseID, err)
		return
	}
	key, expires, state := lic.Key, lic.ExpiresAt, string(lic.State)
	ls.LicenseKey = &key
	ls.LicenseExpiresAt = &expires
	ls.LicenseState = &state
}

func degraded(ctx context.Context, field, ownerID, lookupID string, err error) {
	slog.WarnContext(ctx, "summary field degraded to null",
		"field", field,
		"owner_id", ownerID,
		"lookup_id", lookupID,
		"error", err,
	)
}
