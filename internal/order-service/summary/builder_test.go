package summary

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errDown = fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)

type oneOrder struct {
	ports.OrderRepository
	order *domain.Order
}

func (o oneOrder) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	if o.order == nil || o.order.ID != id {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o.order, nil
}

type identity struct{ err error }

func (f identity) GetUser(_ context.Context, id string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: id, Name: "Ada", Email: "ada@example.com"}, nil
}

type catalog struct{ err error }

func (f catalog) GetItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CatalogItem{ID: id, Name: "Item " + id, Status: "AVAILABLE", Price: decimal.NewFromInt(30)}, nil
}

func (f catalog) DecreaseStock(context.Context, string, int) (int, error) {
	return 0, errors.New("not used")
}

type reviews struct {
	err    error
	rating domain.Rating
}

func (f reviews) GetRating(context.Context, string) (*domain.Rating, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.rating
	return &r, nil
}

type licenses struct {
	err   error
	block bool
}

func (f licenses) FreeLicenses(context.Context, string, int) ([]domain.License, error) {
	return nil, errors.New("not used")
}

func (f licenses) Assign(context.Context, string, string) (*domain.License, error) {
	return nil, errors.New("not used")
}

func (f licenses) GetLicense(ctx context.Context, id string) (*domain.License, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.License{
		ID:        id,
		Key:       "KEY-" + id,
		ExpiresAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		State:     domain.LicenseBound,
	}, nil
}

func sampleOrder() *domain.Order {
	line := func(id, item, license string) domain.OrderLine {
		return domain.OrderLine{
			ID:        id,
			OrderID:   "o-1",
			ItemID:    item,
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("30.00"),
			Subtotal:  decimal.RequireFromString("60.00"),
			Tax:       decimal.RequireFromString("7.20"),
			LicenseID: license,
		}
	}
	return &domain.Order{
		ID:            "o-1",
		UserID:        "U",
		Status:        domain.StatusPlaced,
		PaymentMethod: "CARD",
		Total:         decimal.RequireFromString("134.40"),
		Lines:         []domain.OrderLine{line("l-1", "I", "lic-1"), line("l-2", "J", "")},
	}
}

func TestBuild_AllCollaboratorsHealthy(t *testing.T) {
	b := NewBuilder(oneOrder{order: sampleOrder()}, identity{}, catalog{},
		reviews{rating: domain.Rating{Average: decimal.RequireFromString("4.50"), Count: 12}}, licenses{}, 2)

	s, err := b.Build(context.Background(), "o-1")
	require.NoError(t, err)

	require.NotNil(t, s.User)
	assert.Equal(t, "Ada", s.User.Name)
	assert.Equal(t, "134.40", s.Total.StringFixed(2))
	require.Len(t, s.Lines, 2)

	first := s.Lines[0]
	assert.Equal(t, "67.20", first.LineTotal.StringFixed(2))
	require.NotNil(t, first.ItemName)
	assert.Equal(t, "Item I", *first.ItemName)
	assert.Equal(t, "AVAILABLE", *first.ItemStatus)
	require.NotNil(t, first.AverageRating)
	assert.Equal(t, "4.50", first.AverageRating.StringFixed(2))
	assert.Equal(t, 12, *first.RatingCount)
	require.NotNil(t, first.LicenseKey)
	assert.Equal(t, "KEY-lic-1", *first.LicenseKey)
	assert.Equal(t, "bound", *first.LicenseState)

	second := s.Lines[1]
	assert.Nil(t, second.LicenseID)
	assert.Nil(t, second.LicenseKey)
	assert.Equal(t, "Item J", *second.ItemName)
}

func TestBuild_ReviewsDownYieldsNullRating(t *testing.T) {
	b := NewBuilder(oneOrder{order: sampleOrder()}, identity{}, catalog{}, reviews{err: errDown}, licenses{}, 0)

	s, err := b.Build(context.Background(), "o-1")
	require.NoError(t, err)

	for _, l := range s.Lines {
		assert.Nil(t, l.AverageRating)
		assert.Nil(t, l.RatingCount)
		assert.NotNil(t, l.ItemName)
	}
	assert.NotNil(t, s.User)
}

func TestBuild_EveryCollaboratorDown(t *testing.T) {
	b := NewBuilder(oneOrder{order: sampleOrder()},
		identity{err: domain.ErrUserNotFound}, catalog{err: errDown}, reviews{err: errDown}, licenses{err: errDown}, 4)

	s, err := b.Build(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Nil(t, s.User)
	first := s.Lines[0]
	assert.Nil(t, first.ItemName)
	assert.Nil(t, first.ItemStatus)
	assert.Nil(t, first.AverageRating)
	assert.Nil(t, first.LicenseKey)
	assert.Nil(t, first.LicenseExpiresAt)
	require.NotNil(t, first.LicenseID, "the stored license id does not depend on the licensing service")
	assert.Equal(t, "lic-1", *first.LicenseID)
	assert.Equal(t, "60.00", first.Subtotal.StringFixed(2))
}

func TestBuild_MalformedRatingIsDropped(t *testing.T) {
	b := NewBuilder(oneOrder{order: sampleOrder()}, identity{}, catalog{},
		reviews{rating: domain.Rating{Average: decimal.NewFromInt(-1), Count: -4}}, licenses{}, 1)

	s, err := b.Build(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Nil(t, s.Lines[0].AverageRating)
}

func TestBuild_SlowLookupHonoursDeadline(t *testing.T) {
	b := NewBuilder(oneOrder{order: sampleOrder()}, identity{}, catalog{}, reviews{}, licenses{block: true}, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s, err := b.Build(ctx, "o-1")
	require.NoError(t, err)
	assert.Nil(t, s.Lines[0].LicenseKey)
	assert.NotNil(t, s.Lines[0].ItemName)
}

func TestBuild_UnknownOrder(t *testing.T) {
	b := NewBuilder(oneOrder{order: sampleOrder()}, identity{}, catalog{}, reviews{}, licenses{}, 1)
	_, err := b.Build(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
