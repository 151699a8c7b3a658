package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

type scriptedCatalog struct {
	errs  []error
	stock int
	calls int
}

func (s *scriptedCatalog) GetItem(context.Context, string) (*domain.CatalogItem, error) {
	return nil, nil
}

func (s *scriptedCatalog) DecreaseStock(_ context.Context, _ string, qty int) (int, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	s.stock -= qty
	return s.stock, nil
}

func TestDecrease(t *testing.T) {
	unavailable := fmt.Errorf("%w: catalog", domain.ErrUpstreamUnavailable)

	tests := []struct {
		name      string
		errs      []error
		wantStock int
		wantErr   error
		wantCalls int
	}{
		{name: "success", wantStock: 8, wantCalls: 1},
		{name: "retried once after transport failure", errs: []error{unavailable}, wantStock: 8, wantCalls: 2},
		{name: "second transport failure surfaces", errs: []error{unavailable, unavailable}, wantErr: domain.ErrUpstreamUnavailable, wantCalls: 2},
		{name: "insufficient stock is not retried", errs: []error{domain.ErrInsufficientStock}, wantErr: domain.ErrInsufficientStock, wantCalls: 1},
		{name: "unknown item is not retried", errs: []error{domain.ErrItemNotFound}, wantErr: domain.ErrItemNotFound, wantCalls: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cat := &scriptedCatalog{errs: tc.errs, stock: 10}
			stock, err := NewAdjuster(cat).Decrease(context.Background(), "I", 2)

			assert.Equal(t, tc.wantCalls, cat.calls)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStock, stock)
		})
	}
}

func TestDecrease_RejectsNonPositiveQuantity(t *testing.T) {
	cat := &scriptedCatalog{stock: 10}
	for _, q := range []int{0, -3} {
		_, err := NewAdjuster(cat).Decrease(context.Background(), "I", q)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	}
	assert.Zero(t, cat.calls)
}

func TestDecrease_NoRetryAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := &scriptedCatalog{errs: []error{domain.ErrUpstreamUnavailable}, stock: 10}
	_, err := NewAdjuster(cat).Decrease(ctx, "I", 1)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 1, cat.calls)
}
