package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

var _ ports.ReviewsClient = (*ReviewsClient)(nil)

type ReviewsClient struct {
	baseClient
}

func NewReviewsClient(loc *locator.Locator) *ReviewsClient {
	return &ReviewsClient{baseClient{loc: loc, service: ServiceReviews}}
}

type RatingDTO struct {
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// GetRating returns zero/zero for items nobody has reviewed.
func (c *ReviewsClient) GetRating(ctx context.Context, itemID string) (*domain.Rating, error) {
	var dto RatingDTO
	err := c.call(ctx, http.MethodGet, "/rating/"+url.PathEscape(itemID), nil, &dto)
	if statusIs(err, http.StatusNotFound) {
		return &domain.Rating{Average: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reviews get rating %s: %w", itemID, err)
	}
	return &domain.Rating{Average: dto.Average, Count: dto.Count}, nil
}
