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

var _ ports.CatalogClient = (*CatalogClient)(nil)

type CatalogClient struct {
	baseClient
}

func NewCatalogClient(loc *locator.Locator) *CatalogClient {
	return &CatalogClient{baseClient{loc: loc, service: ServiceCatalog}}
}

// ItemDTO is the catalog's item representation.
type ItemDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Status string          `json:"status"`
	Active bool            `json:"active"`
}

type DecreaseStockDTO struct {
	Quantity int `json:"quantity"`
}

type StockDTO struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

func (c *CatalogClient) GetItem(ctx context.Context, itemID string) (*domain.CatalogItem, error) {
	var dto ItemDTO
	err := c.call(ctx, http.MethodGet, "/item/"+url.PathEscape(itemID), nil, &dto)
	if statusIs(err, http.StatusNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog get item %s: %w", itemID, err)
	}
	return &domain.CatalogItem{
		ID:     dto.ID,
		Name:   dto.Name,
		Price:  dto.Price,
		Stock:  dto.Stock,
		Status: dto.Status,
		Active: dto.Active,
	}, nil
}

// DecreaseStock asks the catalog to take quantity units off the item. The
// catalog is the only authority on stock; a 409 means it refused.
func (c *CatalogClient) DecreaseStock(ctx context.Context, itemID string, quantity int) (int, error) {
	var dto StockDTO
	err := c.call(ctx, http.MethodPost, "/item/"+url.PathEscape(itemID)+"/decrease-stock", DecreaseStockDTO{Quantity: quantity}, &dto)
	switch {
	case statusIs(err, http.StatusNotFound):
		return 0, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	case statusIs(err, http.StatusConflict), statusIs(err, http.StatusUnprocessableEntity):
		return 0, fmt.Errorf("%w: item %s, requested %d", domain.ErrInsufficientStock, itemID, quantity)
	case err != nil:
		return 0, fmt.Errorf("catalog decrease stock %s: %w", itemID, err)
	}
	return dto.Stock, nil
}
