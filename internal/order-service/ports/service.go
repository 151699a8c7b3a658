package ports

import (
	"context"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

// OrderService is the use-case surface the HTTP layer drives.
type OrderService interface {
	CreateOrder(ctx context.Context, idempotencyKey string, req domain.CreateOrder) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	Confirm(ctx context.Context, orderID string) (*domain.Order, error)
	Summary(ctx context.Context, orderID string) (*domain.Summary, error)

	ListLines(ctx context.Context, orderID string) ([]domain.OrderLine, error)
	AddLine(ctx context.Context, orderID string, req domain.LineRequest) (*domain.Order, error)
	UpdateLine(ctx context.Context, orderID, lineID string, req domain.LineRequest) (*domain.Order, error)
	RemoveLine(ctx context.Context, orderID, lineID string) (*domain.Order, error)
}
