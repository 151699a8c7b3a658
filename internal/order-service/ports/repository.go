package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

// OrderRepository is the durable order aggregate store. Every mutating call
// that touches lines recomputes the header total in the same transaction.
type OrderRepository interface {
	// CreateOrder writes the header (DRAFT, total 0) and its lines, recomputes
	// the total and marks the order PLACED, atomically.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	GetLine(ctx context.Context, orderID, lineID string) (*domain.OrderLine, error)
	AddLine(ctx context.Context, line *domain.OrderLine) error
	UpdateLine(ctx context.Context, line *domain.OrderLine) error
	RemoveLine(ctx context.Context, orderID, lineID string) error
	SetLineLicense(ctx context.Context, lineID, licenseID string) error

	RecomputeTotal(ctx context.Context, orderID string) (decimal.Decimal, error)
}
