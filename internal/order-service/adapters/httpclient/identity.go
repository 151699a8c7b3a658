package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

var _ ports.IdentityClient = (*IdentityClient)(nil)

type IdentityClient struct {
	baseClient
}

func NewIdentityClient(loc *locator.Locator) *IdentityClient {
	return &IdentityClient{baseClient{loc: loc, service: ServiceIdentity}}
}

type UserDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *IdentityClient) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var dto UserDTO
	err := c.call(ctx, http.MethodGet, "/user/"+url.PathEscape(userID), nil, &dto)
	if statusIs(err, http.StatusNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("identity get user %s: %w", userID, err)
	}
	return &domain.User{
		ID:        dto.ID,
		Name:      dto.Name,
		Email:     dto.Email,
		Phone:     dto.Phone,
		Role:      dto.Role,
		Status:    dto.Status,
		CreatedAt: dto.CreatedAt,
	}, nil
}
