package httpx

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

type CreateOrderRequest struct {
	UserID          string           `json:"userId"`
	PaymentMethod   string           `json:"paymentMethod"`
	ShippingAddress string           `json:"shippingAddress"`
	Lines           []LineRequestDTO `json:"lines"`
}

type LineRequestDTO struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type OrderResponse struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	Status          string         `json:"status"`
	PaymentMethod   string         `json:"paymentMethod"`
	ShippingAddress string         `json:"shippingAddress"`
	Total           json.Number    `json:"total"`
	CreatedAt       string         `json:"createdAt"`
	Lines           []LineResponse `json:"lines"`
}

type LineResponse struct {
	ID        string      `json:"id"`
	ItemID    string      `json:"itemId"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unitPrice"`
	Subtotal  json.Number `json:"subtotal"`
	Tax       json.Number `json:"tax"`
	LineTotal json.Number `json:"lineTotal"`
	LicenseID *string     `json:"licenseId"`
}

type SummaryResponse struct {
	ID              string                `json:"id"`
	Status          string                `json:"status"`
	Total           json.Number           `json:"total"`
	CreatedAt       string                `json:"createdAt"`
	PaymentMethod   string                `json:"paymentMethod"`
	ShippingAddress string                `json:"shippingAddress"`
	User            *UserSummary          `json:"user"`
	Lines           []LineSummaryResponse `json:"lines"`
}

type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

type LineSummaryResponse struct {
	ID               string       `json:"id"`
	ItemID           string       `json:"itemId"`
	ItemName         *string      `json:"itemName"`
	ItemStatus       *string      `json:"itemStatus"`
	Quantity         int          `json:"quantity"`
	UnitPrice        json.Number  `json:"unitPrice"`
	Subtotal         json.Number  `json:"subtotal"`
	Tax              json.Number  `json:"tax"`
	LineTotal        json.Number  `json:"lineTotal"`
	AverageRating    *json.Number `json:"averageRating"`
	RatingCount      *int         `json:"ratingCount"`
	LicenseID        *string      `json:"licenseId"`
	LicenseKey       *string      `json:"licenseKey"`
	LicenseExpiresAt *string      `json:"licenseExpiresAt"`
	LicenseState     *string      `json:"licenseState"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (r CreateOrderRequest) toDomain() domain.CreateOrder {
	lines := make([]domain.LineRequest, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, l.toDomain())
	}
	return domain.CreateOrder{
		UserID:          r.UserID,
		PaymentMethod:   r.PaymentMethod,
		ShippingAddress: r.ShippingAddress,
		Lines:           lines,
	}
}

func (l LineRequestDTO) toDomain() domain.LineRequest {
	return domain.LineRequest{ItemID: l.ItemID, Quantity: l.Quantity}
}

// money renders an amount with exactly two decimals as a JSON number.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// price keeps catalog precision but never fewer than two decimals.
func price(d decimal.Decimal) json.Number {
	if d.Exponent() >= -2 {
		return money(d)
	}
	return json.Number(d.String())
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		Total:           money(o.Total),
		CreatedAt:       timestamp(o.CreatedAt),
		Lines:           mapLines(o.Lines),
	}
}

func mapLines(lines []domain.OrderLine) []LineResponse {
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = LineResponse{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: price(l.UnitPrice),
			Subtotal:  money(l.Subtotal),
			Tax:       money(l.Tax),
			LineTotal: money(l.Total()),
			LicenseID: optional(l.LicenseID),
		}
	}
	return out
}

func mapSummaryToResponse(s *domain.Summary) SummaryResponse {
	resp := SummaryResponse{
		ID:              s.ID,
		Status:          string(s.Status),
		Total:           money(s.Total),
		CreatedAt:       timestamp(s.CreatedAt),
		PaymentMethod:   s.PaymentMethod,
		ShippingAddress: s.ShippingAddress,
		Lines:           make([]LineSummaryResponse, len(s.Lines)),
	}
	if s.User != nil {
		resp.User = &UserSummary{
			ID:     s.User.ID,
			Name:   s.User.Name,
			Email:  s.User.Email,
			Phone:  s.User.Phone,
			Role:   s.User.Role,
			Status: s.User.Status,
		}
	}

	for i, l := range s.Lines {
		lr := LineSummaryResponse{
			ID:           l.ID,
			ItemID:       l.ItemID,
			ItemName:     l.ItemName,
			ItemStatus:   l.ItemStatus,
			Quantity:     l.Quantity,
			UnitPrice:    price(l.UnitPrice),
			Subtotal:     money(l.Subtotal),
			Tax:          money(l.Tax),
			LineTotal:    money(l.LineTotal),
			RatingCount:  l.RatingCount,
			LicenseID:    l.LicenseID,
			LicenseKey:   l.LicenseKey,
			LicenseState: l.LicenseState,
		}
		if l.AverageRating != nil {
			avg := money(*l.AverageRating)
			lr.AverageRating = &avg
		}
		if l.LicenseExpiresAt != nil {
			exp := l.LicenseExpiresAt.Format("2006-01-02")
			lr.LicenseExpiresAt = &exp
		}
		resp.Lines[i] = lr
	}
	return resp
}
