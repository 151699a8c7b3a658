package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

// fakeOrders embeds the interface so tests only implement what they call.
type fakeOrders struct {
	ports.OrderService

	gotKey string
	gotReq domain.CreateOrder
	order  *domain.Order
	err    error
}

func (f *fakeOrders) CreateOrder(_ context.Context, key string, req domain.CreateOrder) (*domain.Order, error) {
	f.gotKey = key
	f.gotReq = req
	return f.order, f.err
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, domain.ErrOrderNotFound
	}
	return f.order, nil
}

func (f *fakeOrders) DeleteOrder(_ context.Context, _ string) error {
	return f.err
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:            "o1",
		UserID:        "U",
		Status:        domain.StatusPlaced,
		PaymentMethod: "CARD",
		Total:         decimal.RequireFromString("67.2"),
		CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Lines: []domain.OrderLine{{
			ID:        "l1",
			ItemID:    "I",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("30"),
			Subtotal:  decimal.RequireFromString("60"),
			Tax:       decimal.RequireFromString("7.2"),
		}},
	}
}

func serve(t *testing.T, svc ports.OrderService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(NewHandler(svc)).ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_PassesBodyAndIdempotencyKey(t *testing.T) {
	svc := &fakeOrders{order: sampleOrder()}
	req := httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"userId":"U","lines":[{"itemId":"I","quantity":2}],"shippingAddress":"1 Main St"}`))
	req.Header.Set("X-Idempotency-Key", "k-1")

	rec := serve(t, svc, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "k-1", svc.gotKey)
	assert.Equal(t, "U", svc.gotReq.UserID)
	assert.Equal(t, "1 Main St", svc.gotReq.ShippingAddress)
	assert.Equal(t, []domain.LineRequest{{ItemID: "I", Quantity: 2}}, svc.gotReq.Lines)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	// Money is rendered as a JSON number with two decimals.
	assert.Contains(t, rec.Body.String(), `"total":67.20`)
	assert.Contains(t, rec.Body.String(), `"lineTotal":67.20`)
	assert.Contains(t, rec.Body.String(), `"licenseId":null`)
}

func TestCreateOrder_BadJSON(t *testing.T) {
	rec := serve(t, &fakeOrders{}, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "invalid JSON body")
}

func TestCreateOrder_ErrorBodyIsFlat(t *testing.T) {
	svc := &fakeOrders{err: domain.ErrInsufficientStock}
	rec := serve(t, svc, httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"userId":"U","lines":[{"itemId":"I","quantity":99}]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"insufficient stock"}`, rec.Body.String())
}

func TestGetOrderByID(t *testing.T) {
	svc := &fakeOrders{order: sampleOrder()}

	rec := serve(t, svc, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, "2025-03-01T12:00:00Z", got.CreatedAt)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "30.00", got.Lines[0].UnitPrice.String())

	rec = serve(t, svc, httptest.NewRequest(http.MethodGet, "/orders/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOrder(t *testing.T) {
	rec := serve(t, &fakeOrders{}, httptest.NewRequest(http.MethodDelete, "/orders/o1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, &fakeOrders{err: domain.ErrOrderHasLines}, httptest.NewRequest(http.MethodDelete, "/orders/o1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMapSummaryToResponse_NullFields(t *testing.T) {
	avg := decimal.RequireFromString("4.5")
	count := 12
	s := &domain.Summary{
		ID:     "o1",
		Status: domain.StatusPlaced,
		Total:  decimal.RequireFromString("67.2"),
		Lines: []domain.LineSummary{
			{ID: "l1", ItemID: "I", Quantity: 2, AverageRating: &avg, RatingCount: &count},
			{ID: "l2", ItemID: "J", Quantity: 1},
		},
	}

	raw, err := json.Marshal(mapSummaryToResponse(s))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Nil(t, generic["user"])

	lines := generic["lines"].([]any)
	first := lines[0].(map[string]any)
	second := lines[1].(map[string]any)
	assert.InDelta(t, 4.5, first["averageRating"], 1e-9)
	assert.Nil(t, second["averageRating"])
	assert.Nil(t, second["itemName"])
	assert.Nil(t, second["licenseKey"])
}

func TestPrice_KeepsCatalogPrecision(t *testing.T) {
	assert.Equal(t, "30.00", price(decimal.RequireFromString("30")).String())
	assert.Equal(t, "9.995", price(decimal.RequireFromString("9.995")).String())
	assert.Equal(t, "10.00", money(decimal.RequireFromString("9.995")).String())
}
