package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors/constants"
)

// maxBody caps request bodies; purchase requests are small.
const maxBody = 1 << 20

// Handler exposes the order use cases over HTTP.
type Handler struct {
	orders ports.OrderService
}

func NewHandler(orders ports.OrderService) *Handler {
	return &Handler{orders: orders}
}

// CreateOrder runs the purchase flow and answers with the placed order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	idempKey := interceptors.GetMetadataValue(ctx, constants.HeaderIdempotencyKey)
	slog.InfoContext(ctx, "creating order",
		"request_id", interceptors.GetMetadataValue(ctx, constants.HeaderRequestID),
		"user_id", req.UserID,
		"lines", len(req.Lines),
	)

	order, err := h.orders.CreateOrder(ctx, idempKey, req.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrdersByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteOrder refuses orders that still have lines.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// GetSummary answers 200 even when collaborators are down; the affected
// fields are null.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.orders.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSummaryToResponse(s))
}

func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.orders.ListLines(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapLines(lines))
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequestDTO
	if !decode(w, r, &req) {
		return
	}
	order, err := h.orders.AddLine(r.Context(), chi.URLParam(r, "id"), req.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req LineRequestDTO
	if !decode(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"), req.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.RemoveLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// decode reads a JSON body into v and writes a 400 when it cannot.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
