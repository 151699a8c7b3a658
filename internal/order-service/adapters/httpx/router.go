package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/adapters/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/user/{userId}", handler.ListOrdersByUser)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetOrderByID)
			r.Delete("/", handler.DeleteOrder)
			r.Post("/confirm", handler.ConfirmOrder)
			r.Get("/summary", handler.GetSummary)

			r.Get("/lines", handler.ListLines)
			r.Post("/lines", handler.AddLine)
			r.Put("/lines/{lineId}", handler.UpdateLine)
			r.Delete("/lines/{lineId}", handler.RemoveLine)
		})
	})

	return otelhttp.NewHandler(r, "order-service")
}
