package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors/constants"
)

// AttachTracingMetadata copies the chi request id and the X-Idempotency-Key
// header into the request context and echoes the request id back.
// It must run after middleware.RequestID.
func AttachTracingMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := r.Header.Get(constants.HeaderIdempotencyKey)

		if requestID != "" {
			w.Header().Set(constants.HeaderRequestID, requestID)
		}

		ctx := interceptors.WithRequestMetadata(r.Context(), requestID, idempotencyKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
