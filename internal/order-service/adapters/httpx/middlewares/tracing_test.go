package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors/constants"
)

func TestAttachTracingMetadata(t *testing.T) {
	var reqID, idemKey string
	h := middleware.RequestID(AttachTracingMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID = interceptors.GetMetadataValue(r.Context(), constants.HeaderRequestID)
		idemKey = interceptors.GetMetadataValue(r.Context(), constants.HeaderIdempotencyKey)
	})))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("X-Request-Id", "incoming-id")
	req.Header.Set("X-Idempotency-Key", "idem-1")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "incoming-id", reqID)
	assert.Equal(t, "idem-1", idemKey)
	assert.Equal(t, "incoming-id", rec.Header().Get("X-Request-Id"))
}
