package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

// statusFor maps a use-case error to an HTTP status and the message shown to
// the caller. Unknown errors get a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOrderHasLines):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrLineNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, locator.ErrUnavailable):
		var ue *locator.UnavailableError
		if errors.As(err, &ue) {
			return http.StatusServiceUnavailable, fmt.Sprintf("%s service unavailable", ue.Service)
		}
		return http.StatusServiceUnavailable, domain.ErrUpstreamUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.DebugContext(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, msg)
}
