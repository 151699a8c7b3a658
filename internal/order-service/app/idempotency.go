package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
)

// Cached values are either an order id or, for a saga that failed after the
// order was persisted, "<order id>|<kind>|<message>".
const failureSep = "|"

// failureKinds maps the stored kind back to the sentinel a replay wraps, so
// the caller gets the same status as the first attempt.
var failureKinds = map[string]error{
	"stock":       domain.ErrInsufficientStock,
	"item":        domain.ErrItemNotFound,
	"user":        domain.ErrUserNotFound,
	"invalid":     domain.ErrInvalidRequest,
	"unavailable": domain.ErrUpstreamUnavailable,
}

func failureKind(err error) string {
	for kind, sentinel := range failureKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return "internal"
}

// replayedError carries the message of a failed first attempt. It unwraps to
// the sentinel of the original failure, or to nothing for internal errors.
type replayedError struct {
	msg  string
	kind error
}

func (e *replayedError) Error() string { return e.msg }

func (e *replayedError) Unwrap() error { return e.kind }

// claim reserves cacheKey for orderID. It returns the stored outcome when the
// key was already used. Cache failures disable idempotency for this call.
func (s *Service) claim(ctx context.Context, cacheKey, orderID string) (*domain.Order, error) {
	claimed, err := s.cache.SetNX(ctx, cacheKey, orderID, s.opts.IdempotencyTTL)
	if err != nil {
		slog.WarnContext(ctx, "idempotency cache unavailable", "key", cacheKey, "error", err)
		return nil, nil
	}
	if claimed {
		return nil, nil
	}

	existing, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		slog.WarnContext(ctx, "idempotency cache unavailable", "key", cacheKey, "error", err)
		return nil, nil
	}
	if existing == "" {
		// Expired between SetNX and Get.
		return nil, nil
	}

	if id, kind, msg, failed := parseFailure(existing); failed {
		slog.InfoContext(ctx, "replaying failure for idempotency key", "order_id", id, "kind", kind)
		return nil, &replayedError{msg: msg, kind: failureKinds[kind]}
	}

	order, err := s.repo.GetOrder(ctx, existing)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrDuplicateRequest, existing)
	}
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "replaying order for idempotency key", "order_id", order.ID)
	return order, nil
}

// recordFailure replaces the claimed order id with the failure so retries
// report it instead of finding a persisted order and treating it as placed.
func (s *Service) recordFailure(ctx context.Context, cacheKey, orderID string, cause error) {
	value := strings.Join([]string{orderID, failureKind(cause), cause.Error()}, failureSep)
	if err := s.cache.Set(context.WithoutCancel(ctx), cacheKey, value, s.opts.IdempotencyTTL); err != nil {
		slog.WarnContext(ctx, "failed to record saga failure for idempotency key", "key", cacheKey, "error", err)
	}
}

func parseFailure(value string) (orderID, kind, msg string, ok bool) {
	parts := strings.SplitN(value, failureSep, 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (s *Service) release(ctx context.Context, cacheKey string) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), cacheKey); err != nil {
		slog.WarnContext(ctx, "failed to release idempotency key", "key", cacheKey, "error", err)
	}
}
