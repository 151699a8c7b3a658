package interceptors

import (
	"context"

	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors/constants"
	"google.golang.org/grpc/metadata"
)

// WithRequestMetadata stores the request id and idempotency key on ctx so
// handlers and outbound clients can read them back with GetMetadataValue.
func WithRequestMetadata(ctx context.Context, requestID, idempotencyKey string) context.Context {
	ctx = context.WithValue(ctx, constants.CtxRequestID, requestID)
	return context.WithValue(ctx, constants.CtxIdempotencyKey, idempotencyKey)
}

// GetMetadataValue looks key up in the typed context values first, then in
// incoming and outgoing gRPC metadata. It returns "" when absent.
func GetMetadataValue(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKeyFor(key)).(string); ok && v != "" {
		return v
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(key); len(ids) > 0 {
			return ids[0]
		}
	}

	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if ids := md.Get(key); len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

func contextKeyFor(header string) any {
	switch header {
	case constants.HeaderRequestID:
		return constants.CtxRequestID
	case constants.HeaderIdempotencyKey:
		return constants.CtxIdempotencyKey
	default:
		return header
	}
}
