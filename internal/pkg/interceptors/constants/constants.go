// Package constants names the metadata that travels with an order request:
// over HTTP as headers, over gRPC as metadata, and inside the process as
// context values.
package constants

type ctxKey string

// Header names are lower case so they match gRPC metadata keys as well.
const (
	HeaderRequestID      = "x-request-id"
	HeaderIdempotencyKey = "x-idempotency-key"
)

// Context keys for values set by interceptors.WithRequestMetadata.
const (
	CtxRequestID      ctxKey = HeaderRequestID
	CtxIdempotencyKey ctxKey = HeaderIdempotencyKey
)
