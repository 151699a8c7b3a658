package sagalog

import "context"

// Repository persists saga log rows. Save appends; it never updates.
type Repository interface {
	Save(ctx context.Context, entry *SagaLog) error
}
