// Package sagalog defines the append-only audit trail written while an order
// is orchestrated.
//
// Each orchestration step appends one row. Rows carry the trace and span ids
// of the active OpenTelemetry span, so an operator reconciling an order that
// failed after persistence can jump from the row to the distributed trace.
package sagalog

import "time"

// Status is the lifecycle state recorded by a row.
type Status string

const (
	StatusStarted     Status = "STARTED"
	StatusStepDone    Status = "STEP_DONE"
	StatusStepSkipped Status = "STEP_SKIPPED"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// SagaLog is a single row in the saga_logs table.
type SagaLog struct {
	// SagaID is the order id, so rows join with business data.
	SagaID string

	Status Status

	// CurrentStep is the step that just finished, was skipped or failed.
	CurrentStep string

	// Payload is the JSON purchase request. Written on STARTED only.
	Payload string

	// ErrorMessages is a JSON array of failure details.
	ErrorMessages string

	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
