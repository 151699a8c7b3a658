// Package coordinator runs the purchase saga: verify user, price lines,
// persist, decrement stock, then the best-effort license and library steps.
//
// The saga is forward-only. Nothing is compensated: a fatal failure after
// persistence leaves the order stored and a FAILED row in the saga log for
// reconciliation.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/gamestore-orders/internal/coordinator/sagalog"
)

// Policy says what a step failure does to the saga.
type Policy int

const (
	// Fatal failures stop the saga and are returned to the caller.
	Fatal Policy = iota
	// BestEffort failures are logged and recorded; the saga carries on.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "fatal"
}

// Step is a single unit of work in the saga.
type Step interface {
	Name() string
	Policy() Policy
	Execute(ctx context.Context) error
}

// StepError is returned by Start when a fatal step fails.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Orchestrator executes steps in order and writes every transition to the
// saga log. A nil log repository disables the audit trail.
type Orchestrator struct {
	sagaID  string
	payload string
	steps   []Step
	log     sagalog.Repository
}

func NewOrchestrator(sagaID, payload string, steps []Step, log sagalog.Repository) *Orchestrator {
	return &Orchestrator{sagaID: sagaID, payload: payload, steps: steps, log: log}
}

// Start runs the steps sequentially. It returns a *StepError for the first
// fatal failure; best-effort failures never reach the caller.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.record(ctx, sagalog.StatusStarted, "", o.payload, nil)

	var skipped []string
	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing saga step", "saga_id", o.sagaID, "step", step.Name())

		err := step.Execute(ctx)
		if err == nil {
			o.record(ctx, sagalog.StatusStepDone, step.Name(), "", nil)
			continue
		}

		if step.Policy() == BestEffort {
			slog.WarnContext(ctx, "best-effort saga step failed",
				"saga_id", o.sagaID,
				"step", step.Name(),
				"error", err,
			)
			msg := fmt.Sprintf("step %s skipped: %v", step.Name(), err)
			skipped = append(skipped, msg)
			o.record(ctx, sagalog.StatusStepSkipped, step.Name(), "", []string{msg})
			continue
		}

		slog.ErrorContext(ctx, "saga step failed",
			"saga_id", o.sagaID,
			"step", step.Name(),
			"error", err,
		)
		o.record(ctx, sagalog.StatusFailed, step.Name(), "", append(skipped, fmt.Sprintf("step %s failed: %v", step.Name(), err)))
		return &StepError{Step: step.Name(), Err: err}
	}

	o.record(ctx, sagalog.StatusCompleted, "", "", skipped)
	slog.InfoContext(ctx, "saga completed", "saga_id", o.sagaID, "skipped_steps", len(skipped))
	return nil
}

// record writes a saga log row. A failing log never fails the saga.
func (o *Orchestrator) record(ctx context.Context, status sagalog.Status, step, payload string, errs []string) {
	if o.log == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, o.sagaID, status, step, payload, errs)
	if err := o.log.Save(context.WithoutCancel(ctx), entry); err != nil {
		slog.WarnContext(ctx, "failed to write saga log",
			"saga_id", o.sagaID,
			"status", status,
			"error", err,
		)
	}
}
