// Package coordinator runs multi-step settlements as sagas: steps execute in
// order and, when one fails, the ones that already succeeded are compensated
// in reverse order.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/food-ordering/internal/coordinator/sagalog"
)

// Step is a single unit of work with an action that undoes it.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

type Orchestrator struct {
	sagaID  string
	steps   []Step
	journal sagalog.Repository
	payload any
}

// NewOrchestrator builds a saga. journal may be nil, in which case nothing
// is persisted.
func NewOrchestrator(sagaID string, steps []Step, journal sagalog.Repository) *Orchestrator {
	return &Orchestrator{sagaID: sagaID, steps: steps, journal: journal}
}

// WithPayload attaches the input recorded on the STARTED row.
func (o *Orchestrator) WithPayload(payload any) *Orchestrator {
	o.payload = payload
	return o
}

// Start runs the steps in order. On failure it compensates every step that
// already succeeded, last first, and returns the failing step's error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.record(ctx, sagalog.StatusStarted, "", o.payload, nil)

	var done []Step
	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing saga step", "saga_id", o.sagaID, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.WarnContext(ctx, "saga step failed, rolling back",
				"saga_id", o.sagaID, "step", step.Name(), "error", err)
			errs := []string{fmt.Sprintf("step %s failed: %v", step.Name(), err)}
			o.record(ctx, sagalog.StatusCompensating, step.Name(), nil, errs)

			errs = append(errs, o.rollback(ctx, done)...)
			o.record(ctx, sagalog.StatusFailed, step.Name(), nil, errs)
			return err
		}
		done = append(done, step)
		o.record(ctx, sagalog.StatusStepDone, step.Name(), nil, nil)
	}

	o.record(ctx, sagalog.StatusCompleted, "", nil, nil)
	slog.DebugContext(ctx, "saga completed", "saga_id", o.sagaID)
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) []string {
	// compensation must run even if the caller's context is already done
	ctx = context.WithoutCancel(ctx)

	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		slog.InfoContext(ctx, "compensating saga step", "saga_id", o.sagaID, "step", step.Name())
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: compensation failed",
				"saga_id", o.sagaID, "step", step.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}
	return errs
}

func (o *Orchestrator) record(ctx context.Context, status sagalog.Status, step string, payload any, errs []string) {
	if o.journal == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, o.sagaID, status, step, payload, errs)
	if err := o.journal.Save(context.WithoutCancel(ctx), entry); err != nil {
		slog.ErrorContext(ctx, "failed to write settlement journal", "saga_id", o.sagaID, "error", err)
	}
}
