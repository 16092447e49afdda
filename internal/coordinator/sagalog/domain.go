// Package sagalog is the settlement journal: an append-only trail of every
// step a payment settlement goes through.
//
// Each row carries the trace and span ids that were active when it was
// written, so a payment's history can be joined with its distributed trace.
// The journal is also what an operator reads when a settlement stopped
// half-way (authorized at the gateway but never confirmed locally).
package sagalog

import "time"

type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
	// StatusRecorded marks a single transition written outside a saga run,
	// such as a cancellation or a reconciliation.
	StatusRecorded Status = "RECORDED"
)

// Entry is one row of the journal.
type Entry struct {
	// SagaID is the payment id.
	SagaID string

	Status Status

	// Step is the step or operation the row is about, e.g. "authorize".
	Step string

	// Payload is a JSON document describing the input; only set on STARTED
	// and RECORDED rows.
	Payload string

	// Errors is a JSON array of failure messages accumulated so far.
	Errors string

	TraceID string
	SpanID  string

	RecordedAt time.Time
}
