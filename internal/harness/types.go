package harness

import (
	"github.com/roach88/billbook/internal/record"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step       int    `json:"step"`
	Op         string `json:"op"`
	Collection string `json:"collection,omitempty"`
	ID         string `json:"id,omitempty"`
	Action     string `json:"action,omitempty"`

	// Queued is set for writes: true when the mutation went to the outbox.
	Queued *bool `json:"queued,omitempty"`

	// Load is set for load steps.
	Load *LoadOutcome `json:"load,omitempty"`

	// Err holds the error a step returned, if any.
	Err string `json:"error,omitempty"`
}

// LoadOutcome is the part of an engine.LoadReport a trace keeps.
type LoadOutcome struct {
	Replayed int `json:"replayed"`
	Dropped  int `json:"dropped"`
	Pending  int `json:"pending"`
	// Failed lists the collections whose fetch failed, sorted.
	Failed []string `json:"failed"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation, assertion and per-step
	// invariant held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final projection, by collection.
	State map[record.Collection][]record.Object `json:"state,omitempty"`

	// Outbox is the final queue in replay order.
	Outbox []record.Mutation `json:"outbox,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[record.Collection][]record.Object),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
