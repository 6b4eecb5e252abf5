package harness

import (
	"github.com/roach88/longpoll/internal/canonical"
	"github.com/roach88/longpoll/internal/subscribe"
)

// TraceStep records one processed event.
type TraceStep struct {
	Seq         int64    `json:"seq"`
	Event       string   `json:"event"`
	Accepted    bool     `json:"accepted"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Invocations []string `json:"invocations"`

	// Keys holds "kind:identity" for each invocation, parallel to
	// Invocations. Not part of snapshots.
	Keys []string `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation, assertion and property held.
	Pass bool `json:"pass"`

	// Trace contains one step per event, in order.
	Trace []TraceStep `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the state after the last step.
	Final subscribe.State `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceStep{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(step TraceStep) {
	r.Trace = append(r.Trace, step)
}

// Digest returns a content hash of the trace. Two runs of the same
// scenario produce the same digest.
func (r *Result) Digest() (string, error) {
	return canonical.Hash(canonical.DomainTrace, traceToCanonical(r.Trace))
}

func traceToCanonical(trace []TraceStep) []any {
	out := make([]any, len(trace))
	for i, step := range trace {
		invocations := step.Invocations
		if invocations == nil {
			invocations = []string{}
		}
		out[i] = map[string]any{
			"seq":         step.Seq,
			"event":       step.Event,
			"accepted":    step.Accepted,
			"from":        step.From,
			"to":          step.To,
			"invocations": invocations,
		}
	}
	return out
}
