package harness

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/longpoll/internal/engine"
	"github.com/roach88/longpoll/internal/subscribe"
)

// Harness executes scenarios against a state table.
type Harness struct {
	table  engine.Transition[subscribe.State, subscribe.Event, subscribe.Invocation]
	clock  *engine.Clock
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger used for step logging.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithTransition replaces the state table under test.
func WithTransition(t engine.Transition[subscribe.State, subscribe.Event, subscribe.Invocation]) Option {
	return func(h *Harness) { h.table = t }
}

// New creates a harness for subscribe.Transition. Logs are discarded
// unless WithLogger is given.
func New(opts ...Option) *Harness {
	h := &Harness{
		table:  subscribe.Transition{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the initial state
//  2. For each step, build the event, apply the table and record the step
//  3. Check the step's expect clause
//  4. Evaluate assertions and structural properties
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in the result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	state, err := buildState(scenario.Initial)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}

	// Fresh clock per run so sequence numbers start at 1.
	h.clock = engine.NewClock()
	result := NewResult()

	for i, step := range scenario.Steps {
		event, err := buildEvent(step, state)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		traced, next := h.apply(state, event)
		result.AddStep(traced)

		h.logger.Debug("scenario step",
			"scenario", scenario.Name,
			"step", i,
			"event", traced.Event,
			"accepted", traced.Accepted,
			"to", traced.To,
		)

		if step.Expect != nil {
			for _, msg := range checkExpect(i, step.Expect, traced, next) {
				result.AddError(msg)
			}
		}
		state = next
	}
	result.Final = state

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	for _, msg := range CheckProperties(result.Trace) {
		result.AddError(msg)
	}

	return result, nil
}

// apply runs one event through the table the way the engine's run loop
// does, without dispatching anything.
func (h *Harness) apply(state subscribe.State, event subscribe.Event) (TraceStep, subscribe.State) {
	step := TraceStep{
		Seq:         h.clock.Next(),
		Event:       event.String(),
		From:        state.String(),
		Invocations: []string{},
		Keys:        []string{},
	}

	if !h.table.CanTransition(state, event) {
		step.To = step.From
		return step, state
	}

	next, effects := h.table.Transition(state, event)
	step.Accepted = true
	step.To = next.String()
	step.Invocations = subscribe.DescribeAll(effects)
	for _, e := range effects {
		step.Keys = append(step.Keys, invocationKey(e))
	}
	return step, next
}

// invocationKey renders an effect as "kind:identity".
func invocationKey(e subscribe.Effect) string {
	return e.Kind.String() + ":" + e.ID
}

func checkExpect(index int, expect *ExpectClause, step TraceStep, next subscribe.State) []string {
	var errs []string

	wantAccepted := true
	if expect.Accepted != nil {
		wantAccepted = *expect.Accepted
	}
	if step.Accepted != wantAccepted {
		errs = append(errs, fmt.Sprintf("step %d (%s): accepted = %t, want %t", index, step.Event, step.Accepted, wantAccepted))
	}

	if expect.State != "" && next.Name() != expect.State {
		errs = append(errs, fmt.Sprintf("step %d (%s): state = %s, want %s", index, step.Event, next.Name(), expect.State))
	}

	if expect.Invocations != nil && !slices.Equal(step.Invocations, expect.Invocations) {
		errs = append(errs, fmt.Sprintf("step %d (%s): invocations = %q, want %q", index, step.Event, step.Invocations, expect.Invocations))
	}

	return errs
}
