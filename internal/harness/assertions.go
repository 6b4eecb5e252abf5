package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/longpoll/internal/subscribe"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []TraceStep // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, step := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s -> %s\n", step.Seq, step.Event, step.To)
			for _, inv := range step.Invocations {
				fmt.Fprintf(&buf, "        %s\n", inv)
			}
		}
	}

	return buf.String()
}

// occurrence is one invocation in the flattened trace.
type occurrence struct {
	description string
	key         string
}

func flatten(trace []TraceStep) []occurrence {
	var out []occurrence
	for _, step := range trace {
		for i, inv := range step.Invocations {
			key := ""
			if i < len(step.Keys) {
				key = step.Keys[i]
			}
			out = append(out, occurrence{description: inv, key: key})
		}
	}
	return out
}

// matches reports whether o is the invocation named by pattern, given
// either as a full description or as "kind:identity".
func (o occurrence) matches(pattern string) bool {
	return o.description == pattern || o.key == pattern
}

// assertTraceContains checks that the trace contains the invocation.
func assertTraceContains(trace []TraceStep, assertion Assertion) error {
	for _, o := range flatten(trace) {
		if o.matches(assertion.Invocation) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("invocation %s", assertion.Invocation),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that invocations appear in the given order.
// They don't need to be consecutive; each is matched after the previous.
func assertTraceOrder(trace []TraceStep, assertion Assertion) error {
	flat := flatten(trace)
	pos := 0
	for _, want := range assertion.Invocations {
		found := false
		for pos < len(flat) {
			o := flat[pos]
			pos++
			if o.matches(want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("invocations in order: %v", assertion.Invocations),
				Actual:   fmt.Sprintf("%s not found after the preceding invocations", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the invocation appears exactly Count times.
func assertTraceCount(trace []TraceStep, assertion Assertion) error {
	count := 0
	for _, o := range flatten(trace) {
		if o.matches(assertion.Invocation) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Invocation),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the state after the last step.
func assertFinalState(final subscribe.State, assertion Assertion) error {
	if final == nil {
		return fmt.Errorf("final_state: no final state recorded")
	}

	if assertion.State != "" && final.Name() != assertion.State {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("state %s", assertion.State),
			Actual:   fmt.Sprintf("state %s", final),
		}
	}

	if assertion.Cursor != "" {
		want, err := subscribe.ParseCursor(assertion.Cursor)
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		got, ok := subscribe.StateCursor(final)
		if !ok || got != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("cursor %s", want),
				Actual:   fmt.Sprintf("state %s", final),
			}
		}
	}

	if assertion.Status != "" && final.ConnectionStatus().String() != assertion.Status {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("status %s", assertion.Status),
			Actual:   fmt.Sprintf("status %s", final.ConnectionStatus()),
		}
	}

	return nil
}

// EvaluateAssertions runs all assertions and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.Final, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
