package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var attemptPattern = regexp.MustCompile(`attempt=(\d+)`)

// CheckProperties verifies structural properties every trace of the
// subscribe table must have, independent of the scenario:
//
//   - a rejected event leaves the state unchanged and invokes nothing
//   - within a step, a cancel of an identity precedes its start
//   - reconnect attempts start at 0 and grow by exactly 1 while retrying
func CheckProperties(trace []TraceStep) []string {
	var errs []string
	for _, step := range trace {
		if !step.Accepted {
			if step.From != step.To {
				errs = append(errs, fmt.Sprintf("seq %d: rejected %s changed state %s -> %s", step.Seq, step.Event, step.From, step.To))
			}
			if len(step.Invocations) > 0 {
				errs = append(errs, fmt.Sprintf("seq %d: rejected %s produced invocations %q", step.Seq, step.Event, step.Invocations))
			}
			continue
		}
		errs = append(errs, checkCancelOrder(step)...)
		errs = append(errs, checkAttempt(step)...)
	}
	return errs
}

func checkCancelOrder(step TraceStep) []string {
	var errs []string
	started := make(map[string]bool)
	for _, key := range step.Keys {
		kind, id, _ := strings.Cut(key, ":")
		switch kind {
		case "managed":
			started[id] = true
		case "cancel":
			if started[id] {
				errs = append(errs, fmt.Sprintf("seq %d: %s cancelled after it was started", step.Seq, id))
			}
		}
	}
	return errs
}

func checkAttempt(step TraceStep) []string {
	to, ok := reconnectAttempt(step.To)
	if !ok {
		return nil
	}

	want := 0
	if from, ok := reconnectAttempt(step.From); ok && stateName(step.From) == stateName(step.To) {
		want = from + 1
	}
	if to != want {
		return []string{fmt.Sprintf("seq %d: attempt %d after %s, want %d", step.Seq, to, step.From, want)}
	}
	return nil
}

// reconnectAttempt extracts the attempt of a reconnecting state string.
func reconnectAttempt(state string) (int, bool) {
	if !strings.HasSuffix(stateName(state), "Reconnecting") {
		return 0, false
	}
	m := attemptPattern.FindStringSubmatch(state)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func stateName(state string) string {
	name, _, _ := strings.Cut(state, "(")
	return name
}
