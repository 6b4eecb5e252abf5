package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/longpoll/internal/canonical"
	"github.com/roach88/longpoll/internal/subscribe"
)

// Scenario defines a state table scenario: a starting state, the events fed
// to it, and what the resulting trace must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the starting state. Defaults to Unsubscribed.
	Initial *StateSpec `yaml:"initial,omitempty"`

	// Steps are the events, in order, each with an optional expectation.
	Steps []EventStep `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Source is the digest of the YAML the scenario was parsed from.
	Source string `yaml:"-"`
}

// StateSpec describes a state by variant name and fields.
type StateSpec struct {
	State    string   `yaml:"state"`
	Channels []string `yaml:"channels,omitempty"`
	Groups   []string `yaml:"groups,omitempty"`
	Cursor   string   `yaml:"cursor,omitempty"`
	Attempt  int      `yaml:"attempt,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`
	Status   int      `yaml:"status,omitempty"`
}

// EventStep is one event fed to the table.
type EventStep struct {
	// Event is the event name, e.g. "receiveFailure".
	Event string `yaml:"event"`

	// Channels and Groups are the new subscription for subscriptionChanged
	// and subscriptionRestored. On effect events they override the origin
	// input, which defaults to the current state's.
	Channels []string `yaml:"channels,omitempty"`
	Groups   []string `yaml:"groups,omitempty"`

	// Cursor is the cursor an event reports.
	Cursor string `yaml:"cursor,omitempty"`

	// Request overrides the request cursor of a receive result.
	Request string `yaml:"request,omitempty"`

	// Attempt overrides the attempt of a reconnect result.
	Attempt *int `yaml:"attempt,omitempty"`

	// Reason and Status describe the error of a failure or give-up.
	Reason string `yaml:"reason,omitempty"`
	Status int    `yaml:"status,omitempty"`

	// Messages are delivered by receive results.
	Messages []MessageSpec `yaml:"messages,omitempty"`

	// Expect checks the step's outcome. If nil the step is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// MessageSpec is a message carried by a receive result.
type MessageSpec struct {
	Channel   string `yaml:"channel"`
	Timetoken uint64 `yaml:"timetoken"`
	Payload   string `yaml:"payload,omitempty"`
}

// ExpectClause specifies the expected outcome of one step.
type ExpectClause struct {
	// Accepted defaults to true.
	Accepted *bool `yaml:"accepted,omitempty"`

	// State is the expected state name after the step.
	State string `yaml:"state,omitempty"`

	// Invocations is the exact expected invocation list, in order. Nil
	// skips the check; an empty list requires no invocations.
	Invocations []string `yaml:"invocations"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Invocation is matched by trace_contains and trace_count.
	Invocation string `yaml:"invocation,omitempty"`

	// Invocations is the expected order for trace_order.
	Invocations []string `yaml:"invocations,omitempty"`

	// Count is the expected number of occurrences for trace_count.
	Count int `yaml:"count,omitempty"`

	// State, Cursor and Status are checked by final_state. Empty fields
	// are not checked.
	State  string `yaml:"state,omitempty"`
	Cursor string `yaml:"cursor,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	source, err := canonical.Hash(canonical.DomainScenario, string(data))
	if err != nil {
		return nil, err
	}
	scenario.Source = source
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir whose base name
// matches pattern (all files when pattern is empty), sorted by path.
func LoadScenarios(dir, pattern string) ([]*Scenario, []string, error) {
	var paths []string
	for _, ext := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, ext))
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	var (
		scenarios []*Scenario
		loaded    []string
	)
	for _, path := range paths {
		if pattern != "" {
			ok, err := filepath.Match(pattern, filepath.Base(path))
			if err != nil {
				return nil, nil, fmt.Errorf("bad filter %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		s, err := LoadScenario(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
		loaded = append(loaded, path)
	}
	return scenarios, loaded, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Initial != nil && !slices.Contains(subscribe.StateNames, s.Initial.State) {
		return fmt.Errorf("initial: unknown state %q", s.Initial.State)
	}

	for i, step := range s.Steps {
		if step.Event == "" {
			return fmt.Errorf("steps[%d]: event is required", i)
		}
		if !slices.Contains(subscribe.EventNames, step.Event) {
			return fmt.Errorf("steps[%d]: unknown event %q", i, step.Event)
		}
		if step.Expect != nil && step.Expect.State != "" && !slices.Contains(subscribe.StateNames, step.Expect.State) {
			return fmt.Errorf("steps[%d].expect: unknown state %q", i, step.Expect.State)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Invocation == "" {
			return fmt.Errorf("assertions[%d]: invocation is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Invocations) == 0 {
			return fmt.Errorf("assertions[%d]: invocations list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Invocation == "" {
			return fmt.Errorf("assertions[%d]: invocation is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.State == "" && a.Cursor == "" && a.Status == "" {
			return fmt.Errorf("assertions[%d]: final_state needs state, cursor or status", index)
		}
		if a.State != "" && !slices.Contains(subscribe.StateNames, a.State) {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
