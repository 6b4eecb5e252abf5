package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/longpoll/internal/engine"
	"github.com/roach88/longpoll/internal/subscribe"
)

func intp(n int) *int    { return &n }
func boolp(b bool) *bool { return &b }

func TestRun_HandshakeThenReceive(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "handshake then receive",
		Steps: []EventStep{
			{Event: "subscriptionChanged", Channels: []string{"chat"}},
			{Event: "handshakeSuccess", Cursor: "5/2"},
			{Event: "receiveSuccess", Cursor: "6/2", Messages: []MessageSpec{{Channel: "chat", Timetoken: 6, Payload: `"x"`}}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)

	assert.Equal(t, []int64{1, 2, 3}, []int64{result.Trace[0].Seq, result.Trace[1].Seq, result.Trace[2].Seq})
	assert.Equal(t, "Unsubscribed", result.Trace[0].From)
	assert.Equal(t, "Receiving(channels=[chat] groups=[], cursor=6/2)", result.Trace[2].To)
	assert.Equal(t, []string{
		"cancel:receiveMessages",
		"managed:emitMessages",
		"managed:emitStatus",
		"managed:receiveMessages",
	}, result.Trace[2].Keys)

	cursor, ok := subscribe.StateCursor(result.Final)
	require.True(t, ok)
	assert.Equal(t, subscribe.Cursor{Timetoken: 6, Region: 2}, cursor)
}

func TestRun_ExpectMismatchIsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations",
		Steps: []EventStep{
			{
				Event:    "subscriptionChanged",
				Channels: []string{"chat"},
				Expect: &ExpectClause{
					State:       "Receiving",
					Invocations: []string{"managed(handshakeRequest(channels=[chat] groups=[]))"},
				},
			},
			{
				Event:  "reconnect",
				Expect: &ExpectClause{Accepted: boolp(true)},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "state = Handshaking, want Receiving")
	assert.Contains(t, result.Errors[1], "invocations =")
	assert.Contains(t, result.Errors[2], "accepted = false, want true")
}

func TestRun_EffectEventOriginDefaultsToState(t *testing.T) {
	scenario := &Scenario{
		Name:        "origin",
		Description: "attempt and request default from the state",
		Initial: &StateSpec{
			State: "ReceiveReconnecting", Channels: []string{"chat"}, Cursor: "7/0", Attempt: 2, Reason: "timeout",
		},
		Steps: []EventStep{
			{Event: "receiveReconnectFailure", Reason: "connectionReset", Expect: &ExpectClause{State: "ReceiveReconnecting"}},
			// Attempt 2 is stale now that the state is at 3.
			{Event: "receiveReconnectFailure", Attempt: intp(2), Expect: &ExpectClause{Accepted: boolp(false)}},
			{Event: "receiveReconnectSuccess", Request: "1/0", Expect: &ExpectClause{Accepted: boolp(false)}},
			{Event: "receiveReconnectGiveUp", Expect: &ExpectClause{State: "ReceiveFailed"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t,
		"ReceiveReconnecting(channels=[chat] groups=[], cursor=7/0, attempt=3, reason=connectionReset)",
		result.Trace[0].To)
}

func TestRun_InvalidInitialState(t *testing.T) {
	tests := []struct {
		name string
		spec StateSpec
	}{
		{"no input", StateSpec{State: "Handshaking"}},
		{"no cursor", StateSpec{State: "Receiving", Channels: []string{"chat"}}},
		{"bad cursor", StateSpec{State: "Receiving", Channels: []string{"chat"}, Cursor: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := tt.spec
			_, err := Run(&Scenario{
				Name: "bad", Description: "bad", Initial: &spec,
				Steps: []EventStep{{Event: "disconnect"}},
			})
			assert.Error(t, err)
		})
	}
}

func TestRun_InvalidPayload(t *testing.T) {
	_, err := Run(&Scenario{
		Name: "bad", Description: "bad",
		Initial: &StateSpec{State: "Receiving", Channels: []string{"chat"}, Cursor: "1/0"},
		Steps: []EventStep{{
			Event: "receiveSuccess", Cursor: "2/0",
			Messages: []MessageSpec{{Channel: "chat", Timetoken: 2, Payload: "{nope"}},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload is not JSON")
}

// acceptAll is a broken table that accepts everything and never moves.
type acceptAll struct{}

func (acceptAll) CanTransition(subscribe.State, subscribe.Event) bool { return true }

func (acceptAll) Transition(s subscribe.State, _ subscribe.Event) (subscribe.State, []subscribe.Effect) {
	return s, []subscribe.Effect{
		engine.Managed[subscribe.Invocation](subscribe.HandshakeRequest{Input: s.Subscription()}),
		engine.Cancel[subscribe.Invocation](subscribe.IDHandshakeRequest),
	}
}

func TestRun_PropertiesCatchBrokenTable(t *testing.T) {
	h := New(WithTransition(acceptAll{}))
	result, err := h.Run(&Scenario{
		Name: "broken", Description: "broken",
		Steps: []EventStep{{Event: "disconnect"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "handshakeRequest cancelled after it was started")
}

func TestRun_DigestIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "receive_reconnect_give_up.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	d1, err := first.Digest()
	require.NoError(t, err)
	d2, err := second.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestRunSuite(t *testing.T) {
	suite, err := New().RunSuite(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)

	assert.Equal(t, 4, suite.TotalScenarios)
	assert.Equal(t, 4, suite.Passed)
	assert.Equal(t, 0, suite.Failed)
	for _, s := range suite.Scenarios {
		assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
		assert.NotEmpty(t, s.Digest)
	}

	filtered, err := New().RunSuite(filepath.Join("testdata", "scenarios"), "handshake_*")
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.TotalScenarios)
}
