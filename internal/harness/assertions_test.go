package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/longpoll/internal/subscribe"
)

func sampleTrace() []TraceStep {
	return []TraceStep{
		{
			Seq: 1, Event: "subscriptionChanged(channels=[chat] groups=[])", Accepted: true,
			Invocations: []string{
				"managed(emitStatus(disconnected->connecting))",
				"managed(handshakeRequest(channels=[chat] groups=[]))",
			},
			Keys: []string{"managed:emitStatus", "managed:handshakeRequest"},
		},
		{
			Seq: 2, Event: "handshakeSuccess(cursor=1/0)", Accepted: true,
			Invocations: []string{
				"cancel(handshakeRequest)",
				"managed(emitStatus(connecting->connected))",
				"managed(receiveMessages(channels=[chat] groups=[], cursor=1/0))",
			},
			Keys: []string{"cancel:handshakeRequest", "managed:emitStatus", "managed:receiveMessages"},
		},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Invocation: "cancel:handshakeRequest"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Invocation: "managed(emitStatus(connecting->connected))"}))

	err := assertTraceContains(trace, Assertion{Invocation: "managed:receiveReconnect"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "cancel(handshakeRequest)")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Invocations: []string{
		"managed:handshakeRequest", "cancel:handshakeRequest", "managed:receiveMessages",
	}}))
	// Intervening invocations are allowed; repeats match later occurrences.
	assert.NoError(t, assertTraceOrder(trace, Assertion{Invocations: []string{
		"managed:emitStatus", "managed:emitStatus",
	}}))

	err := assertTraceOrder(trace, Assertion{Invocations: []string{
		"managed:receiveMessages", "managed:handshakeRequest",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "managed:handshakeRequest not found after the preceding invocations")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Invocation: "managed:emitStatus", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Invocation: "managed:emitMessages", Count: 0}))

	err := assertTraceCount(trace, Assertion{Invocation: "managed:emitStatus", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	final := subscribe.Receiving{
		Input:  subscribe.NewInput([]string{"chat"}, nil),
		Cursor: subscribe.Cursor{Timetoken: 9, Region: 3},
	}

	assert.NoError(t, assertFinalState(final, Assertion{State: "Receiving", Cursor: "9/3", Status: "connected"}))
	assert.Error(t, assertFinalState(final, Assertion{State: "Handshaking"}))
	assert.Error(t, assertFinalState(final, Assertion{Cursor: "9/4"}))
	assert.Error(t, assertFinalState(final, Assertion{Status: "disconnected"}))
	assert.Error(t, assertFinalState(final, Assertion{Cursor: "bogus"}))
	assert.Error(t, assertFinalState(subscribe.Unsubscribed{}, Assertion{Cursor: "9/3"}), "no cursor to compare")
	assert.Error(t, assertFinalState(nil, Assertion{State: "Receiving"}))
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	result := NewResult()
	for _, step := range sampleTrace() {
		result.AddStep(step)
	}
	result.Final = subscribe.Unsubscribed{}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Invocation: "managed:emitStatus", Count: 2},
		{Type: AssertTraceContains, Invocation: "managed:emitMessages"},
		{Type: AssertFinalState, State: "Receiving"},
		{Type: "unknown"},
	})

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], "assertions[2]")
	assert.Contains(t, errs[2], `unknown assertion type "unknown"`)
}
