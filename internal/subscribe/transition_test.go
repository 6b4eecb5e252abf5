package subscribe

import (
	"errors"
	"testing"

	"github.com/roach88/longpoll/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chatInput = NewInput([]string{"chat"}, nil)
	errBoom   = NewStatusError(503, errors.New("unavailable"))
)

func apply(t *testing.T, s State, e Event) (State, []Effect) {
	t.Helper()
	require.True(t, Transition{}.CanTransition(s, e), "%s should accept %s", s, e)
	return Transition{}.Transition(s, e)
}

func TestTransition_HandshakeSuccess(t *testing.T) {
	cursor := Cursor{Timetoken: 12345, Region: 1}

	next, effects := apply(t, Handshaking{Input: chatInput}, HandshakeSuccess{Input: chatInput, Cursor: cursor})

	assert.Equal(t, Receiving{Input: chatInput, Cursor: cursor}, next)
	assert.Equal(t, []Effect{
		engine.Cancel[Invocation](IDHandshakeRequest),
		engine.Managed[Invocation](EmitStatus{Change: StatusChange{Old: StatusConnecting, New: StatusConnected}}),
		engine.Managed[Invocation](ReceiveMessages{Input: chatInput, Cursor: cursor}),
	}, effects)
}

func TestTransition_HandshakeGiveUp(t *testing.T) {
	state := HandshakeReconnecting{Input: chatInput, Attempt: 3, Reason: errBoom}

	next, effects := apply(t, state, HandshakeReconnectGiveUp{Input: chatInput, Attempt: 3, Err: errBoom})

	assert.Equal(t, HandshakeFailed{Input: chatInput, Err: errBoom}, next)
	assert.Equal(t, []Effect{
		engine.Cancel[Invocation](IDHandshakeReconnect),
		engine.Managed[Invocation](EmitStatus{Change: StatusChange{
			Old:   StatusConnecting,
			New:   StatusDisconnected,
			Error: errBoom,
		}}),
	}, effects)
}

func TestTransition_SubscriptionChangedWhileReceivingKeepsCursor(t *testing.T) {
	cursor := Cursor{Timetoken: 777, Region: 4}
	newInput := NewInput([]string{"new-channel"}, []string{"g1", "g2"})

	next, effects := apply(t,
		Receiving{Input: chatInput, Cursor: cursor},
		SubscriptionChanged{Channels: []string{"new-channel"}, Groups: []string{"g1", "g2"}},
	)

	assert.Equal(t, Receiving{Input: newInput, Cursor: cursor}, next)
	assert.Equal(t, []Effect{
		engine.Cancel[Invocation](IDReceiveMessages),
		engine.Managed[Invocation](ReceiveMessages{Input: newInput, Cursor: cursor}),
	}, effects)
}

func TestTransition_SubscriptionChangedFromUnsubscribedHandshakes(t *testing.T) {
	next, effects := apply(t, Unsubscribed{}, SubscriptionChanged{Channels: []string{"chat"}})

	assert.Equal(t, Handshaking{Input: chatInput}, next)
	assert.Equal(t, []string{
		"managed(emitStatus(disconnected->connecting))",
		"managed(handshakeRequest(channels=[chat] groups=[]))",
	}, DescribeAll(effects))
}

func TestTransition_SubscriptionChangedWhileHandshakingRestarts(t *testing.T) {
	next, effects := apply(t, Handshaking{Input: chatInput}, SubscriptionChanged{Channels: []string{"chat", "news"}})

	assert.Equal(t, Handshaking{Input: NewInput([]string{"chat", "news"}, nil)}, next)
	assert.Equal(t, []string{
		"cancel(handshakeRequest)",
		"managed(handshakeRequest(channels=[chat,news] groups=[]))",
	}, DescribeAll(effects))
}

func TestTransition_SubscriptionChangedRearmsStoppedAndFailed(t *testing.T) {
	cursor := Cursor{Timetoken: 9, Region: 2}
	news := NewInput([]string{"news"}, nil)
	changed := SubscriptionChanged{Channels: []string{"news"}}

	tests := []struct {
		name string
		from State
		want State
	}{
		{"handshake stopped", HandshakeStopped{Input: chatInput}, Handshaking{Input: news}},
		{"handshake failed", HandshakeFailed{Input: chatInput, Err: errBoom}, Handshaking{Input: news}},
		{"receive stopped", ReceiveStopped{Input: chatInput, Cursor: cursor}, Receiving{Input: news, Cursor: cursor, Resuming: true}},
		{"receive failed", ReceiveFailed{Input: chatInput, Cursor: cursor, Err: errBoom}, Receiving{Input: news, Cursor: cursor, Resuming: true}},
		{"receive reconnecting", ReceiveReconnecting{Input: chatInput, Cursor: cursor, Attempt: 2}, Receiving{Input: news, Cursor: cursor}},
		{"handshake reconnecting", HandshakeReconnecting{Input: chatInput, Attempt: 1}, Handshaking{Input: news}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _ := apply(t, tt.from, changed)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestTransition_EmptySubscriptionUnsubscribes(t *testing.T) {
	next, effects := apply(t, Receiving{Input: chatInput, Cursor: Cursor{Timetoken: 5}}, SubscriptionChanged{})

	assert.Equal(t, Unsubscribed{}, next)
	assert.Equal(t, []string{
		"cancel(receiveMessages)",
		"managed(emitStatus(connected->disconnected))",
	}, DescribeAll(effects))

	assert.False(t, Transition{}.CanTransition(Unsubscribed{}, SubscriptionChanged{}))
}

func TestTransition_SubscriptionRestored(t *testing.T) {
	cursor := Cursor{Timetoken: 500, Region: 3}
	restored := SubscriptionRestored{Channels: []string{"chat"}, Cursor: cursor}

	t.Run("from handshaking", func(t *testing.T) {
		next, effects := apply(t, Handshaking{Input: chatInput}, restored)
		assert.Equal(t, Receiving{Input: chatInput, Cursor: cursor, Resuming: true}, next)
		assert.Equal(t, []string{
			"cancel(handshakeRequest)",
			"managed(receiveMessages(channels=[chat] groups=[], cursor=500/3))",
		}, DescribeAll(effects), "still connecting until the server answers")
	})

	t.Run("from unsubscribed", func(t *testing.T) {
		next, effects := apply(t, Unsubscribed{}, restored)
		assert.Equal(t, StatusConnecting, next.ConnectionStatus())
		assert.Equal(t, []string{
			"managed(emitStatus(disconnected->connecting))",
			"managed(receiveMessages(channels=[chat] groups=[], cursor=500/3))",
		}, DescribeAll(effects))
	})

	t.Run("from receive reconnecting", func(t *testing.T) {
		next, effects := apply(t, ReceiveReconnecting{Input: chatInput, Cursor: Cursor{Timetoken: 1}, Attempt: 4}, restored)
		assert.Equal(t, Receiving{Input: chatInput, Cursor: cursor}, next)
		assert.Equal(t, []string{
			"cancel(receiveReconnect)",
			"managed(receiveMessages(channels=[chat] groups=[], cursor=500/3))",
		}, DescribeAll(effects))
	})

	t.Run("zero cursor handshakes", func(t *testing.T) {
		next, _ := apply(t, Unsubscribed{}, SubscriptionRestored{Channels: []string{"chat"}})
		assert.Equal(t, Handshaking{Input: chatInput}, next)
	})
}

func TestTransition_AttemptCountsUpAndResets(t *testing.T) {
	var s State = Handshaking{Input: chatInput}

	s, _ = apply(t, s, HandshakeFailure{Input: chatInput, Err: errBoom})
	require.Equal(t, HandshakeReconnecting{Input: chatInput, Attempt: 0, Reason: errBoom}, s)

	for attempt := 0; attempt < 3; attempt++ {
		var effects []Effect
		s, effects = apply(t, s, HandshakeReconnectFailure{Input: chatInput, Attempt: attempt, Err: errBoom})
		require.Equal(t, attempt+1, s.(HandshakeReconnecting).Attempt)
		assert.Equal(t, []Effect{
			engine.Cancel[Invocation](IDHandshakeReconnect),
			engine.Managed[Invocation](HandshakeReconnect{Input: chatInput, Attempt: attempt + 1, Reason: errBoom}),
		}, effects)
	}

	cursor := Cursor{Timetoken: 42}
	s, effects := apply(t, s, HandshakeReconnectSuccess{Input: chatInput, Attempt: 3, Cursor: cursor})
	require.Equal(t, Receiving{Input: chatInput, Cursor: cursor}, s)
	assert.Equal(t, "cancel(handshakeReconnect)", Describe(effects[0]))

	s, _ = apply(t, s, ReceiveFailure{Input: chatInput, Request: cursor, Err: errBoom})
	assert.Equal(t, ReceiveReconnecting{Input: chatInput, Cursor: cursor, Attempt: 0, Reason: errBoom}, s)
}

func TestTransition_ReceiveSuccessLoops(t *testing.T) {
	from := Cursor{Timetoken: 10, Region: 1}
	to := Cursor{Timetoken: 20, Region: 1}
	messages := []Message{msg("chat", 15)}

	next, effects := apply(t, Receiving{Input: chatInput, Cursor: from},
		ReceiveSuccess{Input: chatInput, Request: from, Cursor: to, Messages: messages})

	assert.Equal(t, Receiving{Input: chatInput, Cursor: to}, next)
	assert.Equal(t, []Effect{
		engine.Cancel[Invocation](IDReceiveMessages),
		engine.Managed[Invocation](EmitMessages{Cursor: to, Messages: messages}),
		engine.Managed[Invocation](EmitStatus{Change: StatusChange{Old: StatusConnected, New: StatusConnected}}),
		engine.Managed[Invocation](ReceiveMessages{Input: chatInput, Cursor: to}),
	}, effects)
}

func TestTransition_EmptyReceiveSkipsEmitMessages(t *testing.T) {
	from := Cursor{Timetoken: 10}
	_, effects := apply(t, Receiving{Input: chatInput, Cursor: from},
		ReceiveSuccess{Input: chatInput, Request: from, Cursor: Cursor{Timetoken: 11}})

	assert.Equal(t, []string{
		"cancel(receiveMessages)",
		"managed(emitStatus(connected->connected))",
		"managed(receiveMessages(channels=[chat] groups=[], cursor=11/0))",
	}, DescribeAll(effects))
}

func TestTransition_ReceiveReconnectKeepsCursor(t *testing.T) {
	cursor := Cursor{Timetoken: 88, Region: 2}
	state := ReceiveReconnecting{Input: chatInput, Cursor: cursor, Attempt: 1, Reason: errBoom}

	next, effects := apply(t, state, ReceiveReconnectFailure{Input: chatInput, Request: cursor, Attempt: 1, Err: errBoom})
	assert.Equal(t, ReceiveReconnecting{Input: chatInput, Cursor: cursor, Attempt: 2, Reason: errBoom}, next)
	assert.Equal(t, []Effect{
		engine.Cancel[Invocation](IDReceiveReconnect),
		engine.Managed[Invocation](ReceiveReconnect{Input: chatInput, Cursor: cursor, Attempt: 2, Reason: errBoom}),
	}, effects)

	failed, effects := apply(t, next, ReceiveReconnectGiveUp{Input: chatInput, Request: cursor, Attempt: 2, Err: errBoom})
	assert.Equal(t, ReceiveFailed{Input: chatInput, Cursor: cursor, Err: errBoom}, failed)
	assert.Equal(t, []Effect{
		engine.Cancel[Invocation](IDReceiveReconnect),
		engine.Managed[Invocation](EmitStatus{Change: StatusChange{
			Old:   StatusConnected,
			New:   StatusDisconnectedUnexpectedly,
			Error: errBoom,
		}}),
	}, effects)
}

func TestTransition_DisconnectAndReconnect(t *testing.T) {
	cursor := Cursor{Timetoken: 3}

	stopped, effects := apply(t, Receiving{Input: chatInput, Cursor: cursor}, Disconnect{})
	assert.Equal(t, ReceiveStopped{Input: chatInput, Cursor: cursor}, stopped)
	assert.Equal(t, []string{
		"cancel(receiveMessages)",
		"managed(emitStatus(connected->disconnected))",
	}, DescribeAll(effects))

	resumed, effects := apply(t, stopped, Reconnect{})
	assert.Equal(t, Receiving{Input: chatInput, Cursor: cursor, Resuming: true}, resumed)
	assert.Equal(t, []string{
		"managed(emitStatus(disconnected->connecting))",
		"managed(receiveMessages(channels=[chat] groups=[], cursor=3/0))",
	}, DescribeAll(effects))

	confirmed, effects := apply(t, resumed, ReceiveSuccess{Input: chatInput, Request: cursor, Cursor: Cursor{Timetoken: 4}})
	assert.Equal(t, Receiving{Input: chatInput, Cursor: Cursor{Timetoken: 4}}, confirmed)
	assert.Equal(t, []string{
		"cancel(receiveMessages)",
		"managed(emitStatus(connecting->connected))",
		"managed(receiveMessages(channels=[chat] groups=[], cursor=4/0))",
	}, DescribeAll(effects))

	// A subscription change while resuming keeps waiting for the server.
	changed, effects := apply(t, resumed, SubscriptionChanged{Channels: []string{"chat", "news"}})
	assert.True(t, changed.(Receiving).Resuming)
	assert.NotContains(t, DescribeAll(effects), "managed(emitStatus(connecting->connected))")

	stopped, _ = apply(t, HandshakeReconnecting{Input: chatInput, Attempt: 2}, Disconnect{})
	assert.Equal(t, HandshakeStopped{Input: chatInput}, stopped)

	resumed, _ = apply(t, HandshakeFailed{Input: chatInput, Err: errBoom}, Reconnect{})
	assert.Equal(t, Handshaking{Input: chatInput}, resumed)
}

func TestTransition_UnsubscribeAll(t *testing.T) {
	next, effects := apply(t, HandshakeReconnecting{Input: chatInput, Attempt: 1}, UnsubscribeAll{})
	assert.Equal(t, Unsubscribed{}, next)
	assert.Equal(t, []string{
		"cancel(handshakeReconnect)",
		"managed(emitStatus(connecting->disconnected))",
	}, DescribeAll(effects))

	next, effects = apply(t, HandshakeFailed{Input: chatInput}, UnsubscribeAll{})
	assert.Equal(t, Unsubscribed{}, next)
	assert.Empty(t, effects, "already disconnected")
}

func TestTransition_RejectsInapplicableEvents(t *testing.T) {
	cursor := Cursor{Timetoken: 100}
	other := NewInput([]string{"other"}, nil)

	tests := []struct {
		name  string
		state State
		event Event
	}{
		{"receive result while unsubscribed", Unsubscribed{}, ReceiveSuccess{Input: chatInput, Request: cursor}},
		{"handshake result while receiving", Receiving{Input: chatInput, Cursor: cursor}, HandshakeSuccess{Input: chatInput}},
		{"handshake result for old input", Handshaking{Input: chatInput}, HandshakeSuccess{Input: other}},
		{"receive result for old cursor", Receiving{Input: chatInput, Cursor: cursor}, ReceiveSuccess{Input: chatInput, Request: Cursor{Timetoken: 99}}},
		{"receive failure for old input", Receiving{Input: chatInput, Cursor: cursor}, ReceiveFailure{Input: other, Request: cursor}},
		{"reconnect result for other attempt", HandshakeReconnecting{Input: chatInput, Attempt: 2}, HandshakeReconnectFailure{Input: chatInput, Attempt: 1}},
		{"receive give-up for other attempt", ReceiveReconnecting{Input: chatInput, Cursor: cursor, Attempt: 0}, ReceiveReconnectGiveUp{Input: chatInput, Request: cursor, Attempt: 3}},
		{"give-up while handshaking", Handshaking{Input: chatInput}, HandshakeReconnectGiveUp{Input: chatInput}},
		{"disconnect while unsubscribed", Unsubscribed{}, Disconnect{}},
		{"disconnect while stopped", ReceiveStopped{Input: chatInput}, Disconnect{}},
		{"reconnect while receiving", Receiving{Input: chatInput}, Reconnect{}},
		{"unsubscribe while unsubscribed", Unsubscribed{}, UnsubscribeAll{}},
		{"empty restore while unsubscribed", Unsubscribed{}, SubscriptionRestored{Cursor: cursor}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Transition{}.CanTransition(tt.state, tt.event))
		})
	}
}

func TestTransition_NonEmptyStatesCarryInput(t *testing.T) {
	// Walk every event from every reachable state and check the resulting
	// state keeps a non-empty input unless it is Unsubscribed.
	cursor := Cursor{Timetoken: 1}
	states := []State{
		Unsubscribed{},
		Handshaking{Input: chatInput},
		HandshakeStopped{Input: chatInput},
		HandshakeFailed{Input: chatInput, Err: errBoom},
		HandshakeReconnecting{Input: chatInput},
		Receiving{Input: chatInput, Cursor: cursor},
		ReceiveStopped{Input: chatInput, Cursor: cursor},
		ReceiveFailed{Input: chatInput, Cursor: cursor, Err: errBoom},
		ReceiveReconnecting{Input: chatInput, Cursor: cursor},
	}
	events := []Event{
		SubscriptionChanged{Channels: []string{"a"}},
		SubscriptionChanged{},
		SubscriptionRestored{Channels: []string{"a"}, Cursor: Cursor{Timetoken: 7}},
		HandshakeSuccess{Input: chatInput, Cursor: cursor},
		HandshakeFailure{Input: chatInput, Err: errBoom},
		HandshakeReconnectSuccess{Input: chatInput, Cursor: cursor},
		HandshakeReconnectFailure{Input: chatInput, Err: errBoom},
		HandshakeReconnectGiveUp{Input: chatInput, Err: errBoom},
		ReceiveSuccess{Input: chatInput, Request: cursor, Cursor: Cursor{Timetoken: 2}},
		ReceiveFailure{Input: chatInput, Request: cursor, Err: errBoom},
		ReceiveReconnectSuccess{Input: chatInput, Request: cursor, Cursor: Cursor{Timetoken: 2}},
		ReceiveReconnectFailure{Input: chatInput, Request: cursor, Err: errBoom},
		ReceiveReconnectGiveUp{Input: chatInput, Request: cursor, Err: errBoom},
		Disconnect{},
		Reconnect{},
		UnsubscribeAll{},
	}

	for _, s := range states {
		for _, e := range events {
			if !(Transition{}).CanTransition(s, e) {
				continue
			}
			next, effects := Transition{}.Transition(s, e)
			if _, ok := next.(Unsubscribed); !ok {
				assert.False(t, next.Subscription().IsEmpty(), "%s + %s -> %s", s, e, next)
			}
			assertCancelBeforeManaged(t, effects)
		}
	}
}

// assertCancelBeforeManaged checks that no identity is started twice in one
// list and that a cancel for an identity precedes its managed start.
func assertCancelBeforeManaged(t *testing.T, effects []Effect) {
	t.Helper()
	started := map[string]bool{}
	for _, e := range effects {
		switch e.Kind {
		case engine.EffectManaged:
			assert.False(t, started[e.ID], "identity %s started twice", e.ID)
			started[e.ID] = true
		case engine.EffectCancel:
			assert.False(t, started[e.ID], "cancel of %s after its start", e.ID)
		}
	}
}
