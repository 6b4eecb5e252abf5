package subscribe

import "github.com/roach88/longpoll/internal/engine"

// Transition is the subscribe state table. It is pure: it never performs
// I/O and never mutates its arguments.
//
// The invocation list of every accepted event is
//
//	exit(old) ++ emits ++ entry(new)
//
// where exit cancels the effect owned by the old state and entry starts the
// one owned by the new state. A state that supersedes itself (Receiving to
// Receiving) therefore always cancels before it starts.
type Transition struct{}

var _ engine.Transition[State, Event, Invocation] = Transition{}

// CanTransition reports whether event applies to state.
func (Transition) CanTransition(state State, event Event) bool {
	switch e := event.(type) {
	case SubscriptionChanged:
		return !isUnsubscribed(state) || !NewInput(e.Channels, e.Groups).IsEmpty()
	case SubscriptionRestored:
		return !isUnsubscribed(state) || !NewInput(e.Channels, e.Groups).IsEmpty()

	case HandshakeSuccess:
		st, ok := state.(Handshaking)
		return ok && st.Input.Equal(e.Input)
	case HandshakeFailure:
		st, ok := state.(Handshaking)
		return ok && st.Input.Equal(e.Input)
	case HandshakeReconnectSuccess:
		return handshakeAttemptMatches(state, e.Input, e.Attempt)
	case HandshakeReconnectFailure:
		return handshakeAttemptMatches(state, e.Input, e.Attempt)
	case HandshakeReconnectGiveUp:
		return handshakeAttemptMatches(state, e.Input, e.Attempt)

	case ReceiveSuccess:
		st, ok := state.(Receiving)
		return ok && st.Input.Equal(e.Input) && st.Cursor == e.Request
	case ReceiveFailure:
		st, ok := state.(Receiving)
		return ok && st.Input.Equal(e.Input) && st.Cursor == e.Request
	case ReceiveReconnectSuccess:
		return receiveAttemptMatches(state, e.Input, e.Request, e.Attempt)
	case ReceiveReconnectFailure:
		return receiveAttemptMatches(state, e.Input, e.Request, e.Attempt)
	case ReceiveReconnectGiveUp:
		return receiveAttemptMatches(state, e.Input, e.Request, e.Attempt)

	case Disconnect:
		switch state.(type) {
		case Handshaking, HandshakeReconnecting, Receiving, ReceiveReconnecting:
			return true
		}
		return false
	case Reconnect:
		switch state.(type) {
		case HandshakeStopped, HandshakeFailed, ReceiveStopped, ReceiveFailed:
			return true
		}
		return false
	case UnsubscribeAll:
		return !isUnsubscribed(state)
	}
	return false
}

func isUnsubscribed(s State) bool {
	_, ok := s.(Unsubscribed)
	return ok
}

func handshakeAttemptMatches(s State, input Input, attempt int) bool {
	st, ok := s.(HandshakeReconnecting)
	return ok && st.Input.Equal(input) && st.Attempt == attempt
}

func receiveAttemptMatches(s State, input Input, request Cursor, attempt int) bool {
	st, ok := s.(ReceiveReconnecting)
	return ok && st.Input.Equal(input) && st.Cursor == request && st.Attempt == attempt
}

// Transition computes the next state and its invocations. It must only be
// called when CanTransition returned true.
func (t Transition) Transition(state State, event Event) (State, []Effect) {
	next, emits := t.next(state, event)

	effects := make([]Effect, 0, len(emits)+2)
	if exit, ok := exitEffect(state); ok {
		effects = append(effects, exit)
	}
	effects = append(effects, emits...)
	if entry, ok := entryEffect(next); ok {
		effects = append(effects, entry)
	}
	return next, effects
}

func (t Transition) next(state State, event Event) (State, []Effect) {
	switch e := event.(type) {
	case SubscriptionChanged:
		return t.subscriptionChanged(state, NewInput(e.Channels, e.Groups))

	case SubscriptionRestored:
		input := NewInput(e.Channels, e.Groups)
		if input.IsEmpty() {
			return t.unsubscribe(state)
		}
		if e.Cursor.IsZero() {
			return t.subscriptionChanged(state, input)
		}
		next := resume(state, input, e.Cursor)
		return next, statusIfChanged(state, next, nil)

	case HandshakeSuccess:
		return t.connected(state, e.Cursor)
	case HandshakeReconnectSuccess:
		return t.connected(state, e.Cursor)

	case HandshakeFailure:
		return HandshakeReconnecting{Input: state.Subscription(), Attempt: 0, Reason: e.Err}, nil
	case HandshakeReconnectFailure:
		st := state.(HandshakeReconnecting)
		return HandshakeReconnecting{Input: st.Input, Attempt: st.Attempt + 1, Reason: e.Err}, nil
	case HandshakeReconnectGiveUp:
		next := HandshakeFailed{Input: state.Subscription(), Err: e.Err}
		return next, []Effect{emitStatus(state.ConnectionStatus(), next.ConnectionStatus(), e.Err)}

	case ReceiveSuccess:
		return t.received(state, e.Cursor, e.Messages)
	case ReceiveReconnectSuccess:
		return t.received(state, e.Cursor, e.Messages)

	case ReceiveFailure:
		st := state.(Receiving)
		return ReceiveReconnecting{Input: st.Input, Cursor: st.Cursor, Attempt: 0, Reason: e.Err}, nil
	case ReceiveReconnectFailure:
		st := state.(ReceiveReconnecting)
		return ReceiveReconnecting{Input: st.Input, Cursor: st.Cursor, Attempt: st.Attempt + 1, Reason: e.Err}, nil
	case ReceiveReconnectGiveUp:
		st := state.(ReceiveReconnecting)
		next := ReceiveFailed{Input: st.Input, Cursor: st.Cursor, Err: e.Err}
		return next, []Effect{emitStatus(state.ConnectionStatus(), next.ConnectionStatus(), e.Err)}

	case Disconnect:
		var next State
		switch st := state.(type) {
		case Handshaking:
			next = HandshakeStopped{Input: st.Input}
		case HandshakeReconnecting:
			next = HandshakeStopped{Input: st.Input}
		case Receiving:
			next = ReceiveStopped{Input: st.Input, Cursor: st.Cursor}
		case ReceiveReconnecting:
			next = ReceiveStopped{Input: st.Input, Cursor: st.Cursor}
		}
		return next, statusIfChanged(state, next, nil)

	case Reconnect:
		var next State
		switch st := state.(type) {
		case HandshakeStopped:
			next = Handshaking{Input: st.Input}
		case HandshakeFailed:
			next = Handshaking{Input: st.Input}
		case ReceiveStopped:
			next = resume(state, st.Input, st.Cursor)
		case ReceiveFailed:
			next = resume(state, st.Input, st.Cursor)
		}
		return next, statusIfChanged(state, next, nil)

	case UnsubscribeAll:
		return t.unsubscribe(state)
	}
	return state, nil
}

func (t Transition) subscriptionChanged(state State, input Input) (State, []Effect) {
	if input.IsEmpty() {
		return t.unsubscribe(state)
	}

	var next State = Handshaking{Input: input}
	if cursor, ok := StateCursor(state); ok {
		next = resume(state, input, cursor)
	}
	return next, statusIfChanged(state, next, nil)
}

// resume re-arms the receive loop at cursor. Only a state that is already
// connected stays connected; anything else waits for the server to answer.
func resume(state State, input Input, cursor Cursor) Receiving {
	return Receiving{
		Input:    input,
		Cursor:   cursor,
		Resuming: state.ConnectionStatus() != StatusConnected,
	}
}

func (t Transition) unsubscribe(state State) (State, []Effect) {
	next := Unsubscribed{}
	return next, statusIfChanged(state, next, nil)
}

func (t Transition) connected(state State, cursor Cursor) (State, []Effect) {
	next := Receiving{Input: state.Subscription(), Cursor: cursor}
	return next, []Effect{emitStatus(state.ConnectionStatus(), StatusConnected, nil)}
}

func (t Transition) received(state State, cursor Cursor, messages []Message) (State, []Effect) {
	next := Receiving{Input: state.Subscription(), Cursor: cursor}

	var emits []Effect
	if len(messages) > 0 {
		emits = append(emits, engine.Managed[Invocation](EmitMessages{Cursor: cursor, Messages: messages}))
	}
	emits = append(emits, emitStatus(state.ConnectionStatus(), StatusConnected, nil))
	return next, emits
}

func emitStatus(from, to ConnectionStatus, err error) Effect {
	return engine.Managed[Invocation](EmitStatus{Change: StatusChange{Old: from, New: to, Error: err}})
}

func statusIfChanged(old, next State, err error) []Effect {
	if old.ConnectionStatus() == next.ConnectionStatus() {
		return nil
	}
	return []Effect{emitStatus(old.ConnectionStatus(), next.ConnectionStatus(), err)}
}

func exitEffect(s State) (Effect, bool) {
	switch s.(type) {
	case Handshaking:
		return engine.Cancel[Invocation](IDHandshakeRequest), true
	case HandshakeReconnecting:
		return engine.Cancel[Invocation](IDHandshakeReconnect), true
	case Receiving:
		return engine.Cancel[Invocation](IDReceiveMessages), true
	case ReceiveReconnecting:
		return engine.Cancel[Invocation](IDReceiveReconnect), true
	}
	return Effect{}, false
}

func entryEffect(s State) (Effect, bool) {
	switch st := s.(type) {
	case Handshaking:
		return engine.Managed[Invocation](HandshakeRequest{Input: st.Input}), true
	case HandshakeReconnecting:
		return engine.Managed[Invocation](HandshakeReconnect{Input: st.Input, Attempt: st.Attempt, Reason: st.Reason}), true
	case Receiving:
		return engine.Managed[Invocation](ReceiveMessages{Input: st.Input, Cursor: st.Cursor}), true
	case ReceiveReconnecting:
		return engine.Managed[Invocation](ReceiveReconnect{Input: st.Input, Cursor: st.Cursor, Attempt: st.Attempt, Reason: st.Reason}), true
	}
	return Effect{}, false
}
