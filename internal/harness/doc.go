// Package harness runs YAML scenarios against the subscribe state table.
//
// A scenario starts from an initial state, feeds a list of events through
// subscribe.Transition and records one trace step per event. Effects are
// never executed: the trace is the invocation list the engine would
// dispatch, which makes every run deterministic and suitable for golden
// snapshot comparison.
//
// # Scenario Format
//
//	name: receive_reconnect
//	description: "Receive failures retry at the last good cursor"
//	initial:
//	  state: Receiving
//	  channels: [chat]
//	  cursor: "100/1"
//	steps:
//	  - event: receiveFailure
//	    reason: timeout
//	    expect:
//	      state: ReceiveReconnecting
//	      invocations:
//	        - cancel(receiveMessages)
//	        - managed(receiveReconnect(cursor=100/1, attempt=0))
//	assertions:
//	  - type: trace_count
//	    invocation: managed:receiveReconnect
//	    count: 1
//	  - type: final_state
//	    state: ReceiveReconnecting
//	    cursor: "100/1"
//
// Effect events default their origin (input, request cursor and attempt) to
// the current state, so a step only names what differs. Naming channels on
// an effect event makes it a result for that input, which is how stale
// results are modelled.
//
// # Assertion Types
//
//   - trace_contains: an invocation appears in the trace
//   - trace_order: invocations appear in the given order
//   - trace_count: an invocation appears exactly N times
//   - final_state: the last state has the given name, cursor or status
//
// Invocations are matched either by their full description
// ("managed(receiveMessages(channels=[chat] groups=[], cursor=1/0))") or by
// kind and identity ("managed:receiveMessages", "cancel:handshakeRequest").
//
// # Properties
//
// Every run is also checked against the table's structural properties:
// rejected events change nothing, cancels precede starts of the same
// identity, and reconnect attempts count up from zero.
package harness
