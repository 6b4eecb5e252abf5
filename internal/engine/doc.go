// Package engine implements a generic finite-state-machine runtime.
//
// An Engine holds exactly one current state. Events are submitted with Send
// and applied one at a time by the Run loop; for each event the Transition
// decides whether it applies (CanTransition) and, if so, what the next state
// is and which effect invocations must be started or cancelled. Invocations
// are handed to a Dispatcher, which runs effects asynchronously and feeds the
// events they produce back through Send.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All state mutation happens in the Run goroutine. Effects run concurrently
// with each other and with the loop, but their results re-enter through the
// same FIFO queue as external events. A Transition therefore never observes
// concurrent mutation of the state it is given.
//
// Effect Identity:
// Every invocation has a stable identity. The dispatcher keeps at most one
// pending effect per identity; a cancel invocation stops the pending effect
// with that identity. Cancellation is cooperative: effects observe their
// context at suspension points, and an effect that finishes its work before
// noticing the cancel still reports its events. Transitions are expected to
// reject such late events with CanTransition.
//
// Inline Effects:
// Handlers that implement InlineEffectHandler run on the dispatching goroutine
// and complete before Dispatch returns. This serialises sinks (listener
// fan-out) in invocation order without extra locking.
package engine
