package engine

import (
	"context"
	"fmt"
)

// Invocation is a unit of asynchronous work requested by a transition.
//
// Identity must be stable across instances of the same operation: two
// invocations with the same identity are the same logical effect, and a
// cancel refers to whichever one is pending.
type Invocation interface {
	Identity() string
}

// EffectKind distinguishes starting an effect from stopping one.
type EffectKind int

const (
	// EffectManaged starts the invocation (or supersedes a pending one with
	// the same identity).
	EffectManaged EffectKind = iota + 1
	// EffectCancel stops the pending effect with the given identity.
	EffectCancel
)

// String returns the lower-case name of the kind.
func (k EffectKind) String() string {
	switch k {
	case EffectManaged:
		return "managed"
	case EffectCancel:
		return "cancel"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// EffectInvocation is a tagged value: either managed(invocation) or
// cancel(identity).
type EffectInvocation[I Invocation] struct {
	Kind EffectKind

	// Invocation is set for EffectManaged only.
	Invocation I

	// ID is the target identity. For EffectManaged it equals
	// Invocation.Identity().
	ID string
}

// Managed wraps inv as a start request.
func Managed[I Invocation](inv I) EffectInvocation[I] {
	return EffectInvocation[I]{
		Kind:       EffectManaged,
		Invocation: inv,
		ID:         inv.Identity(),
	}
}

// Cancel builds a stop request for the pending effect with identity id.
func Cancel[I Invocation](id string) EffectInvocation[I] {
	return EffectInvocation[I]{
		Kind: EffectCancel,
		ID:   id,
	}
}

// String renders the invocation as "managed(id)" or "cancel(id)".
func (e EffectInvocation[I]) String() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.ID)
}

// EffectHandler performs one effect and returns the events it produced.
//
// Run must return promptly once ctx is cancelled. A handler that notices the
// cancellation returns nil; one that already finished its work may return its
// events anyway.
type EffectHandler[E any] interface {
	Run(ctx context.Context) []E
}

// InlineEffectHandler marks a handler that must run on the dispatching
// goroutine instead of its own.
type InlineEffectHandler interface {
	Inline()
}

// EffectHandlerFactory builds the handler for an invocation. An error means
// the invocation is unknown to the factory, which is a programming error.
type EffectHandlerFactory[I Invocation, E any] interface {
	Handler(inv I) (EffectHandler[E], error)
}

// Transition is the pure state table driving an Engine.
//
// Implementations must not perform I/O. CanTransition reports whether event
// applies to state at all; Transition is only called when it does.
type Transition[S any, E any, I Invocation] interface {
	CanTransition(state S, event E) bool
	Transition(state S, event E) (S, []EffectInvocation[I])
}
