package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Step describes one processed event.
type Step[S any, E any, I Invocation] struct {
	Seq         int64
	From        S
	Event       E
	To          S
	Invocations []EffectInvocation[I]

	// Accepted is false when CanTransition rejected the event; To then
	// equals From and Invocations is empty.
	Accepted bool
}

// Engine is the single-writer state machine event loop.
//
// Thread-safety model:
//   - Send, State, Observe, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// INVARIANTS:
//   - state is replaced, never mutated, and only by the Run goroutine
//   - exactly one (state, event) step executes at a time
//   - effect results re-enter through Send, sharing the external event order
type Engine[S any, E any, I Invocation] struct {
	transition Transition[S, E, I]
	dispatcher *Dispatcher[I, E]
	queue      *eventQueue[E]
	clock      *Clock
	logger     *slog.Logger

	mu        sync.RWMutex
	state     S
	observers []func(Step[S, E, I])
}

// EngineOption configures optional engine parameters.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
	clock  *Clock
}

// WithLogger sets the logger used for step and lifecycle logging.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithClock sets the step clock. Used to resume numbering, or by tests.
func WithClock(c *Clock) EngineOption {
	return func(o *engineOptions) {
		o.clock = c
	}
}

// New creates an engine in the initial state. The engine does nothing until
// Run is called.
func New[S any, E any, I Invocation](
	initial S,
	transition Transition[S, E, I],
	dispatcher *Dispatcher[I, E],
	opts ...EngineOption,
) *Engine[S, E, I] {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = NewClock()
	}

	return &Engine[S, E, I]{
		transition: transition,
		dispatcher: dispatcher,
		queue:      newEventQueue[E](),
		clock:      o.clock,
		logger:     o.logger,
		state:      initial,
	}
}

// Send submits an event for processing by the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine[S, E, I]) Send(event E) bool {
	return e.queue.Enqueue(event)
}

// OnAnyInvocationCompleted feeds effect results back into the queue.
// Implements CompletionListener.
func (e *Engine[S, E, I]) OnAnyInvocationCompleted(events []E) {
	for _, ev := range events {
		if !e.Send(ev) {
			e.logger.Debug("dropping effect event after stop", "event", ev)
		}
	}
}

// State returns the current state.
func (e *Engine[S, E, I]) State() S {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Observe registers fn to be called after every processed step, on the Run
// goroutine and before the step's invocations are dispatched.
func (e *Engine[S, E, I]) Observe(fn func(Step[S, E, I])) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Dispatcher returns the dispatcher executing this engine's effects.
func (e *Engine[S, E, I]) Dispatcher() *Dispatcher[I, E] {
	return e.dispatcher
}

// QueueLen returns the number of events waiting to be processed.
func (e *Engine[S, E, I]) QueueLen() int {
	return e.queue.Len()
}

// Run processes events until ctx is cancelled or Stop is called. On return
// every pending effect has been cancelled and has exited.
func (e *Engine[S, E, I]) Run(ctx context.Context) error {
	if e.queue.Closed() {
		return ErrEngineStopped
	}

	e.logger.Info("engine starting")
	defer e.shutdown()

	for {
		if event, ok := e.queue.TryDequeue(); ok {
			e.process(event)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Stop, which also drops queued
			// events, so an empty closed queue means we are done.
			if e.queue.Closed() {
				e.logger.Info("engine stopping: stopped")
				return nil
			}
		}
	}
}

// Stop rejects further events and makes Run return. Pending effects are
// cancelled by Run on its way out; no further events are produced.
func (e *Engine[S, E, I]) Stop() {
	e.queue.Close()
	e.dispatcher.Close()
}

func (e *Engine[S, E, I]) shutdown() {
	e.queue.Close()
	e.dispatcher.Close()
	e.dispatcher.Wait()
}

// process applies one event. Called only from Run.
func (e *Engine[S, E, I]) process(event E) {
	seq := e.clock.Next()
	current := e.State()

	if !e.transition.CanTransition(current, event) {
		e.logger.Debug("event rejected",
			"seq", seq,
			"state", current,
			"event", event,
		)
		e.notify(Step[S, E, I]{Seq: seq, From: current, Event: event, To: current})
		return
	}

	next, invocations := e.transition.Transition(current, event)

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()

	e.logger.Debug("transition",
		"seq", seq,
		"from", current,
		"event", event,
		"to", next,
		"invocations", len(invocations),
	)

	e.notify(Step[S, E, I]{
		Seq:         seq,
		From:        current,
		Event:       event,
		To:          next,
		Invocations: invocations,
		Accepted:    true,
	})

	e.dispatcher.Dispatch(invocations, e)
}

func (e *Engine[S, E, I]) notify(step Step[S, E, I]) {
	e.mu.RLock()
	observers := append([]func(Step[S, E, I]){}, e.observers...)
	e.mu.RUnlock()

	for _, fn := range observers {
		fn(step)
	}
}
