package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CompletionListener receives the events produced by each finished effect.
// OnAnyInvocationCompleted is called exactly once per started effect, possibly
// with no events.
type CompletionListener[E any] interface {
	OnAnyInvocationCompleted(events []E)
}

// Dispatcher starts and cancels effects and tracks which are pending.
//
// Thread-safety model:
//   - Dispatch, HasPendingInvocation, Close: safe from any goroutine
//   - the pending registry is guarded by a single mutex; start, cancel and
//     completion bookkeeping are atomic with respect to each other
//
// INVARIANTS:
//   - at most one pending effect per identity
//   - a completing effect only removes its own registry entry, never one that
//     superseded it
type Dispatcher[I Invocation, E any] struct {
	factory EffectHandlerFactory[I, E]
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingEffect
	tokens  uint64
	closed  bool

	group errgroup.Group
}

type pendingEffect struct {
	token  uint64
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher resolving handlers through factory.
// A nil logger means slog.Default().
func NewDispatcher[I Invocation, E any](factory EffectHandlerFactory[I, E], logger *slog.Logger) *Dispatcher[I, E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher[I, E]{
		factory: factory,
		logger:  logger,
		pending: make(map[string]*pendingEffect),
	}
}

// Dispatch processes invocations in order. Cancels take effect immediately;
// managed invocations are started asynchronously unless their handler is
// inline. Completion of every started effect is reported to listener.
func (d *Dispatcher[I, E]) Dispatch(invocations []EffectInvocation[I], listener CompletionListener[E]) {
	for _, inv := range invocations {
		switch inv.Kind {
		case EffectManaged:
			d.start(inv, listener)
		case EffectCancel:
			d.cancel(inv.ID)
		default:
			d.logger.Warn("ignoring effect invocation with unknown kind",
				"invocation", inv.ID,
				"kind", inv.Kind,
			)
		}
	}
}

func (d *Dispatcher[I, E]) start(inv EffectInvocation[I], listener CompletionListener[E]) {
	handler, err := d.factory.Handler(inv.Invocation)
	if err != nil {
		d.logger.Error("effect not started",
			"invocation", inv.ID,
			"error", NewUnknownInvocationError(inv.ID, err),
		)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		cancel()
		return
	}
	if prev, ok := d.pending[inv.ID]; ok {
		d.logger.Debug("superseding pending effect", "invocation", inv.ID)
		prev.cancel()
	}
	d.tokens++
	token := d.tokens
	d.pending[inv.ID] = &pendingEffect{token: token, cancel: cancel}

	run := func() {
		events := handler.Run(ctx)
		if d.finish(inv.ID, token) && listener != nil {
			listener.OnAnyInvocationCompleted(events)
		}
		cancel()
	}

	_, inline := handler.(InlineEffectHandler)
	if !inline {
		// Spawned under the lock so Close cannot start waiting in between.
		d.group.Go(func() error {
			run()
			return nil
		})
	}
	d.mu.Unlock()

	d.logger.Debug("effect started", "invocation", inv.ID, "inline", inline)

	if inline {
		run()
	}
}

// finish drops the registry entry for (id, token) if it is still current.
// Returns false once the dispatcher is closed, suppressing further events.
func (d *Dispatcher[I, E]) finish(id string, token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[id]; ok && p.token == token {
		delete(d.pending, id)
	}
	return !d.closed
}

func (d *Dispatcher[I, E]) cancel(id string) {
	d.mu.Lock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if ok {
		p.cancel()
		d.logger.Debug("effect cancelled", "invocation", id)
	}
}

// HasPendingInvocation reports whether an effect with identity id is running.
func (d *Dispatcher[I, E]) HasPendingInvocation(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	return ok
}

// PendingCount returns the number of running effects.
func (d *Dispatcher[I, E]) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close cancels every pending effect and stops accepting new ones. Effects
// that complete afterwards are not reported. Safe to call more than once.
func (d *Dispatcher[I, E]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pending := d.pending
	d.pending = make(map[string]*pendingEffect)
	d.mu.Unlock()

	for id, p := range pending {
		p.cancel()
		d.logger.Debug("effect cancelled on close", "invocation", id)
	}
}

// Wait blocks until every asynchronous effect has returned.
func (d *Dispatcher[I, E]) Wait() {
	_ = d.group.Wait()
}
