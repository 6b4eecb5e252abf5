package subscribe

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Listener receives message batches and status events. Both methods are
// called synchronously on the engine goroutine and must not block for long.
// A listener may call back into the client, including Close.
type Listener interface {
	OnMessages(batch MessageBatch)
	OnStatus(status StatusEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Messages func(MessageBatch)
	Status   func(StatusEvent)
}

// OnMessages implements Listener.
func (f ListenerFuncs) OnMessages(batch MessageBatch) {
	if f.Messages != nil {
		f.Messages(batch)
	}
}

// OnStatus implements Listener.
func (f ListenerFuncs) OnStatus(status StatusEvent) {
	if f.Status != nil {
		f.Status(status)
	}
}

// Listeners is the registry emit effects fan out to. Every registered
// listener receives every emission, in registration order.
type Listeners struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries []listenerEntry
	nextID  uint64

	// emitting counts emissions in progress on the engine goroutine.
	emitting atomic.Int32
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// NewListeners creates an empty registry. A nil logger means slog.Default().
func NewListeners(logger *slog.Logger) *Listeners {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listeners{logger: logger}
}

// Add registers l and returns a function that removes it.
func (r *Listeners) Add(l Listener) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, listenerEntry{id: id, listener: l})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e.id == id {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered listeners.
func (r *Listeners) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Emitting reports whether listeners are being called right now. Emissions
// run on the engine goroutine, so a true result seen from inside a listener
// means the caller is on that goroutine.
func (r *Listeners) Emitting() bool {
	return r.emitting.Load() > 0
}

// EmitMessages delivers batch to every listener.
func (r *Listeners) EmitMessages(batch MessageBatch) {
	r.emitting.Add(1)
	defer r.emitting.Add(-1)
	for _, l := range r.snapshot() {
		r.call(func() { l.OnMessages(batch) })
	}
}

// EmitStatus delivers status to every listener.
func (r *Listeners) EmitStatus(status StatusEvent) {
	r.emitting.Add(1)
	defer r.emitting.Add(-1)
	for _, l := range r.snapshot() {
		r.call(func() { l.OnStatus(status) })
	}
}

func (r *Listeners) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Listener, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.listener
	}
	return out
}

// call isolates the engine goroutine from a panicking listener.
func (r *Listeners) call(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("listener panicked", "panic", p)
		}
	}()
	fn()
}
