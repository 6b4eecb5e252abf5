package subscribe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/longpoll/internal/engine"
	"github.com/roach88/longpoll/internal/retry"
)

// DefaultMaxMessageCount is the largest batch emitMessages delivers when no
// maximum is configured.
const DefaultMaxMessageCount = 100

// Dependencies are the collaborators subscribe effects run against.
type Dependencies struct {
	Transport Transport

	// Clock times reconnect backoff. Defaults to RealClock.
	Clock Clock

	// Policy drives reconnects. A zero Policy means retry.Default().
	Policy    retry.Policy
	Listeners *Listeners

	// Cache deduplicates delivered messages. Defaults to a cache of
	// DefaultCacheCapacity.
	Cache *MessageCache

	// MaxMessageCount rejects larger batches. Zero means
	// DefaultMaxMessageCount; negative disables the check.
	MaxMessageCount int

	Logger *slog.Logger
}

// EffectFactory builds the handler for each subscribe invocation.
type EffectFactory struct {
	transport Transport
	clock     Clock
	policy    retry.Policy
	listeners *Listeners
	cache     *MessageCache
	maxCount  int
	logger    *slog.Logger
}

var _ engine.EffectHandlerFactory[Invocation, Event] = (*EffectFactory)(nil)

// NewEffectFactory fills in defaults for unset dependencies.
func NewEffectFactory(deps Dependencies) *EffectFactory {
	f := &EffectFactory{
		transport: deps.Transport,
		clock:     deps.Clock,
		policy:    deps.Policy,
		listeners: deps.Listeners,
		cache:     deps.Cache,
		maxCount:  deps.MaxMessageCount,
		logger:    deps.Logger,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.clock == nil {
		f.clock = RealClock{}
	}
	if f.listeners == nil {
		f.listeners = NewListeners(f.logger)
	}
	if f.cache == nil {
		f.cache = NewMessageCache(DefaultCacheCapacity)
	}
	if f.policy.Kind == "" {
		f.policy = retry.Default()
	}
	if f.maxCount == 0 {
		f.maxCount = DefaultMaxMessageCount
	}
	return f
}

// Listeners returns the registry emit effects deliver to.
func (f *EffectFactory) Listeners() *Listeners {
	return f.listeners
}

// Cache returns the dedup cache.
func (f *EffectFactory) Cache() *MessageCache {
	return f.cache
}

// Handler implements engine.EffectHandlerFactory.
func (f *EffectFactory) Handler(inv Invocation) (engine.EffectHandler[Event], error) {
	switch i := inv.(type) {
	case HandshakeRequest:
		return &handshakeEffect{f: f, inv: i}, nil
	case ReceiveMessages:
		return &receiveEffect{f: f, inv: i}, nil
	case HandshakeReconnect:
		return &handshakeReconnectEffect{f: f, inv: i}, nil
	case ReceiveReconnect:
		return &receiveReconnectEffect{f: f, inv: i}, nil
	case EmitMessages:
		return &emitMessagesEffect{f: f, inv: i}, nil
	case EmitStatus:
		return &emitStatusEffect{f: f, inv: i}, nil
	}
	id := "<nil>"
	if inv != nil {
		id = inv.Identity()
	}
	return nil, engine.NewUnknownInvocationError(id, fmt.Errorf("no subscribe handler for %T", inv))
}

// call performs one subscribe request. ok is false when the request was
// cancelled, in which case the effect produces no events.
func (f *EffectFactory) call(ctx context.Context, req Request) (resp Response, err *Error, ok bool) {
	if f.transport == nil {
		return Response{}, NewError(ReasonUnsupported, fmt.Errorf("no transport configured")), true
	}

	r, callErr := f.transport.Subscribe(ctx, req)
	if callErr == nil {
		return r, nil, true
	}
	if ctx.Err() != nil || IsCancelled(callErr) {
		return Response{}, nil, false
	}

	se := AsError(callErr)
	f.logger.Debug("subscribe request failed",
		"handshake", req.IsHandshake(),
		"cursor", req.Cursor,
		"reason", se.Reason,
		"error", callErr,
	)
	return Response{}, se, true
}

// backoff waits before a reconnect attempt. It returns false if ctx was
// cancelled first.
func (f *EffectFactory) backoff(ctx context.Context, attempt int) bool {
	d := f.policy.Backoff(attempt)
	f.logger.Debug("reconnect backoff", "attempt", attempt, "delay", d, "policy", f.policy)
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-f.clock.After(d):
		return true
	}
}

// giveUp reports whether a reconnect should stop before waiting.
func (f *EffectFactory) giveUp(attempt int, reason error) bool {
	return f.policy.Exhausted(attempt) || !f.policy.Retryable(reason)
}

type handshakeEffect struct {
	f   *EffectFactory
	inv HandshakeRequest
}

func (h *handshakeEffect) Run(ctx context.Context) []Event {
	resp, err, ok := h.f.call(ctx, Request{Input: h.inv.Input})
	switch {
	case !ok:
		return nil
	case err != nil:
		return []Event{HandshakeFailure{Input: h.inv.Input, Err: err}}
	}
	return []Event{HandshakeSuccess{Input: h.inv.Input, Cursor: resp.Cursor}}
}

type receiveEffect struct {
	f   *EffectFactory
	inv ReceiveMessages
}

func (h *receiveEffect) Run(ctx context.Context) []Event {
	in, cur := h.inv.Input, h.inv.Cursor
	resp, err, ok := h.f.call(ctx, Request{Input: in, Cursor: cur})
	switch {
	case !ok:
		return nil
	case err != nil:
		return []Event{ReceiveFailure{Input: in, Request: cur, Err: err}}
	}
	return []Event{ReceiveSuccess{Input: in, Request: cur, Cursor: resp.Cursor, Messages: resp.Messages}}
}

type handshakeReconnectEffect struct {
	f   *EffectFactory
	inv HandshakeReconnect
}

func (h *handshakeReconnectEffect) Run(ctx context.Context) []Event {
	in, attempt := h.inv.Input, h.inv.Attempt
	if h.f.giveUp(attempt, h.inv.Reason) {
		return []Event{HandshakeReconnectGiveUp{Input: in, Attempt: attempt, Err: h.inv.Reason}}
	}
	if !h.f.backoff(ctx, attempt) {
		return nil
	}

	resp, err, ok := h.f.call(ctx, Request{Input: in})
	switch {
	case !ok:
		return nil
	case err != nil:
		return []Event{HandshakeReconnectFailure{Input: in, Attempt: attempt, Err: err}}
	}
	return []Event{HandshakeReconnectSuccess{Input: in, Attempt: attempt, Cursor: resp.Cursor}}
}

type receiveReconnectEffect struct {
	f   *EffectFactory
	inv ReceiveReconnect
}

func (h *receiveReconnectEffect) Run(ctx context.Context) []Event {
	in, cur, attempt := h.inv.Input, h.inv.Cursor, h.inv.Attempt
	if h.f.giveUp(attempt, h.inv.Reason) {
		return []Event{ReceiveReconnectGiveUp{Input: in, Request: cur, Attempt: attempt, Err: h.inv.Reason}}
	}
	if !h.f.backoff(ctx, attempt) {
		return nil
	}

	resp, err, ok := h.f.call(ctx, Request{Input: in, Cursor: cur})
	switch {
	case !ok:
		return nil
	case err != nil:
		return []Event{ReceiveReconnectFailure{Input: in, Request: cur, Attempt: attempt, Err: err}}
	}
	return []Event{ReceiveReconnectSuccess{
		Input:    in,
		Request:  cur,
		Attempt:  attempt,
		Cursor:   resp.Cursor,
		Messages: resp.Messages,
	}}
}

// emitMessagesEffect runs inline so the cache sees batches one at a time
// and listeners observe them in engine order.
type emitMessagesEffect struct {
	f   *EffectFactory
	inv EmitMessages
}

func (*emitMessagesEffect) Inline() {}

func (h *emitMessagesEffect) Run(context.Context) []Event {
	msgs := h.inv.Messages
	if limit := h.f.maxCount; limit > 0 && len(msgs) > limit {
		h.f.logger.Warn("message batch exceeds maximum",
			"count", len(msgs),
			"max", limit,
			"cursor", h.inv.Cursor,
		)
		h.f.listeners.EmitStatus(StatusEvent{
			Category: CategoryErrorReceived,
			Status:   StatusConnected,
			Previous: StatusConnected,
			Error: &Error{
				Reason: ReasonMessageCountExceeded,
				Err:    fmt.Errorf("%d messages exceed maximum of %d", len(msgs), limit),
			},
		})
		return nil
	}

	fresh := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if h.f.cache.Seen(m) {
			continue
		}
		fresh = append(fresh, m)
	}
	if dropped := len(msgs) - len(fresh); dropped > 0 {
		h.f.logger.Debug("suppressed duplicate messages", "count", dropped)
	}
	if len(fresh) > 0 {
		h.f.listeners.EmitMessages(MessageBatch{Cursor: h.inv.Cursor, Messages: fresh})
	}
	return nil
}

type emitStatusEffect struct {
	f   *EffectFactory
	inv EmitStatus
}

func (*emitStatusEffect) Inline() {}

func (h *emitStatusEffect) Run(context.Context) []Event {
	c := h.inv.Change
	h.f.listeners.EmitStatus(StatusEvent{
		Category: CategoryConnectionChanged,
		Status:   c.New,
		Previous: c.Old,
		Error:    c.Error,
	})
	return nil
}

// Engine is the subscribe event engine.
type Engine = engine.Engine[State, Event, Invocation]

// Step is one processed subscribe event.
type Step = engine.Step[State, Event, Invocation]

// NewEngine builds an engine in the Unsubscribed state wired to deps.
func NewEngine(deps Dependencies, opts ...engine.EngineOption) (*Engine, *EffectFactory) {
	factory := NewEffectFactory(deps)
	dispatcher := engine.NewDispatcher[Invocation, Event](factory, factory.logger)
	opts = append([]engine.EngineOption{engine.WithLogger(factory.logger)}, opts...)
	return engine.New[State, Event, Invocation](Unsubscribed{}, Transition{}, dispatcher, opts...), factory
}
