package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// A small fetch machine used to exercise the runtime:
//
//	idle --start--> loading --loaded(n)--> ready(n) --reset--> idle
type fetchState struct {
	name  string
	value int
}

func (s fetchState) String() string { return fmt.Sprintf("%s(%d)", s.name, s.value) }

type fetchEvent struct {
	name  string
	value int
}

type fetchInv struct {
	id    string
	value int
}

func (i fetchInv) Identity() string { return i.id }

type fetchTransition struct{}

func (fetchTransition) CanTransition(s fetchState, e fetchEvent) bool {
	switch e.name {
	case "start":
		return s.name == "idle"
	case "loaded":
		return s.name == "loading"
	case "reset":
		return s.name != "idle"
	}
	return false
}

func (fetchTransition) Transition(s fetchState, e fetchEvent) (fetchState, []EffectInvocation[fetchInv]) {
	switch e.name {
	case "start":
		return fetchState{name: "loading"}, []EffectInvocation[fetchInv]{
			Managed(fetchInv{id: "fetch", value: e.value}),
		}
	case "loaded":
		return fetchState{name: "ready", value: e.value}, []EffectInvocation[fetchInv]{
			Cancel[fetchInv]("fetch"),
			Managed(fetchInv{id: "notify", value: e.value}),
		}
	case "reset":
		return fetchState{name: "idle"}, []EffectInvocation[fetchInv]{
			Cancel[fetchInv]("fetch"),
		}
	}
	return s, nil
}

// funcHandler adapts a function to EffectHandler.
type funcHandler func(ctx context.Context) []fetchEvent

func (f funcHandler) Run(ctx context.Context) []fetchEvent { return f(ctx) }

type inlineHandler struct{ funcHandler }

func (inlineHandler) Inline() {}

// mapFactory returns handlers by invocation identity.
type mapFactory struct {
	mu       sync.Mutex
	handlers map[string]func(inv fetchInv) EffectHandler[fetchEvent]
}

func newMapFactory() *mapFactory {
	return &mapFactory{handlers: make(map[string]func(fetchInv) EffectHandler[fetchEvent])}
}

func (f *mapFactory) set(id string, h func(inv fetchInv) EffectHandler[fetchEvent]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[id] = h
}

func (f *mapFactory) Handler(inv fetchInv) (EffectHandler[fetchEvent], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handlers[inv.id]
	if !ok {
		return nil, errors.New("unknown invocation " + inv.id)
	}
	return h(inv), nil
}

// recordingListener captures completions.
type recordingListener struct {
	mu          sync.Mutex
	completions [][]fetchEvent
	ch          chan []fetchEvent
}

func newRecordingListener() *recordingListener {
	return &recordingListener{ch: make(chan []fetchEvent, 16)}
}

func (l *recordingListener) OnAnyInvocationCompleted(events []fetchEvent) {
	l.mu.Lock()
	l.completions = append(l.completions, events)
	l.mu.Unlock()
	l.ch <- events
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.completions)
}
