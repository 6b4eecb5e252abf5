package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/longpoll/internal/subscribe"
)

// Reply is one scripted transport answer.
type Reply struct {
	Response subscribe.Response
	Err      error
}

// ScriptedTransport is a subscribe.Transport that answers handshakes and
// receives from separate scripts. When a script runs out the call blocks
// until its context is cancelled, like an idle long-poll.
//
// Thread-safety: All methods are safe for concurrent use.
type ScriptedTransport struct {
	mu         sync.Mutex
	handshakes []Reply
	receives   []Reply
	requests   []subscribe.Request
	called     chan subscribe.Request
}

// NewScriptedTransport creates an empty script.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{called: make(chan subscribe.Request, 64)}
}

// Handshake queues a handshake answer.
func (s *ScriptedTransport) Handshake(r Reply) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakes = append(s.handshakes, r)
	return s
}

// Receive queues a receive answer.
func (s *ScriptedTransport) Receive(r Reply) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receives = append(s.receives, r)
	return s
}

// Subscribe implements subscribe.Transport.
func (s *ScriptedTransport) Subscribe(ctx context.Context, req subscribe.Request) (subscribe.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	script := &s.receives
	if req.IsHandshake() {
		script = &s.handshakes
	}
	var reply *Reply
	if len(*script) > 0 {
		r := (*script)[0]
		*script = (*script)[1:]
		reply = &r
	}
	s.mu.Unlock()

	select {
	case s.called <- req:
	default:
	}

	if reply == nil {
		<-ctx.Done()
		return subscribe.Response{}, subscribe.NewError(subscribe.ReasonCancelled, ctx.Err())
	}
	return reply.Response, reply.Err
}

// Requests returns every request seen so far.
func (s *ScriptedTransport) Requests() []subscribe.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]subscribe.Request(nil), s.requests...)
}

// Called delivers each request as it arrives. Requests beyond the buffer
// are still recorded but not signalled.
func (s *ScriptedTransport) Called() <-chan subscribe.Request {
	return s.called
}

// String summarizes the remaining script.
func (s *ScriptedTransport) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("ScriptedTransport(handshakes=%d, receives=%d, seen=%d)",
		len(s.handshakes), len(s.receives), len(s.requests))
}
