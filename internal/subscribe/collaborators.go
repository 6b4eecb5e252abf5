package subscribe

import (
	"context"
	"time"
)

// Request is one long-poll subscribe call. A zero Cursor means handshake.
type Request struct {
	Input  Input
	Cursor Cursor
}

// IsHandshake reports whether the request asks for a starting cursor.
func (r Request) IsHandshake() bool {
	return r.Cursor.IsZero()
}

// Response is a decoded subscribe response.
type Response struct {
	Cursor   Cursor
	Messages []Message
}

// Transport performs subscribe calls. Errors should be *Error so the retry
// policy can classify them; other errors are treated as ReasonUnknown.
//
// Subscribe must return promptly once ctx is cancelled.
type Transport interface {
	Subscribe(ctx context.Context, req Request) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Subscribe implements Transport.
func (f TransportFunc) Subscribe(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Clock provides the timers reconnect effects wait on.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// After implements Clock.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
