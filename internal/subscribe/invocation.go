package subscribe

import (
	"fmt"

	"github.com/roach88/longpoll/internal/engine"
)

// Invocation identities. At most one effect per identity is pending.
const (
	IDHandshakeRequest   = "handshakeRequest"
	IDReceiveMessages    = "receiveMessages"
	IDHandshakeReconnect = "handshakeReconnect"
	IDReceiveReconnect   = "receiveReconnect"
	IDEmitMessages       = "emitMessages"
	IDEmitStatus         = "emitStatus"
)

// Invocation is a subscribe effect request.
type Invocation interface {
	engine.Invocation
	fmt.Stringer
	isInvocation()
}

// Effect is the engine's tagged managed/cancel wrapper for subscribe
// invocations.
type Effect = engine.EffectInvocation[Invocation]

// HandshakeRequest asks the server for a starting cursor.
type HandshakeRequest struct {
	Input Input
}

// ReceiveMessages long-polls for messages after Cursor.
type ReceiveMessages struct {
	Input  Input
	Cursor Cursor
}

// HandshakeReconnect retries a handshake after a backoff delay.
type HandshakeReconnect struct {
	Input   Input
	Attempt int
	Reason  error
}

// ReceiveReconnect retries a receive after a backoff delay.
type ReceiveReconnect struct {
	Input   Input
	Cursor  Cursor
	Attempt int
	Reason  error
}

// EmitMessages delivers a batch to listeners.
type EmitMessages struct {
	Cursor   Cursor
	Messages []Message
}

// EmitStatus notifies listeners of a status change.
type EmitStatus struct {
	Change StatusChange
}

func (HandshakeRequest) Identity() string   { return IDHandshakeRequest }
func (ReceiveMessages) Identity() string    { return IDReceiveMessages }
func (HandshakeReconnect) Identity() string { return IDHandshakeReconnect }
func (ReceiveReconnect) Identity() string   { return IDReceiveReconnect }
func (EmitMessages) Identity() string       { return IDEmitMessages }
func (EmitStatus) Identity() string         { return IDEmitStatus }

func (i HandshakeRequest) String() string {
	return fmt.Sprintf("handshakeRequest(%s)", i.Input)
}

func (i ReceiveMessages) String() string {
	return fmt.Sprintf("receiveMessages(%s, cursor=%s)", i.Input, i.Cursor)
}

func (i HandshakeReconnect) String() string {
	return fmt.Sprintf("handshakeReconnect(attempt=%d)", i.Attempt)
}

func (i ReceiveReconnect) String() string {
	return fmt.Sprintf("receiveReconnect(cursor=%s, attempt=%d)", i.Cursor, i.Attempt)
}

func (i EmitMessages) String() string {
	return fmt.Sprintf("emitMessages(cursor=%s, messages=%d)", i.Cursor, len(i.Messages))
}

func (i EmitStatus) String() string {
	return fmt.Sprintf("emitStatus(%s)", i.Change)
}

func (HandshakeRequest) isInvocation()   {}
func (ReceiveMessages) isInvocation()    {}
func (HandshakeReconnect) isInvocation() {}
func (ReceiveReconnect) isInvocation()   {}
func (EmitMessages) isInvocation()       {}
func (EmitStatus) isInvocation()         {}

// Describe renders an effect with its invocation details, e.g.
// "managed(receiveMessages(channels=[a] groups=[], cursor=1/0))" or
// "cancel(receiveMessages)".
func Describe(e Effect) string {
	if e.Kind == engine.EffectManaged && e.Invocation != nil {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Invocation)
	}
	return e.String()
}

// DescribeAll applies Describe to every effect.
func DescribeAll(effects []Effect) []string {
	out := make([]string, len(effects))
	for i, e := range effects {
		out[i] = Describe(e)
	}
	return out
}
