package subscribe

import "fmt"

// State is one of the nine subscribe states. States are values: the engine
// replaces the current state on every accepted event and never mutates one.
type State interface {
	// Name is the state's variant name, e.g. "Receiving".
	Name() string

	// Subscription is the input the state is working on. Empty only for
	// Unsubscribed.
	Subscription() Input

	// ConnectionStatus is the status a listener would observe in this state.
	ConnectionStatus() ConnectionStatus

	fmt.Stringer

	isState()
}

// Unsubscribed is the initial state: nothing subscribed, nothing in flight.
type Unsubscribed struct{}

// Handshaking is waiting for the first cursor for Input.
type Handshaking struct {
	Input Input
}

// HandshakeStopped is a handshake paused by disconnect.
type HandshakeStopped struct {
	Input Input
}

// HandshakeFailed is a handshake that gave up.
type HandshakeFailed struct {
	Input Input
	Err   error
}

// HandshakeReconnecting retries a failed handshake.
type HandshakeReconnecting struct {
	Input   Input
	Attempt int
	Reason  error
}

// Receiving is long-polling for messages after Cursor.
//
// Resuming marks a poll re-armed from a disconnected state (a stop, a
// give-up or a restore) that the server has not answered yet. It reports
// StatusConnecting until the first receive succeeds.
type Receiving struct {
	Input    Input
	Cursor   Cursor
	Resuming bool
}

// ReceiveStopped is a receive loop paused by disconnect.
type ReceiveStopped struct {
	Input  Input
	Cursor Cursor
}

// ReceiveFailed is a receive loop that gave up.
type ReceiveFailed struct {
	Input  Input
	Cursor Cursor
	Err    error
}

// ReceiveReconnecting retries a failed receive at the last good Cursor.
type ReceiveReconnecting struct {
	Input   Input
	Cursor  Cursor
	Attempt int
	Reason  error
}

func (Unsubscribed) Name() string          { return "Unsubscribed" }
func (Handshaking) Name() string           { return "Handshaking" }
func (HandshakeStopped) Name() string      { return "HandshakeStopped" }
func (HandshakeFailed) Name() string       { return "HandshakeFailed" }
func (HandshakeReconnecting) Name() string { return "HandshakeReconnecting" }
func (Receiving) Name() string             { return "Receiving" }
func (ReceiveStopped) Name() string        { return "ReceiveStopped" }
func (ReceiveFailed) Name() string         { return "ReceiveFailed" }
func (ReceiveReconnecting) Name() string   { return "ReceiveReconnecting" }

func (Unsubscribed) Subscription() Input            { return Input{} }
func (s Handshaking) Subscription() Input           { return s.Input }
func (s HandshakeStopped) Subscription() Input      { return s.Input }
func (s HandshakeFailed) Subscription() Input       { return s.Input }
func (s HandshakeReconnecting) Subscription() Input { return s.Input }
func (s Receiving) Subscription() Input             { return s.Input }
func (s ReceiveStopped) Subscription() Input        { return s.Input }
func (s ReceiveFailed) Subscription() Input         { return s.Input }
func (s ReceiveReconnecting) Subscription() Input   { return s.Input }

func (Unsubscribed) ConnectionStatus() ConnectionStatus          { return StatusDisconnected }
func (Handshaking) ConnectionStatus() ConnectionStatus           { return StatusConnecting }
func (HandshakeStopped) ConnectionStatus() ConnectionStatus      { return StatusDisconnected }
func (HandshakeFailed) ConnectionStatus() ConnectionStatus       { return StatusDisconnected }
func (HandshakeReconnecting) ConnectionStatus() ConnectionStatus { return StatusConnecting }
func (s Receiving) ConnectionStatus() ConnectionStatus {
	if s.Resuming {
		return StatusConnecting
	}
	return StatusConnected
}
func (ReceiveStopped) ConnectionStatus() ConnectionStatus        { return StatusDisconnected }
func (ReceiveFailed) ConnectionStatus() ConnectionStatus         { return StatusDisconnectedUnexpectedly }
func (ReceiveReconnecting) ConnectionStatus() ConnectionStatus   { return StatusConnected }

func (Unsubscribed) String() string { return "Unsubscribed" }

func (s Handshaking) String() string {
	return fmt.Sprintf("Handshaking(%s)", s.Input)
}

func (s HandshakeStopped) String() string {
	return fmt.Sprintf("HandshakeStopped(%s)", s.Input)
}

func (s HandshakeFailed) String() string {
	return fmt.Sprintf("HandshakeFailed(%s, err=%v)", s.Input, s.Err)
}

func (s HandshakeReconnecting) String() string {
	return fmt.Sprintf("HandshakeReconnecting(%s, attempt=%d, reason=%v)", s.Input, s.Attempt, s.Reason)
}

func (s Receiving) String() string {
	if s.Resuming {
		return fmt.Sprintf("Receiving(%s, cursor=%s, resuming)", s.Input, s.Cursor)
	}
	return fmt.Sprintf("Receiving(%s, cursor=%s)", s.Input, s.Cursor)
}

func (s ReceiveStopped) String() string {
	return fmt.Sprintf("ReceiveStopped(%s, cursor=%s)", s.Input, s.Cursor)
}

func (s ReceiveFailed) String() string {
	return fmt.Sprintf("ReceiveFailed(%s, cursor=%s, err=%v)", s.Input, s.Cursor, s.Err)
}

func (s ReceiveReconnecting) String() string {
	return fmt.Sprintf("ReceiveReconnecting(%s, cursor=%s, attempt=%d, reason=%v)", s.Input, s.Cursor, s.Attempt, s.Reason)
}

func (Unsubscribed) isState()          {}
func (Handshaking) isState()           {}
func (HandshakeStopped) isState()      {}
func (HandshakeFailed) isState()       {}
func (HandshakeReconnecting) isState() {}
func (Receiving) isState()             {}
func (ReceiveStopped) isState()        {}
func (ReceiveFailed) isState()         {}
func (ReceiveReconnecting) isState()   {}

// StateCursor returns the cursor held by s, if any.
func StateCursor(s State) (Cursor, bool) {
	switch st := s.(type) {
	case Receiving:
		return st.Cursor, true
	case ReceiveStopped:
		return st.Cursor, true
	case ReceiveFailed:
		return st.Cursor, true
	case ReceiveReconnecting:
		return st.Cursor, true
	}
	return Cursor{}, false
}

// StateNames lists every state variant in table order.
var StateNames = []string{
	"Unsubscribed",
	"Handshaking",
	"HandshakeStopped",
	"HandshakeFailed",
	"HandshakeReconnecting",
	"Receiving",
	"ReceiveStopped",
	"ReceiveFailed",
	"ReceiveReconnecting",
}
