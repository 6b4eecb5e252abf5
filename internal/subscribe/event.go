package subscribe

import "fmt"

// Event is submitted to the engine, either by the application (membership
// changes, disconnect, reconnect) or by a finished effect.
//
// Effect events carry the Input and the request cursor or attempt they were
// started with; Transition uses them to reject results from a superseded
// effect.
type Event interface {
	Name() string
	fmt.Stringer
	isEvent()
}

// SubscriptionChanged replaces the subscribed channels and groups.
type SubscriptionChanged struct {
	Channels []string
	Groups   []string
}

// SubscriptionRestored replaces the subscription and resumes at Cursor.
type SubscriptionRestored struct {
	Channels []string
	Groups   []string
	Cursor   Cursor
}

// HandshakeSuccess reports the starting cursor for Input.
type HandshakeSuccess struct {
	Input  Input
	Cursor Cursor
}

// HandshakeFailure reports a failed handshake.
type HandshakeFailure struct {
	Input Input
	Err   error
}

// HandshakeReconnectSuccess reports a successful handshake retry.
type HandshakeReconnectSuccess struct {
	Input   Input
	Attempt int
	Cursor  Cursor
}

// HandshakeReconnectFailure reports a failed handshake retry.
type HandshakeReconnectFailure struct {
	Input   Input
	Attempt int
	Err     error
}

// HandshakeReconnectGiveUp reports that handshake retries are exhausted.
type HandshakeReconnectGiveUp struct {
	Input   Input
	Attempt int
	Err     error
}

// ReceiveSuccess reports the messages after Request and the next cursor.
type ReceiveSuccess struct {
	Input    Input
	Request  Cursor
	Cursor   Cursor
	Messages []Message
}

// ReceiveFailure reports a failed receive at Request.
type ReceiveFailure struct {
	Input   Input
	Request Cursor
	Err     error
}

// ReceiveReconnectSuccess reports a successful receive retry.
type ReceiveReconnectSuccess struct {
	Input    Input
	Request  Cursor
	Attempt  int
	Cursor   Cursor
	Messages []Message
}

// ReceiveReconnectFailure reports a failed receive retry.
type ReceiveReconnectFailure struct {
	Input   Input
	Request Cursor
	Attempt int
	Err     error
}

// ReceiveReconnectGiveUp reports that receive retries are exhausted.
type ReceiveReconnectGiveUp struct {
	Input   Input
	Request Cursor
	Attempt int
	Err     error
}

// Disconnect pauses the subscription without forgetting it.
type Disconnect struct{}

// Reconnect resumes a stopped or failed subscription.
type Reconnect struct{}

// UnsubscribeAll drops every channel and group.
type UnsubscribeAll struct{}

func (SubscriptionChanged) Name() string       { return "subscriptionChanged" }
func (SubscriptionRestored) Name() string      { return "subscriptionRestored" }
func (HandshakeSuccess) Name() string          { return "handshakeSuccess" }
func (HandshakeFailure) Name() string          { return "handshakeFailure" }
func (HandshakeReconnectSuccess) Name() string { return "handshakeReconnectSuccess" }
func (HandshakeReconnectFailure) Name() string { return "handshakeReconnectFailure" }
func (HandshakeReconnectGiveUp) Name() string  { return "handshakeReconnectGiveUp" }
func (ReceiveSuccess) Name() string            { return "receiveSuccess" }
func (ReceiveFailure) Name() string            { return "receiveFailure" }
func (ReceiveReconnectSuccess) Name() string   { return "receiveReconnectSuccess" }
func (ReceiveReconnectFailure) Name() string   { return "receiveReconnectFailure" }
func (ReceiveReconnectGiveUp) Name() string    { return "receiveReconnectGiveUp" }
func (Disconnect) Name() string                { return "disconnect" }
func (Reconnect) Name() string                 { return "reconnect" }
func (UnsubscribeAll) Name() string            { return "unsubscribeAll" }

func (e SubscriptionChanged) String() string {
	return fmt.Sprintf("subscriptionChanged(%s)", NewInput(e.Channels, e.Groups))
}

func (e SubscriptionRestored) String() string {
	return fmt.Sprintf("subscriptionRestored(%s, cursor=%s)", NewInput(e.Channels, e.Groups), e.Cursor)
}

func (e HandshakeSuccess) String() string {
	return fmt.Sprintf("handshakeSuccess(cursor=%s)", e.Cursor)
}

func (e HandshakeFailure) String() string {
	return fmt.Sprintf("handshakeFailure(%v)", e.Err)
}

func (e HandshakeReconnectSuccess) String() string {
	return fmt.Sprintf("handshakeReconnectSuccess(attempt=%d, cursor=%s)", e.Attempt, e.Cursor)
}

func (e HandshakeReconnectFailure) String() string {
	return fmt.Sprintf("handshakeReconnectFailure(attempt=%d, %v)", e.Attempt, e.Err)
}

func (e HandshakeReconnectGiveUp) String() string {
	return fmt.Sprintf("handshakeReconnectGiveUp(attempt=%d, %v)", e.Attempt, e.Err)
}

func (e ReceiveSuccess) String() string {
	return fmt.Sprintf("receiveSuccess(cursor=%s, messages=%d)", e.Cursor, len(e.Messages))
}

func (e ReceiveFailure) String() string {
	return fmt.Sprintf("receiveFailure(%v)", e.Err)
}

func (e ReceiveReconnectSuccess) String() string {
	return fmt.Sprintf("receiveReconnectSuccess(attempt=%d, cursor=%s, messages=%d)", e.Attempt, e.Cursor, len(e.Messages))
}

func (e ReceiveReconnectFailure) String() string {
	return fmt.Sprintf("receiveReconnectFailure(attempt=%d, %v)", e.Attempt, e.Err)
}

func (e ReceiveReconnectGiveUp) String() string {
	return fmt.Sprintf("receiveReconnectGiveUp(attempt=%d, %v)", e.Attempt, e.Err)
}

func (Disconnect) String() string     { return "disconnect" }
func (Reconnect) String() string      { return "reconnect" }
func (UnsubscribeAll) String() string { return "unsubscribeAll" }

func (SubscriptionChanged) isEvent()       {}
func (SubscriptionRestored) isEvent()      {}
func (HandshakeSuccess) isEvent()          {}
func (HandshakeFailure) isEvent()          {}
func (HandshakeReconnectSuccess) isEvent() {}
func (HandshakeReconnectFailure) isEvent() {}
func (HandshakeReconnectGiveUp) isEvent()  {}
func (ReceiveSuccess) isEvent()            {}
func (ReceiveFailure) isEvent()            {}
func (ReceiveReconnectSuccess) isEvent()   {}
func (ReceiveReconnectFailure) isEvent()   {}
func (ReceiveReconnectGiveUp) isEvent()    {}
func (Disconnect) isEvent()                {}
func (Reconnect) isEvent()                 {}
func (UnsubscribeAll) isEvent()            {}

// EventNames lists every event variant in table order.
var EventNames = []string{
	"subscriptionChanged",
	"subscriptionRestored",
	"handshakeSuccess",
	"handshakeFailure",
	"handshakeReconnectSuccess",
	"handshakeReconnectFailure",
	"handshakeReconnectGiveUp",
	"receiveSuccess",
	"receiveFailure",
	"receiveReconnectSuccess",
	"receiveReconnectFailure",
	"receiveReconnectGiveUp",
	"disconnect",
	"reconnect",
	"unsubscribeAll",
}
