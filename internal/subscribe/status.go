package subscribe

import "fmt"

// ConnectionStatus is the user-visible connection state.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusDisconnectedUnexpectedly
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnectedUnexpectedly:
		return "disconnectedUnexpectedly"
	default:
		return fmt.Sprintf("ConnectionStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusChange is the payload of an emitStatus invocation.
type StatusChange struct {
	Old   ConnectionStatus
	New   ConnectionStatus
	Error error
}

func (c StatusChange) String() string {
	if c.Error != nil {
		return fmt.Sprintf("%s->%s: %v", c.Old, c.New, c.Error)
	}
	return fmt.Sprintf("%s->%s", c.Old, c.New)
}

// StatusCategory distinguishes connection changes from reported errors.
type StatusCategory string

const (
	CategoryConnectionChanged StatusCategory = "connectionChanged"
	CategoryErrorReceived     StatusCategory = "errorReceived"
)

// StatusEvent is delivered to listeners.
type StatusEvent struct {
	Category StatusCategory   `json:"category"`
	Status   ConnectionStatus `json:"status"`
	Previous ConnectionStatus `json:"previous"`
	Error    error            `json:"-"`
}

// ErrorMessage returns the error text, or "" when there is none.
func (e StatusEvent) ErrorMessage() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Error()
}
