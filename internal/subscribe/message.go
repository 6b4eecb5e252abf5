package subscribe

import (
	"encoding/json"
	"fmt"
)

// MessageType tags the kind of payload carried by a Message.
type MessageType int

const (
	TypeMessage MessageType = iota
	TypeSignal
	TypeObject
	TypeMessageAction
	TypeFile
	TypePresence
)

var messageTypeNames = map[MessageType]string{
	TypeMessage:       "message",
	TypeSignal:        "signal",
	TypeObject:        "object",
	TypeMessageAction: "messageAction",
	TypeFile:          "file",
	TypePresence:      "presence",
}

func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t MessageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseMessageType maps a name produced by String back to a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	for t, name := range messageTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

// Message is one decoded item from a subscribe response.
type Message struct {
	Type MessageType `json:"type"`

	// Shard is the server shard that stored the message; part of its
	// fingerprint.
	Shard string `json:"shard,omitempty"`

	Channel string `json:"channel"`

	// Subscription is the wildcard or group the message matched, if it was
	// not delivered for a plain channel subscription.
	Subscription string `json:"subscription,omitempty"`

	Publisher  string          `json:"publisher,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	CustomType string          `json:"custom_type,omitempty"`
	Flags      int             `json:"flags,omitempty"`

	// Published is the message's own position in the stream.
	Published Cursor `json:"published"`

	// Presence is set for TypePresence messages.
	Presence *PresenceEvent `json:"presence,omitempty"`
}

// PresenceEvent is the decoded payload of a presence message.
type PresenceEvent struct {
	Action    string          `json:"action"`
	UserID    string          `json:"user_id,omitempty"`
	Occupancy int             `json:"occupancy"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Join      []string        `json:"join,omitempty"`
	Leave     []string        `json:"leave,omitempty"`
	Timeout   []string        `json:"timeout,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
}

// MessageBatch is the unit delivered to listeners: the surviving messages of
// one receive, in server order, and the cursor that follows them.
type MessageBatch struct {
	Cursor   Cursor    `json:"cursor"`
	Messages []Message `json:"messages"`
}
