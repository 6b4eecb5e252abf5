package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/longpoll/internal/subscribe"
)

// Server message type codes.
const (
	codeMessage       = 0
	codeSignal        = 1
	codeObject        = 2
	codeMessageAction = 3
	codeFile          = 4
)

type envelope struct {
	Cursor   timetoken         `json:"t"`
	Messages []messageEnvelope `json:"m"`
}

type timetoken struct {
	Timetoken flexUint `json:"t"`
	Region    int      `json:"r"`
}

type messageEnvelope struct {
	Shard        string          `json:"a"`
	Flags        int             `json:"f"`
	Type         *int            `json:"e"`
	Publisher    string          `json:"i"`
	Published    timetoken       `json:"p"`
	Channel      string          `json:"c"`
	Payload      json.RawMessage `json:"d"`
	Subscription string          `json:"b"`
	Meta         json.RawMessage `json:"u"`
	CustomType   string          `json:"cmt"`
}

type presencePayload struct {
	Action    string          `json:"action"`
	UUID      string          `json:"uuid"`
	Occupancy int             `json:"occupancy"`
	Timestamp int64           `json:"timestamp"`
	Join      []string        `json:"join"`
	Leave     []string        `json:"leave"`
	Timeout   []string        `json:"timeout"`
	Data      json.RawMessage `json:"data"`
}

// flexUint accepts a timetoken encoded either as a JSON string or a number.
type flexUint uint64

func (f *flexUint) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timetoken %s: %w", b, err)
	}
	*f = flexUint(v)
	return nil
}

// Decode parses a subscribe response body. Envelope failures are reported as
// *subscribe.Error with ReasonMalformedResponse. A single undecodable message
// is logged and dropped so it cannot pin the cursor; unknown type codes
// decode as plain messages.
func Decode(body []byte) (subscribe.Response, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return subscribe.Response{}, subscribe.NewError(subscribe.ReasonMalformedResponse, fmt.Errorf("decode envelope: %w", err))
	}
	if env.Cursor.Timetoken == 0 {
		return subscribe.Response{}, subscribe.NewError(subscribe.ReasonMalformedResponse, fmt.Errorf("response has no timetoken"))
	}

	resp := subscribe.Response{
		Cursor:   subscribe.Cursor{Timetoken: uint64(env.Cursor.Timetoken), Region: env.Cursor.Region},
		Messages: make([]subscribe.Message, 0, len(env.Messages)),
	}
	for i, m := range env.Messages {
		msg, err := decodeMessage(m)
		if err != nil {
			slog.Warn("dropping undecodable message",
				"index", i,
				"channel", m.Channel,
				"cursor", resp.Cursor,
				"error", err,
			)
			continue
		}
		resp.Messages = append(resp.Messages, msg)
	}
	return resp, nil
}

func decodeMessage(m messageEnvelope) (subscribe.Message, error) {
	if m.Channel == "" {
		return subscribe.Message{}, fmt.Errorf("missing channel")
	}

	msg := subscribe.Message{
		Shard:      m.Shard,
		Channel:    m.Channel,
		Publisher:  m.Publisher,
		Payload:    m.Payload,
		Meta:       m.Meta,
		CustomType: m.CustomType,
		Flags:      m.Flags,
		Published: subscribe.Cursor{
			Timetoken: uint64(m.Published.Timetoken),
			Region:    m.Published.Region,
		},
	}
	if m.Subscription != m.Channel {
		msg.Subscription = m.Subscription
	}

	if strings.HasSuffix(m.Channel, subscribe.PresenceSuffix) {
		return decodePresence(msg)
	}

	code := codeMessage
	if m.Type != nil {
		code = *m.Type
	}
	switch code {
	case codeSignal:
		msg.Type = subscribe.TypeSignal
	case codeObject:
		msg.Type = subscribe.TypeObject
	case codeMessageAction:
		msg.Type = subscribe.TypeMessageAction
	case codeFile:
		msg.Type = subscribe.TypeFile
	default:
		msg.Type = subscribe.TypeMessage
	}
	return msg, nil
}

// decodePresence strips the presence suffix from the channel and
// subscription and parses the presence payload.
func decodePresence(msg subscribe.Message) (subscribe.Message, error) {
	var p presencePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return subscribe.Message{}, fmt.Errorf("presence payload on %s: %w", msg.Channel, err)
	}

	msg.Type = subscribe.TypePresence
	msg.Channel = strings.TrimSuffix(msg.Channel, subscribe.PresenceSuffix)
	msg.Subscription = strings.TrimSuffix(msg.Subscription, subscribe.PresenceSuffix)
	msg.Presence = &subscribe.PresenceEvent{
		Action:    p.Action,
		UserID:    p.UUID,
		Occupancy: p.Occupancy,
		Timestamp: p.Timestamp,
		Join:      p.Join,
		Leave:     p.Leave,
		Timeout:   p.Timeout,
		State:     p.Data,
	}
	return msg, nil
}

// ServiceError is the body the service sends with error statuses.
type ServiceError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Service string `json:"service"`
}

// DecodeError parses an error body. ok is false when body is not a service
// error document.
func DecodeError(body []byte) (se ServiceError, ok bool) {
	var doc struct {
		ServiceError
		Error bool `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || (!doc.Error && doc.Message == "") {
		return ServiceError{}, false
	}
	return doc.ServiceError, true
}
