package harness

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/longpoll/internal/subscribe"
)

// buildState converts a StateSpec to a state. A nil spec is Unsubscribed.
func buildState(spec *StateSpec) (subscribe.State, error) {
	if spec == nil {
		return subscribe.Unsubscribed{}, nil
	}

	input := subscribe.NewInput(spec.Channels, spec.Groups)
	if spec.State != "Unsubscribed" && input.IsEmpty() {
		return nil, fmt.Errorf("state %s needs at least one channel or group", spec.State)
	}

	var cursor subscribe.Cursor
	if spec.Cursor != "" {
		c, err := subscribe.ParseCursor(spec.Cursor)
		if err != nil {
			return nil, err
		}
		cursor = c
	}
	err := buildError(spec.Reason, spec.Status)

	switch spec.State {
	case "Unsubscribed":
		return subscribe.Unsubscribed{}, nil
	case "Handshaking":
		return subscribe.Handshaking{Input: input}, nil
	case "HandshakeStopped":
		return subscribe.HandshakeStopped{Input: input}, nil
	case "HandshakeFailed":
		return subscribe.HandshakeFailed{Input: input, Err: err}, nil
	case "HandshakeReconnecting":
		return subscribe.HandshakeReconnecting{Input: input, Attempt: spec.Attempt, Reason: err}, nil
	}

	if cursor.IsZero() {
		return nil, fmt.Errorf("state %s needs a cursor", spec.State)
	}
	switch spec.State {
	case "Receiving":
		return subscribe.Receiving{Input: input, Cursor: cursor}, nil
	case "ReceiveStopped":
		return subscribe.ReceiveStopped{Input: input, Cursor: cursor}, nil
	case "ReceiveFailed":
		return subscribe.ReceiveFailed{Input: input, Cursor: cursor, Err: err}, nil
	case "ReceiveReconnecting":
		return subscribe.ReceiveReconnecting{Input: input, Cursor: cursor, Attempt: spec.Attempt, Reason: err}, nil
	}
	return nil, fmt.Errorf("unknown state %q", spec.State)
}

// buildError returns the error described by reason and status, or nil when
// both are empty. A status implies a badStatus reason.
func buildError(reason string, status int) error {
	switch {
	case status != 0:
		return subscribe.NewStatusError(status, nil)
	case reason != "":
		return subscribe.NewError(subscribe.Reason(reason), nil)
	}
	return nil
}

// buildEvent converts a step to an event. Effect events take their origin
// from current unless the step overrides it.
func buildEvent(step EventStep, current subscribe.State) (subscribe.Event, error) {
	input := current.Subscription()
	if len(step.Channels) > 0 || len(step.Groups) > 0 {
		input = subscribe.NewInput(step.Channels, step.Groups)
	}

	request, _ := subscribe.StateCursor(current)
	if step.Request != "" {
		c, err := subscribe.ParseCursor(step.Request)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		request = c
	}

	var cursor subscribe.Cursor
	if step.Cursor != "" {
		c, err := subscribe.ParseCursor(step.Cursor)
		if err != nil {
			return nil, fmt.Errorf("cursor: %w", err)
		}
		cursor = c
	}

	attempt := currentAttempt(current)
	if step.Attempt != nil {
		attempt = *step.Attempt
	}

	messages, err := buildMessages(step.Messages)
	if err != nil {
		return nil, err
	}

	failure := buildError(step.Reason, step.Status)
	if failure == nil {
		failure = subscribe.NewError(subscribe.ReasonUnknown, nil)
	}

	switch step.Event {
	case "subscriptionChanged":
		return subscribe.SubscriptionChanged{Channels: step.Channels, Groups: step.Groups}, nil
	case "subscriptionRestored":
		return subscribe.SubscriptionRestored{Channels: step.Channels, Groups: step.Groups, Cursor: cursor}, nil
	case "handshakeSuccess":
		return subscribe.HandshakeSuccess{Input: input, Cursor: cursor}, nil
	case "handshakeFailure":
		return subscribe.HandshakeFailure{Input: input, Err: failure}, nil
	case "handshakeReconnectSuccess":
		return subscribe.HandshakeReconnectSuccess{Input: input, Attempt: attempt, Cursor: cursor}, nil
	case "handshakeReconnectFailure":
		return subscribe.HandshakeReconnectFailure{Input: input, Attempt: attempt, Err: failure}, nil
	case "handshakeReconnectGiveUp":
		return subscribe.HandshakeReconnectGiveUp{Input: input, Attempt: attempt, Err: failure}, nil
	case "receiveSuccess":
		return subscribe.ReceiveSuccess{Input: input, Request: request, Cursor: cursor, Messages: messages}, nil
	case "receiveFailure":
		return subscribe.ReceiveFailure{Input: input, Request: request, Err: failure}, nil
	case "receiveReconnectSuccess":
		return subscribe.ReceiveReconnectSuccess{Input: input, Request: request, Attempt: attempt, Cursor: cursor, Messages: messages}, nil
	case "receiveReconnectFailure":
		return subscribe.ReceiveReconnectFailure{Input: input, Request: request, Attempt: attempt, Err: failure}, nil
	case "receiveReconnectGiveUp":
		return subscribe.ReceiveReconnectGiveUp{Input: input, Request: request, Attempt: attempt, Err: failure}, nil
	case "disconnect":
		return subscribe.Disconnect{}, nil
	case "reconnect":
		return subscribe.Reconnect{}, nil
	case "unsubscribeAll":
		return subscribe.UnsubscribeAll{}, nil
	}
	return nil, fmt.Errorf("unknown event %q", step.Event)
}

func currentAttempt(s subscribe.State) int {
	switch st := s.(type) {
	case subscribe.HandshakeReconnecting:
		return st.Attempt
	case subscribe.ReceiveReconnecting:
		return st.Attempt
	}
	return 0
}

func buildMessages(specs []MessageSpec) ([]subscribe.Message, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]subscribe.Message, len(specs))
	for i, m := range specs {
		payload := m.Payload
		if payload == "" {
			payload = "null"
		}
		if !json.Valid([]byte(payload)) {
			return nil, fmt.Errorf("messages[%d]: payload is not JSON: %s", i, payload)
		}
		out[i] = subscribe.Message{
			Type:      subscribe.TypeMessage,
			Channel:   m.Channel,
			Payload:   json.RawMessage(payload),
			Published: subscribe.Cursor{Timetoken: m.Timetoken},
		}
	}
	return out, nil
}
