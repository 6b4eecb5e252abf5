package wire

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/longpoll/internal/subscribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MixedResponse(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "mixed.json"))
	require.NoError(t, err)

	resp, err := Decode(body)
	require.NoError(t, err)

	assert.Equal(t, subscribe.Cursor{Timetoken: 17000000000000300, Region: 12}, resp.Cursor)
	require.Len(t, resp.Messages, 4)

	plain := resp.Messages[0]
	assert.Equal(t, subscribe.TypeMessage, plain.Type)
	assert.Equal(t, "chat", plain.Channel)
	assert.Empty(t, plain.Subscription, "subscription equal to channel is dropped")
	assert.Equal(t, "alice", plain.Publisher)
	assert.JSONEq(t, `{"text":"hello"}`, string(plain.Payload))
	assert.Equal(t, subscribe.Cursor{Timetoken: 17000000000000100, Region: 12}, plain.Published)
	assert.Equal(t, "4", plain.Shard)

	assert.Equal(t, subscribe.TypeSignal, resp.Messages[1].Type)

	action := resp.Messages[2]
	assert.Equal(t, subscribe.TypeMessageAction, action.Type)
	assert.Equal(t, "news.*", action.Subscription)
	assert.Equal(t, "reaction", action.CustomType)
	assert.JSONEq(t, `{"lang":"en"}`, string(action.Meta))

	presence := resp.Messages[3]
	assert.Equal(t, subscribe.TypePresence, presence.Type)
	assert.Equal(t, "chat", presence.Channel)
	require.NotNil(t, presence.Presence)
	assert.Equal(t, "join", presence.Presence.Action)
	assert.Equal(t, "carol", presence.Presence.UserID)
	assert.Equal(t, 3, presence.Presence.Occupancy)
}

func TestDecode_Handshake(t *testing.T) {
	resp, err := Decode([]byte(`{"t":{"t":"16000000000000000","r":1},"m":[]}`))
	require.NoError(t, err)

	assert.Equal(t, subscribe.Cursor{Timetoken: 16000000000000000, Region: 1}, resp.Cursor)
	assert.Empty(t, resp.Messages)
}

func TestDecode_NumericTimetoken(t *testing.T) {
	resp, err := Decode([]byte(`{"t":{"t":42,"r":0},"m":[]}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), resp.Cursor.Timetoken)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"no timetoken", `{"m":[]}`},
		{"bad timetoken", `{"t":{"t":"soon"},"m":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)

			var se *subscribe.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, subscribe.ReasonMalformedResponse, se.Reason)
		})
	}
}

func TestDecode_BadMessagesDoNotFailBatch(t *testing.T) {
	body := `{"t":{"t":"300","r":1},"m":[
		{"c":"chat","d":{"n":1},"p":{"t":"100","r":1}},
		{"c":"chat","e":5,"d":{"n":2},"p":{"t":"110","r":1}},
		{"d":{"n":3}},
		{"c":"chat-pnpres","d":"join"},
		{"c":"chat","e":1,"d":"ping","p":{"t":"120","r":1}}
	]}`

	resp, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, subscribe.Cursor{Timetoken: 300, Region: 1}, resp.Cursor)

	require.Len(t, resp.Messages, 3)
	assert.Equal(t, subscribe.TypeMessage, resp.Messages[0].Type)
	assert.Equal(t, subscribe.TypeMessage, resp.Messages[1].Type, "unknown code decodes as a message")
	assert.JSONEq(t, `{"n":2}`, string(resp.Messages[1].Payload))
	assert.Equal(t, subscribe.TypeSignal, resp.Messages[2].Type)
}

func TestDecodeError(t *testing.T) {
	se, ok := DecodeError([]byte(`{"status":403,"error":true,"service":"Access Manager","message":"Forbidden"}`))
	require.True(t, ok)
	assert.Equal(t, ServiceError{Status: 403, Message: "Forbidden", Service: "Access Manager"}, se)

	_, ok = DecodeError([]byte(`<html>bad gateway</html>`))
	assert.False(t, ok)
}
