package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roach88/longpoll/internal/subscribe"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMessage creates a message on channel published at tt.
func createTestMessage(channel string, tt uint64, payload string) subscribe.Message {
	return subscribe.Message{
		Type:      subscribe.TypeMessage,
		Channel:   channel,
		Publisher: "publisher-1",
		Payload:   json.RawMessage(payload),
		Published: subscribe.Cursor{Timetoken: tt, Region: 1},
	}
}
