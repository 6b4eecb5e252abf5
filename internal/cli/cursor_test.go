package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/longpoll/internal/store"
	"github.com/roach88/longpoll/internal/subscribe"
)

func seedStore(t *testing.T, at time.Time) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "longpoll.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	input := subscribe.NewInput([]string{"news"}, []string{"feeds"})
	batch := subscribe.MessageBatch{
		Cursor: subscribe.Cursor{Timetoken: 300, Region: 2},
		Messages: []subscribe.Message{
			{Type: subscribe.TypeMessage, Channel: "news", Publisher: "alice", Payload: json.RawMessage(`{"headline":"first"}`), Published: subscribe.Cursor{Timetoken: 250, Region: 2}},
			{Type: subscribe.TypeSignal, Channel: "news", Payload: json.RawMessage(`"ping"`), Published: subscribe.Cursor{Timetoken: 260, Region: 2}},
		},
	}
	_, err = st.AppendBatch(ctx, "reader", batch)
	require.NoError(t, err)
	require.NoError(t, st.SaveCheckpoint(ctx, "reader", batch.Cursor, input, at))
	require.NoError(t, st.SaveCheckpoint(ctx, "archiver", subscribe.Cursor{Timetoken: 90}, subscribe.NewInput([]string{"logs"}, nil), at))
	return path
}

func TestCursor_Text(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := seedStore(t, updated)

	opts := &CursorOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    path,
		Tail:        5,
		now:         func() time.Time { return updated.Add(3 * time.Hour) },
	}
	cmd := NewCursorCommand(opts.RootOptions)
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	require.NoError(t, runCursor(opts, cmd))

	text := out.String()
	assert.Contains(t, text, "reader")
	assert.Contains(t, text, "archiver")
	assert.Contains(t, text, "300/2")
	assert.Contains(t, text, "3 hours ago")
	assert.Contains(t, text, "last 2 of 2 message(s)")
	assert.Contains(t, text, `{"headline":"first"}`)
}

func TestCursor_JSONFilteredByName(t *testing.T) {
	path := seedStore(t, time.Now())

	out, err := execute(t, "cursor", "--db", path, "--name", "reader", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data CursorReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Subscribers, 1)

	s := resp.Data.Subscribers[0]
	assert.Equal(t, "reader", s.Name)
	assert.Equal(t, "300/2", s.Cursor)
	assert.Equal(t, []string{"news"}, s.Channels)
	assert.Equal(t, []string{"feeds"}, s.Groups)
	assert.Equal(t, int64(2), s.Journaled)
	require.Len(t, s.Tail, 2)
	assert.Equal(t, "signal", s.Tail[1].Type)
}

func TestCursor_Delete(t *testing.T) {
	path := seedStore(t, time.Now())

	_, err := execute(t, "cursor", "--db", path, "--name", "archiver", "--delete")
	require.NoError(t, err)

	out, err := execute(t, "cursor", "--db", path, "--format", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "archiver")
	assert.Contains(t, out, "reader")
}

func TestCursor_DeleteRequiresName(t *testing.T) {
	path := seedStore(t, time.Now())

	_, err := execute(t, "cursor", "--db", path, "--delete")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCursor_MissingDatabase(t *testing.T) {
	_, err := execute(t, "cursor", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
