package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/roach88/longpoll/internal/canonical"
	"github.com/roach88/longpoll/internal/subscribe"
)

// Entry is one journaled message.
type Entry struct {
	Seq          int64            `json:"seq"`
	Fingerprint  string           `json:"fingerprint"`
	Type         string           `json:"type"`
	Channel      string           `json:"channel"`
	Subscription string           `json:"subscription,omitempty"`
	Publisher    string           `json:"publisher,omitempty"`
	Published    subscribe.Cursor `json:"published"`
	Payload      string           `json:"payload"`
	Batch        uint64           `json:"batch"`
}

// AppendBatch journals every message of batch under name. Messages already
// journaled are skipped. It returns the number of new rows.
func (s *Store) AppendBatch(ctx context.Context, name string, batch subscribe.MessageBatch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journal
		(name, fingerprint, message_type, channel, subscription, publisher, timetoken, region, payload, batch_timetoken)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, fingerprint) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("append batch: %w", err)
	}
	defer stmt.Close()

	added := 0
	for i, m := range batch.Messages {
		payload, err := canonical.Marshal(m.Payload)
		if err != nil {
			return 0, fmt.Errorf("append batch: message %d payload: %w", i, err)
		}
		res, err := stmt.ExecContext(ctx,
			name,
			strconv.FormatUint(subscribe.Fingerprint(m), 16),
			m.Type.String(),
			m.Channel,
			m.Subscription,
			m.Publisher,
			int64(m.Published.Timetoken),
			m.Published.Region,
			string(payload),
			int64(batch.Cursor.Timetoken),
		)
		if err != nil {
			return 0, fmt.Errorf("append batch: message %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append batch: commit: %w", err)
	}
	return added, nil
}

// ReadJournal returns name's entries with seq greater than after, oldest
// first, at most limit rows (all when limit <= 0).
func (s *Store) ReadJournal(ctx context.Context, name string, after int64, limit int) ([]Entry, error) {
	query := `
		SELECT seq, fingerprint, message_type, channel, subscription, publisher, timetoken, region, payload, batch_timetoken
		FROM journal
		WHERE name = ? AND seq > ?
		ORDER BY seq ASC`
	args := []any{name, after}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			tt, batchTT int64
		)
		if err := rows.Scan(&e.Seq, &e.Fingerprint, &e.Type, &e.Channel, &e.Subscription,
			&e.Publisher, &tt, &e.Published.Region, &e.Payload, &batchTT); err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		e.Published.Timetoken = uint64(tt)
		e.Batch = uint64(batchTT)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TailJournal returns name's newest n entries, oldest first.
func (s *Store) TailJournal(ctx context.Context, name string, n int) ([]Entry, error) {
	var after int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MIN(seq), 1) - 1 FROM (
			SELECT seq FROM journal WHERE name = ? ORDER BY seq DESC LIMIT ?
		)`, name, n,
	).Scan(&after)
	if err != nil {
		return nil, fmt.Errorf("tail journal: %w", err)
	}
	return s.ReadJournal(ctx, name, after, 0)
}

// JournalCount returns how many messages are journaled under name.
func (s *Store) JournalCount(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal WHERE name = ?`, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}

// Journal is a subscribe.Listener that journals delivered batches and
// checkpoints their cursor.
//
// Listener callbacks cannot return errors; failures are logged and the
// checkpoint is left at the last batch that was written completely.
type Journal struct {
	store  *Store
	name   string
	input  func() subscribe.Input
	now    func() time.Time
	logger *slog.Logger
}

// NewJournal creates a journal for subscriber name. input reports the
// subscription to record with each checkpoint.
func NewJournal(s *Store, name string, input func() subscribe.Input, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, name: name, input: input, now: time.Now, logger: logger}
}

// OnMessages implements subscribe.Listener.
func (j *Journal) OnMessages(batch subscribe.MessageBatch) {
	ctx := context.Background()

	added, err := j.store.AppendBatch(ctx, j.name, batch)
	if err != nil {
		j.logger.Error("journal append failed", "name", j.name, "cursor", batch.Cursor, "error", err)
		return
	}
	if err := j.store.SaveCheckpoint(ctx, j.name, batch.Cursor, j.input(), j.now()); err != nil {
		j.logger.Error("checkpoint failed", "name", j.name, "cursor", batch.Cursor, "error", err)
		return
	}
	j.logger.Debug("journaled batch", "name", j.name, "cursor", batch.Cursor, "added", added)
}

// OnStatus implements subscribe.Listener. Status changes are not journaled.
func (j *Journal) OnStatus(subscribe.StatusEvent) {}
