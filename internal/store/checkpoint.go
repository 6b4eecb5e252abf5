package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/longpoll/internal/canonical"
	"github.com/roach88/longpoll/internal/subscribe"
)

// ErrNoCheckpoint is returned when a subscriber has never checkpointed.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Checkpoint is the persisted resume point of one subscriber.
type Checkpoint struct {
	Name      string
	Cursor    subscribe.Cursor
	Channels  []string
	Groups    []string
	UpdatedAt time.Time
}

// Input returns the subscription recorded with the checkpoint.
func (c Checkpoint) Input() subscribe.Input {
	return subscribe.NewInput(c.Channels, c.Groups)
}

// SaveCheckpoint records cursor and input as name's resume point. A cursor
// older than the stored one is ignored so a late write cannot move the
// resume point backwards.
func (s *Store) SaveCheckpoint(ctx context.Context, name string, cursor subscribe.Cursor, input subscribe.Input, at time.Time) error {
	channels, err := canonical.Marshal(input.Channels())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	groups, err := canonical.Marshal(input.Groups())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (name, timetoken, region, channels, channel_groups, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			timetoken = excluded.timetoken,
			region = excluded.region,
			channels = excluded.channels,
			channel_groups = excluded.channel_groups,
			updated_at = excluded.updated_at
		WHERE excluded.timetoken >= checkpoints.timetoken
	`,
		name,
		int64(cursor.Timetoken),
		cursor.Region,
		string(channels),
		string(groups),
		at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns name's checkpoint, or ErrNoCheckpoint.
func (s *Store) LoadCheckpoint(ctx context.Context, name string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, timetoken, region, channels, channel_groups, updated_at
		FROM checkpoints
		WHERE name = ?
	`, name)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNoCheckpoint
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint %q: %w", name, err)
	}
	return cp, nil
}

// ListCheckpoints returns every checkpoint ordered by name.
func (s *Store) ListCheckpoints(ctx context.Context) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, timetoken, region, channels, channel_groups, updated_at
		FROM checkpoints
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// DeleteCheckpoint forgets name's resume point.
func (s *Store) DeleteCheckpoint(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", name, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (Checkpoint, error) {
	var (
		cp                 Checkpoint
		timetoken, updated int64
		channels, groups   string
	)
	if err := row.Scan(&cp.Name, &timetoken, &cp.Cursor.Region, &channels, &groups, &updated); err != nil {
		return Checkpoint{}, err
	}
	cp.Cursor.Timetoken = uint64(timetoken)
	cp.UpdatedAt = time.Unix(0, updated)

	if err := json.Unmarshal([]byte(channels), &cp.Channels); err != nil {
		return Checkpoint{}, fmt.Errorf("decode channels: %w", err)
	}
	if err := json.Unmarshal([]byte(groups), &cp.Groups); err != nil {
		return Checkpoint{}, fmt.Errorf("decode groups: %w", err)
	}
	return cp, nil
}
