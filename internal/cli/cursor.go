package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/longpoll/internal/store"
)

// CursorOptions holds flags for the cursor command.
type CursorOptions struct {
	*RootOptions
	Database string
	Name     string // only this subscriber
	Tail     int    // journal entries per subscriber
	Delete   bool   // delete the named checkpoint

	now func() time.Time
}

// CursorReport is the JSON payload of the cursor command.
type CursorReport struct {
	Subscribers []SubscriberReport `json:"subscribers"`
}

// SubscriberReport is one stored checkpoint with its journal tail.
type SubscriberReport struct {
	Name      string        `json:"name"`
	Cursor    string        `json:"cursor"`
	Channels  []string      `json:"channels"`
	Groups    []string      `json:"groups"`
	UpdatedAt time.Time     `json:"updated_at"`
	Journaled int64         `json:"journaled"`
	Tail      []store.Entry `json:"tail,omitempty"`
}

// NewCursorCommand creates the cursor command.
func NewCursorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CursorOptions{RootOptions: rootOpts, now: time.Now}

	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Show stored checkpoints and journal tail",
		Long: `Show the cursors a client would restore from, and the last messages it
journaled for each subscriber.

Examples:
  longpoll cursor --db ./longpoll.db
  longpoll cursor --db ./longpoll.db --name reader --tail 20
  longpoll cursor --db ./longpoll.db --name reader --delete`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCursor(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only show this subscriber")
	cmd.Flags().IntVar(&opts.Tail, "tail", 5, "journal entries to show per subscriber")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the checkpoint named by --name")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCursor(opts *CursorOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Opening would create the file; a missing database is a usage error.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	if opts.Delete && opts.Name == "" {
		return NewExitError(ExitCommandError, "--delete requires --name")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Delete {
		if err := st.DeleteCheckpoint(ctx, opts.Name); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "delete checkpoint", err)
		}
		return formatter.Success(fmt.Sprintf("deleted checkpoint %q", opts.Name))
	}

	report, err := buildCursorReport(ctx, st, opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read checkpoints", err)
	}

	if opts.Format == "json" {
		return formatter.Success(report)
	}
	outputCursorText(formatter, report, opts.now())
	return nil
}

func buildCursorReport(ctx context.Context, st *store.Store, opts *CursorOptions) (*CursorReport, error) {
	checkpoints, err := st.ListCheckpoints(ctx)
	if err != nil {
		return nil, err
	}

	report := &CursorReport{Subscribers: []SubscriberReport{}}
	for _, cp := range checkpoints {
		if opts.Name != "" && cp.Name != opts.Name {
			continue
		}
		count, err := st.JournalCount(ctx, cp.Name)
		if err != nil {
			return nil, err
		}
		var tail []store.Entry
		if opts.Tail > 0 {
			if tail, err = st.TailJournal(ctx, cp.Name, opts.Tail); err != nil {
				return nil, err
			}
		}
		report.Subscribers = append(report.Subscribers, SubscriberReport{
			Name:      cp.Name,
			Cursor:    cp.Cursor.String(),
			Channels:  cp.Channels,
			Groups:    cp.Groups,
			UpdatedAt: cp.UpdatedAt,
			Journaled: count,
			Tail:      tail,
		})
	}
	return report, nil
}

func outputCursorText(f *OutputFormatter, report *CursorReport, now time.Time) {
	w := f.Writer
	if len(report.Subscribers) == 0 {
		fmt.Fprintln(w, "No checkpoints stored.")
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"name", "cursor", "channels", "groups", "updated", "journaled"})
	for _, s := range report.Subscribers {
		tbl.AppendRow(table.Row{
			s.Name,
			s.Cursor,
			strings.Join(s.Channels, ","),
			strings.Join(s.Groups, ","),
			humanize.RelTime(s.UpdatedAt, now, "ago", "from now"),
			humanize.Comma(s.Journaled),
		})
	}
	tbl.Render()

	for _, s := range report.Subscribers {
		if len(s.Tail) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s: last %d of %s message(s)\n", s.Name, len(s.Tail), humanize.Comma(s.Journaled))

		entries := table.NewWriter()
		entries.SetOutputMirror(w)
		entries.AppendHeader(table.Row{"seq", "published", "type", "channel", "publisher", "payload", "size"})
		for _, e := range s.Tail {
			entries.AppendRow(table.Row{
				e.Seq,
				e.Published.String(),
				e.Type,
				e.Channel,
				e.Publisher,
				truncate(string(e.Payload), 48),
				humanize.Bytes(uint64(len(e.Payload))),
			})
		}
		entries.Render()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
