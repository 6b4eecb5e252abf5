package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/longpoll"
	"github.com/roach88/longpoll/internal/config"
	"github.com/roach88/longpoll/internal/subscribe"
)

// SubscribeOptions holds flags for the subscribe command.
type SubscribeOptions struct {
	*RootOptions
	Config   string
	Channels []string
	Groups   []string
	Presence bool
	Database string
	Name     string

	// Transport allows overriding the HTTP transport (for testing).
	// If nil, the transport is built from the config file.
	Transport subscribe.Transport
}

// MessageOutput is one delivered message as printed by subscribe.
type MessageOutput struct {
	Kind    string            `json:"kind"`
	Cursor  string            `json:"cursor"`
	Message subscribe.Message `json:"message"`
}

// StatusOutput is one status event as printed by subscribe.
type StatusOutput struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Previous string `json:"previous"`
	Error    string `json:"error,omitempty"`
}

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	return newSubscribeCommand(&SubscribeOptions{RootOptions: rootOpts})
}

func newSubscribeCommand(opts *SubscribeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe and print messages until interrupted",
		Long: `Run a subscribe client and print every delivered message and status
change until SIGINT or SIGTERM.

Channels and groups from the flags are added to those in the config file.
With --db the client journals every delivered batch and, on the next run,
resumes from the stored cursor instead of handshaking again.

Example:
  longpoll subscribe --config ./longpoll.yaml -c news -c sports
  longpoll subscribe --config ./longpoll.yaml -g feeds --presence --db ./longpoll.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to client config file (required)")
	cmd.Flags().StringArrayVarP(&opts.Channels, "channel", "c", nil, "channel to subscribe to (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Groups, "group", "g", nil, "channel group to subscribe to (repeatable)")
	cmd.Flags().BoolVar(&opts.Presence, "presence", false, "also subscribe to presence channels")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "subscriber name checkpoints are stored under")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSubscribe(opts *SubscribeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			_ = formatter.Error(ErrCodeInvalidConfig, "invalid config", verrs.Error())
			return WrapExitError(ExitFailure, "invalid config", err)
		}
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}
	applySubscribeFlags(cfg, opts)

	clientOpts := []longpoll.Option{longpoll.WithLogger(logger)}
	if opts.Transport != nil {
		clientOpts = append(clientOpts, longpoll.WithTransport(opts.Transport))
	}
	client, err := longpoll.NewFromConfig(cfg, clientOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "start client", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			slog.Error("error closing client", "error", closeErr)
		}
	}()

	remove := client.AddListener(printListener(formatter))
	defer remove()

	if len(cfg.Channels) > 0 || len(cfg.Groups) > 0 {
		if err := client.Subscribe(cfg.Channels, cfg.Groups); err != nil {
			return WrapExitError(ExitFailure, "subscribe", err)
		}
	}
	if client.Input().IsEmpty() {
		_ = formatter.Error(ErrCodeGeneric, "nothing to subscribe to: pass -c/-g or set channels in the config", nil)
		return NewExitError(ExitCommandError, "no channels or groups")
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	slog.Info("subscribed", "name", cfg.Name, "input", client.Input(), "origin", cfg.Origin)
	formatter.VerboseLog("Subscribed to %s. Press Ctrl-C to stop.", client.Input())

	<-ctx.Done()
	slog.Info("client stopping", "state", client.State())
	return nil
}

func applySubscribeFlags(cfg *config.Config, opts *SubscribeOptions) {
	cfg.Channels = append(cfg.Channels, opts.Channels...)
	cfg.Groups = append(cfg.Groups, opts.Groups...)
	if opts.Presence {
		cfg.Presence = true
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Name != "" {
		cfg.Name = opts.Name
	}
}

// printListener writes every delivery through the formatter. Listener calls
// arrive on the engine goroutine one at a time.
func printListener(f *OutputFormatter) subscribe.Listener {
	return subscribe.ListenerFuncs{
		Messages: func(batch subscribe.MessageBatch) {
			for _, m := range batch.Messages {
				if f.Format == "json" {
					_ = f.Success(MessageOutput{Kind: "message", Cursor: batch.Cursor.String(), Message: m})
					continue
				}
				fmt.Fprintf(f.Writer, "[%s] %s %s", m.Published, m.Type, m.Channel)
				if m.Publisher != "" {
					fmt.Fprintf(f.Writer, " <%s>", m.Publisher)
				}
				fmt.Fprintf(f.Writer, ": %s\n", describePayload(m))
			}
		},
		Status: func(s subscribe.StatusEvent) {
			out := StatusOutput{
				Kind:     "status",
				Category: string(s.Category),
				Status:   s.Status.String(),
				Previous: s.Previous.String(),
				Error:    s.ErrorMessage(),
			}
			if f.Format == "json" {
				_ = f.Success(out)
				return
			}
			fmt.Fprintf(f.Writer, "status %s: %s -> %s", out.Category, out.Previous, out.Status)
			if out.Error != "" {
				fmt.Fprintf(f.Writer, " (%s)", out.Error)
			}
			fmt.Fprintln(f.Writer)
		},
	}
}

func describePayload(m subscribe.Message) string {
	if p := m.Presence; p != nil {
		who := p.UserID
		if who == "" {
			who = "-"
		}
		return fmt.Sprintf("%s %s (occupancy %d)", p.Action, who, p.Occupancy)
	}
	return string(m.Payload)
}
