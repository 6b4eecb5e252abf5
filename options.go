package longpoll

import (
	"log/slog"

	"github.com/roach88/longpoll/internal/engine"
	"github.com/roach88/longpoll/internal/retry"
	"github.com/roach88/longpoll/internal/store"
	"github.com/roach88/longpoll/internal/subscribe"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	transport       subscribe.Transport
	clock           subscribe.Clock
	policy          retry.Policy
	maxMessageCount int
	cacheCapacity   int
	logger          *slog.Logger
	name            string
	presence        bool
	dbPath          string
	store           *store.Store
	observers       []func(subscribe.Step)
	engineOpts      []engine.EngineOption
}

func defaultOptions() options {
	return options{
		cacheCapacity: subscribe.DefaultCacheCapacity,
		name:          "default",
	}
}

// WithTransport sets the transport subscribe requests go through. Required.
func WithTransport(t subscribe.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithClock sets the clock reconnect backoff waits on.
func WithClock(c subscribe.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithRetryPolicy sets the reconnection policy. Defaults to retry.Default().
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithMaxMessageCount sets the largest batch delivered to listeners.
// Negative disables the check.
func WithMaxMessageCount(n int) Option {
	return func(o *options) {
		o.maxMessageCount = n
	}
}

// WithCacheCapacity sets the size of the duplicate-message cache. Zero
// disables deduplication.
func WithCacheCapacity(n int) Option {
	return func(o *options) {
		o.cacheCapacity = n
	}
}

// WithLogger sets the logger for the client and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithName sets the subscriber name checkpoints are stored under.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithPresence adds the presence channel of every subscribed channel.
func WithPresence(enabled bool) Option {
	return func(o *options) {
		o.presence = enabled
	}
}

// WithDatabase opens a checkpoint store at path. The client owns it and
// closes it on Close.
func WithDatabase(path string) Option {
	return func(o *options) {
		o.dbPath = path
	}
}

// WithStore uses an already open store. The caller keeps ownership.
func WithStore(s *store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithStepObserver registers fn to see every processed event.
func WithStepObserver(fn func(subscribe.Step)) Option {
	return func(o *options) {
		o.observers = append(o.observers, fn)
	}
}

// WithEngineOptions passes options through to the underlying engine.
func WithEngineOptions(opts ...engine.EngineOption) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}
