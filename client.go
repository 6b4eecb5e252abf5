// Package longpoll is a long-poll subscribe client built on an event engine.
//
// A Client owns one subscribe engine and the goroutine that runs it. Every
// public method only submits an event; the engine decides what the event
// means for the current state and starts or cancels the network effects.
// Messages and connection statuses reach the application through listeners.
//
//	c, err := longpoll.New(longpoll.WithTransport(t))
//	remove := c.AddListener(subscribe.ListenerFuncs{Messages: handle})
//	defer remove()
//	c.Subscribe([]string{"news"}, nil)
package longpoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/longpoll/internal/config"
	"github.com/roach88/longpoll/internal/engine"
	"github.com/roach88/longpoll/internal/store"
	"github.com/roach88/longpoll/internal/subscribe"
	"github.com/roach88/longpoll/internal/transport"
)

var (
	// ErrNoTransport is returned by New when no transport was configured.
	ErrNoTransport = errors.New("longpoll: no transport configured")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("longpoll: client closed")
)

// Client is a running subscribe client.
//
// Thread-safety: All methods are safe for concurrent use.
type Client struct {
	engine  *subscribe.Engine
	factory *subscribe.EffectFactory
	logger  *slog.Logger
	name    string

	presence bool

	store     *store.Store
	ownsStore bool

	mu     sync.Mutex
	input  subscribe.Input
	closed bool

	cancel context.CancelFunc
	done   chan error
}

// New builds a client and starts its engine. When a store is configured the
// last checkpoint for the client's name is restored before New returns.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		return nil, ErrNoTransport
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{
		logger:   o.logger,
		name:     o.name,
		presence: o.presence,
		store:    o.store,
		done:     make(chan error, 1),
	}

	if c.store == nil && o.dbPath != "" {
		s, err := store.Open(o.dbPath)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		c.store = s
		c.ownsStore = true
	}

	c.engine, c.factory = subscribe.NewEngine(subscribe.Dependencies{
		Transport:       o.transport,
		Clock:           o.clock,
		Policy:          o.policy,
		Cache:           subscribe.NewMessageCache(o.cacheCapacity),
		MaxMessageCount: o.maxMessageCount,
		Logger:          o.logger,
	}, o.engineOpts...)

	for _, fn := range o.observers {
		c.engine.Observe(fn)
	}
	if c.store != nil {
		c.factory.Listeners().Add(store.NewJournal(c.store, c.name, c.Input, c.logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		c.done <- c.engine.Run(ctx)
	}()

	if c.store != nil {
		if _, err := c.Restore(context.Background()); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// NewFromConfig builds a client from a decoded configuration: an HTTP
// transport, the configured retry policy, cache and database. opts are
// applied after the configuration and may override it.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	secure := cfg.Secure == nil || *cfg.Secure
	t := transport.New(cfg.SubscribeKey,
		transport.WithOrigin(cfg.Origin),
		transport.WithSecure(secure),
		transport.WithUserID(cfg.UserID),
		transport.WithHeartbeat(cfg.Heartbeat),
		transport.WithFilterExpression(cfg.FilterExpression),
		transport.WithRequestTimeout(time.Duration(cfg.RequestTimeout)),
	)

	base := []Option{
		WithTransport(t),
		WithRetryPolicy(policy),
		WithMaxMessageCount(cfg.MaxMessageCount),
		WithName(cfg.Name),
		WithPresence(cfg.Presence),
	}
	if cfg.CacheCapacity != nil {
		base = append(base, WithCacheCapacity(*cfg.CacheCapacity))
	}
	if cfg.Database != "" {
		base = append(base, WithDatabase(cfg.Database))
	}
	return New(append(base, opts...)...)
}

// Subscribe adds channels and groups to the subscription.
func (c *Client) Subscribe(channels, groups []string) error {
	return c.change(func(cur subscribe.Input) subscribe.Input {
		return cur.Union(c.expand(subscribe.NewInput(channels, groups)))
	})
}

// Unsubscribe removes channels and groups from the subscription. Removing
// everything unsubscribes entirely.
func (c *Client) Unsubscribe(channels, groups []string) error {
	return c.change(func(cur subscribe.Input) subscribe.Input {
		return cur.Subtract(subscribe.NewInput(channels, groups).WithPresence())
	})
}

// UnsubscribeAll drops the whole subscription and stops all requests.
func (c *Client) UnsubscribeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.input = subscribe.Input{}
	c.engine.Send(subscribe.UnsubscribeAll{})
	return nil
}

// SubscribeFrom replaces the subscription and resumes at cursor instead of
// handshaking for a new one.
func (c *Client) SubscribeFrom(channels, groups []string, cursor subscribe.Cursor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.input = c.expand(subscribe.NewInput(channels, groups))
	c.engine.Send(subscribe.SubscriptionRestored{
		Channels: c.input.Channels(),
		Groups:   c.input.Groups(),
		Cursor:   cursor,
	})
	return nil
}

// Restore resumes from the stored checkpoint for the client's name. It
// reports false when there is no store or no checkpoint.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	cp, err := c.store.LoadCheckpoint(ctx, c.name)
	if errors.Is(err, store.ErrNoCheckpoint) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load checkpoint %q: %w", c.name, err)
	}

	in := cp.Input()
	c.logger.Info("restoring subscription", "name", c.name, "cursor", cp.Cursor, "input", in)
	if err := c.SubscribeFrom(in.Channels(), in.Groups(), cp.Cursor); err != nil {
		return false, err
	}
	return true, nil
}

// Disconnect pauses the subscription, keeping its cursor.
func (c *Client) Disconnect() error {
	return c.send(subscribe.Disconnect{})
}

// Reconnect resumes a paused or failed subscription.
func (c *Client) Reconnect() error {
	return c.send(subscribe.Reconnect{})
}

// AddListener registers l for messages and statuses. Call the returned
// function to remove it.
func (c *Client) AddListener(l subscribe.Listener) (remove func()) {
	return c.factory.Listeners().Add(l)
}

// State returns the engine's current state.
func (c *Client) State() subscribe.State {
	return c.engine.State()
}

// Status returns the connection status of the current state.
func (c *Client) Status() subscribe.ConnectionStatus {
	return c.engine.State().ConnectionStatus()
}

// Input returns the subscription the client was last asked for.
func (c *Client) Input() subscribe.Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Close stops the engine, cancels in-flight requests and closes a store the
// client opened. Close is idempotent.
//
// Called from inside a listener, Close cannot wait for the engine goroutine
// it is running on: it stops the engine and returns, and the store is closed
// once Run has returned.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.engine.Stop()
	if c.factory.Listeners().Emitting() {
		go func() {
			if err := c.finish(); err != nil {
				c.logger.Error("close after listener shutdown", "error", err)
			}
		}()
		return nil
	}
	return c.finish()
}

// finish waits for Run to return and releases what the client owns.
func (c *Client) finish() error {
	err := <-c.done
	c.cancel()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, engine.ErrEngineStopped) {
		c.logger.Warn("engine stopped with error", "error", err)
	}

	if c.ownsStore {
		if cerr := c.store.Close(); cerr != nil {
			return fmt.Errorf("close checkpoint store: %w", cerr)
		}
	}
	return nil
}

func (c *Client) change(next func(subscribe.Input) subscribe.Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.input = next(c.input)
	c.engine.Send(subscribe.SubscriptionChanged{
		Channels: c.input.Channels(),
		Groups:   c.input.Groups(),
	})
	return nil
}

func (c *Client) send(event subscribe.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.engine.Send(event)
	return nil
}

func (c *Client) expand(in subscribe.Input) subscribe.Input {
	if c.presence {
		return in.WithPresence()
	}
	return in
}
