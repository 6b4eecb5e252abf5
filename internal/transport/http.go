// Package transport implements subscribe.Transport over HTTP long-polling.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/roach88/longpoll/internal/subscribe"
	"github.com/roach88/longpoll/internal/wire"
)

// Defaults for a long-poll connection. The request timeout must exceed the
// server's poll window or every idle poll would fail.
const (
	DefaultOrigin         = "ps.pndsn.com"
	DefaultRequestTimeout = 310 * time.Second
	DefaultHeartbeat      = 300
)

// HTTP is a long-poll subscribe transport.
//
// Thread-safety: HTTP is safe for concurrent use; it holds no per-request
// state.
type HTTP struct {
	origin       string
	secure       bool
	subscribeKey string
	userID       string
	heartbeat    int
	filterExpr   string

	client *http.Client
	ids    IDGenerator
	logger *slog.Logger
}

var _ subscribe.Transport = (*HTTP)(nil)

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithOrigin sets the service host, optionally with a port.
func WithOrigin(origin string) Option {
	return func(h *HTTP) { h.origin = strings.TrimRight(origin, "/") }
}

// WithSecure selects https (the default) or http.
func WithSecure(secure bool) Option {
	return func(h *HTTP) { h.secure = secure }
}

// WithUserID sets the uuid query parameter.
func WithUserID(id string) Option {
	return func(h *HTTP) { h.userID = id }
}

// WithHeartbeat sets the presence heartbeat in seconds. Zero omits it.
func WithHeartbeat(seconds int) Option {
	return func(h *HTTP) { h.heartbeat = seconds }
}

// WithFilterExpression sets a server-side message filter.
func WithFilterExpression(expr string) Option {
	return func(h *HTTP) { h.filterExpr = expr }
}

// WithRequestTimeout bounds each subscribe call.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *HTTP) { h.client.Timeout = d }
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithIDGenerator sets the request ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *HTTP) { h.ids = g }
}

// WithLogger sets the logger for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTP) { h.logger = l }
}

// New creates a transport for subscribeKey.
func New(subscribeKey string, opts ...Option) *HTTP {
	h := &HTTP{
		origin:       DefaultOrigin,
		secure:       true,
		subscribeKey: subscribeKey,
		heartbeat:    DefaultHeartbeat,
		client:       &http.Client{Timeout: DefaultRequestTimeout},
		ids:          UUIDv7Generator{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe performs one handshake or receive call.
func (h *HTTP) Subscribe(ctx context.Context, req subscribe.Request) (subscribe.Response, error) {
	u := h.URL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return subscribe.Response{}, subscribe.NewError(subscribe.ReasonUnsupported, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return subscribe.Response{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return subscribe.Response{}, classify(ctx, err)
	}

	h.logger.Debug("subscribe response",
		"handshake", req.IsHandshake(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return subscribe.Response{}, statusError(resp.StatusCode, body)
	}
	return wire.Decode(body)
}

// URL renders the request URL for req.
func (h *HTTP) URL(req subscribe.Request) string {
	scheme := "https"
	if !h.secure {
		scheme = "http"
	}

	channels := req.Input.Channels()
	path := ","
	if len(channels) > 0 {
		escaped := make([]string, len(channels))
		for i, ch := range channels {
			escaped[i] = url.PathEscape(ch)
		}
		path = strings.Join(escaped, ",")
	}

	q := url.Values{}
	if req.IsHandshake() {
		q.Set("tt", "0")
	} else {
		q.Set("tt", strconv.FormatUint(req.Cursor.Timetoken, 10))
		q.Set("tr", strconv.Itoa(req.Cursor.Region))
	}
	if groups := req.Input.Groups(); len(groups) > 0 {
		q.Set("channel-group", strings.Join(groups, ","))
	}
	if h.userID != "" {
		q.Set("uuid", h.userID)
	}
	if h.heartbeat > 0 {
		q.Set("heartbeat", strconv.Itoa(h.heartbeat))
	}
	if h.filterExpr != "" {
		q.Set("filter-expr", h.filterExpr)
	}
	q.Set("requestid", h.ids.Generate())

	return fmt.Sprintf("%s://%s/v2/subscribe/%s/%s/0?%s",
		scheme, h.origin, url.PathEscape(h.subscribeKey), path, q.Encode())
}

// maxErrorBody caps the response text carried in a status error.
const maxErrorBody = 200

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func statusError(code int, body []byte) *subscribe.Error {
	if se, ok := wire.DecodeError(body); ok {
		return subscribe.NewStatusError(code, errors.New(se.Message))
	}
	text := strings.TrimSpace(string(body))
	text = truncate(text, maxErrorBody)
	if text == "" {
		text = http.StatusText(code)
	}
	return subscribe.NewStatusError(code, errors.New(text))
}

// classify maps a transport failure to a subscribe reason.
func classify(ctx context.Context, err error) *subscribe.Error {
	if ctx.Err() != nil {
		return subscribe.NewError(subscribe.ReasonCancelled, err)
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return subscribe.NewError(subscribe.ReasonTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return subscribe.NewError(subscribe.ReasonTimeout, err)
	case errors.As(err, &dnsErr):
		return subscribe.NewError(subscribe.ReasonHostUnreachable, err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return subscribe.NewError(subscribe.ReasonHostUnreachable, err)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return subscribe.NewError(subscribe.ReasonConnectionReset, err)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return subscribe.NewError(subscribe.ReasonHostUnreachable, err)
	}
	return subscribe.NewError(subscribe.ReasonUnknown, err)
}
