// Package config loads and validates longpoll client configuration.
//
// A configuration file is YAML. Before decoding, the document is checked
// against an embedded CUE schema so typos and out-of-range values are
// reported with their line numbers instead of surfacing as odd runtime
// behavior.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/longpoll/internal/retry"
	"github.com/roach88/longpoll/internal/subscribe"
)

// Defaults applied by Parse.
const (
	DefaultOrigin         = "ps.pndsn.com"
	DefaultName           = "default"
	DefaultHeartbeat      = 300
	DefaultRequestTimeout = 310 * time.Second
)

// Config is a decoded client configuration.
type Config struct {
	SubscribeKey     string   `yaml:"subscribe_key"`
	Name             string   `yaml:"name"`
	Origin           string   `yaml:"origin"`
	Secure           *bool    `yaml:"secure"`
	UserID           string   `yaml:"user_id"`
	Heartbeat        int      `yaml:"heartbeat"`
	RequestTimeout   Duration `yaml:"request_timeout"`
	Presence         bool     `yaml:"presence"`
	FilterExpression string   `yaml:"filter_expression"`
	Channels         []string `yaml:"channels"`
	Groups           []string `yaml:"groups"`
	MaxMessageCount  int      `yaml:"max_message_count"`
	CacheCapacity    *int     `yaml:"cache_capacity"`
	Database         string   `yaml:"database"`
	Retry            Retry    `yaml:"retry"`
}

// Retry configures reconnection.
type Retry struct {
	Policy     string   `yaml:"policy"`
	Limit      *int     `yaml:"limit"`
	Delay      Duration `yaml:"delay"`
	MinDelay   Duration `yaml:"min_delay"`
	MaxDelay   Duration `yaml:"max_delay"`
	Multiplier float64  `yaml:"multiplier"`
	Excluded   []string `yaml:"excluded"`
}

// Duration is a time.Duration written as a Go duration string ("2s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates data against the schema, decodes it and applies
// defaults. filename is used in error positions.
func Parse(data []byte, filename string) (*Config, error) {
	if err := Validate(data, filename); err != nil {
		return nil, err
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", filename, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if _, err := cfg.Policy(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Origin == "" {
		c.Origin = DefaultOrigin
	}
	if c.Secure == nil {
		secure := true
		c.Secure = &secure
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = DefaultHeartbeat
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.MaxMessageCount == 0 {
		c.MaxMessageCount = subscribe.DefaultMaxMessageCount
	}
	if c.CacheCapacity == nil {
		capacity := subscribe.DefaultCacheCapacity
		c.CacheCapacity = &capacity
	}
	if c.UserID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate user id: %w", err)
		}
		c.UserID = id.String()
	}
	return nil
}

// Input returns the configured subscription, with presence channels added
// when Presence is set.
func (c *Config) Input() subscribe.Input {
	in := subscribe.NewInput(c.Channels, c.Groups)
	if c.Presence {
		in = in.WithPresence()
	}
	return in
}

// Policy converts the retry section to a retry.Policy. An absent section
// yields retry.Default().
func (c *Config) Policy() (retry.Policy, error) {
	r := c.Retry

	var p retry.Policy
	switch r.Policy {
	case "":
		p = retry.Default()
	case "none":
		return retry.None(), nil
	case "immediate":
		p = retry.Policy{Kind: retry.Immediate, Limit: retry.DefaultLimit}
	case "linear":
		p = retry.Policy{Kind: retry.Linear, Limit: retry.DefaultLimit, Delay: retry.DefaultDelay}
	case "exponential":
		p = retry.Default()
	default:
		return retry.Policy{}, fmt.Errorf("unknown retry policy %q", r.Policy)
	}

	if r.Limit != nil {
		p.Limit = *r.Limit
	}
	if r.Delay != 0 {
		p.Delay = time.Duration(r.Delay)
	}
	if r.MinDelay != 0 {
		p.MinDelay = time.Duration(r.MinDelay)
	}
	if r.MaxDelay != 0 {
		p.MaxDelay = time.Duration(r.MaxDelay)
	}
	if r.Multiplier != 0 {
		p.Multiplier = r.Multiplier
	}
	p.Excluded = append([]string(nil), r.Excluded...)

	if err := p.Validate(); err != nil {
		return retry.Policy{}, err
	}
	return p, nil
}

// ErrNoSubscribeKey is returned by Default when no key is given.
var ErrNoSubscribeKey = errors.New("subscribe key is required")

// Default returns a configuration with every default applied and the given
// subscribe key.
func Default(subscribeKey string) (*Config, error) {
	if subscribeKey == "" {
		return nil, ErrNoSubscribeKey
	}
	cfg := &Config{SubscribeKey: subscribeKey}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}
