// Package retry computes reconnection delays and give-up decisions.
//
// A Policy is plain configuration: it never sleeps or performs I/O. Effects
// ask it how long to wait before a given attempt and whether an error is worth
// retrying at all.
package retry

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Kind selects the backoff curve.
type Kind string

const (
	// Immediate retries without delay.
	Immediate Kind = "immediate"
	// Linear waits the same Delay before every attempt.
	Linear Kind = "linear"
	// Exponential waits MinDelay*Multiplier^attempt, capped at MaxDelay.
	Exponential Kind = "exponential"
)

// Defaults used when a policy leaves a field unset.
const (
	DefaultLimit      = 6
	DefaultDelay      = 2 * time.Second
	DefaultMinDelay   = 2 * time.Second
	DefaultMaxDelay   = 150 * time.Second
	DefaultMultiplier = 2.0
)

// Categorized is implemented by errors that carry a retry category, such as
// "timeout" or "badStatus".
type Categorized interface {
	Category() string
}

// Policy is a reconnection policy.
type Policy struct {
	Kind Kind

	// Limit is the number of reconnect attempts before giving up.
	Limit int

	// Delay is the fixed wait for Linear.
	Delay time.Duration

	// MinDelay, MaxDelay and Multiplier shape Exponential.
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// Excluded lists error categories that are never retried.
	Excluded []string
}

// Default returns the exponential policy used when none is configured.
func Default() Policy {
	return Policy{
		Kind:       Exponential,
		Limit:      DefaultLimit,
		MinDelay:   DefaultMinDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
	}
}

// None returns a policy that gives up on the first failure.
func None() Policy {
	return Policy{Kind: Immediate, Limit: 0}
}

// Validate checks the policy for impossible settings.
func (p Policy) Validate() error {
	switch p.Kind {
	case Immediate, Linear, Exponential:
	default:
		return fmt.Errorf("unknown retry policy kind %q", p.Kind)
	}
	if p.Limit < 0 {
		return fmt.Errorf("retry limit must be >= 0, got %d", p.Limit)
	}
	if p.Delay < 0 || p.MinDelay < 0 || p.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if p.Kind == Exponential && p.MaxDelay > 0 && p.MinDelay > p.MaxDelay {
		return fmt.Errorf("min delay %s exceeds max delay %s", p.MinDelay, p.MaxDelay)
	}
	if p.Multiplier < 0 {
		return fmt.Errorf("multiplier must be >= 0, got %v", p.Multiplier)
	}
	return nil
}

// Backoff returns the wait before the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	switch p.Kind {
	case Linear:
		if p.Delay == 0 {
			return DefaultDelay
		}
		return p.Delay

	case Exponential:
		minDelay, maxDelay, mult := p.MinDelay, p.MaxDelay, p.Multiplier
		if minDelay == 0 {
			minDelay = DefaultMinDelay
		}
		if maxDelay == 0 {
			maxDelay = DefaultMaxDelay
		}
		if mult == 0 {
			mult = DefaultMultiplier
		}
		d := float64(minDelay) * math.Pow(mult, float64(attempt))
		if d > float64(maxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
			return maxDelay
		}
		return time.Duration(d)

	default:
		return 0
	}
}

// Exhausted reports whether attempt has reached the retry limit.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.Limit
}

// Retryable reports whether err may be retried. Errors without a category
// are retryable unless the policy allows no attempts at all.
func (p Policy) Retryable(err error) bool {
	if err == nil || p.Limit == 0 {
		return false
	}
	var c Categorized
	if errors.As(err, &c) {
		return !slices.Contains(p.Excluded, c.Category())
	}
	return true
}

// String renders the policy for logs.
func (p Policy) String() string {
	switch p.Kind {
	case Linear:
		return fmt.Sprintf("linear(delay=%s, limit=%d)", p.Backoff(0), p.Limit)
	case Exponential:
		return fmt.Sprintf("exponential(min=%s, max=%s, limit=%d)", p.Backoff(0), p.MaxDelayOrDefault(), p.Limit)
	default:
		return fmt.Sprintf("%s(limit=%d)", p.Kind, p.Limit)
	}
}

// MaxDelayOrDefault returns MaxDelay, or the default when unset.
func (p Policy) MaxDelayOrDefault() time.Duration {
	if p.MaxDelay == 0 {
		return DefaultMaxDelay
	}
	return p.MaxDelay
}
