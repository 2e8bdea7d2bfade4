package fedds

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
)

const (
	DefaultMaxAttempts = 10
	DefaultInterval    = 3 * time.Second
)

// RetryPolicy runs op until it succeeds, fails with a non-transient error
// or runs out of attempts.
type RetryPolicy interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
)

// RetryConfig describes a Policy.
type RetryConfig struct {
	Strategy    Strategy
	MaxAttempts int           // total attempts, first one included
	Interval    time.Duration // fixed delay, or the first exponential delay
	MaxInterval time.Duration // exponential only
	Factor      float64       // exponential only, 2 when unset
	Transient   func(error) bool
}

// Policy is a RetryPolicy with fixed or exponential delays between
// attempts. It is immutable and safe for concurrent use.
type Policy struct {
	attempts  int
	delays    backoff.Backoff
	transient func(error) bool
	after     func(time.Duration) <-chan time.Time
}

// DefaultRetryPolicy returns the fixed policy used by handles built
// without one: 10 attempts, 3 seconds apart.
func DefaultRetryPolicy() *Policy {
	p, _ := NewRetryPolicy(RetryConfig{
		Strategy:    StrategyFixed,
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultInterval,
	})
	return p
}

func NewRetryPolicy(cfg RetryConfig) (*Policy, error) {
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("fedds: retry max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("fedds: negative retry interval %s", cfg.Interval)
	}

	p := &Policy{
		attempts:  cfg.MaxAttempts,
		transient: cfg.Transient,
		after:     time.After,
	}
	if p.transient == nil {
		p.transient = IsTransient
	}

	switch cfg.Strategy {
	case StrategyFixed, "":
		p.delays = backoff.Backoff{Min: cfg.Interval, Max: cfg.Interval, Factor: 1}
	case StrategyExponential:
		factor := cfg.Factor
		if factor <= 1 {
			factor = 2
		}
		max := cfg.MaxInterval
		if max == 0 {
			max = exponentialCeiling(cfg.Interval, factor, cfg.MaxAttempts)
		}
		if max < cfg.Interval {
			return nil, fmt.Errorf("fedds: retry max interval %s is below interval %s", max, cfg.Interval)
		}
		p.delays = backoff.Backoff{Min: cfg.Interval, Max: max, Factor: factor}
	default:
		return nil, fmt.Errorf("fedds: unknown retry strategy %q", cfg.Strategy)
	}
	return p, nil
}

// exponentialCeiling is the delay after the last retried attempt when no
// ceiling is configured, so that every wait grows by factor.
func exponentialCeiling(interval time.Duration, factor float64, attempts int) time.Duration {
	ceil := float64(interval) * math.Pow(factor, float64(attempts-2))
	if ceil < float64(interval) {
		return interval
	}
	if ceil >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ceil)
}

// WithTransient returns a copy of p that retries the errors fn accepts.
func (p *Policy) WithTransient(fn func(error) bool) *Policy {
	cp := *p
	cp.transient = fn
	return &cp
}

// ForBackend returns a copy of p that also retries the errors the backend
// reports as transient. p is returned as is when the backend does not
// implement TransientDetector.
func (p *Policy) ForBackend(opener Opener) *Policy {
	d, ok := opener.(TransientDetector)
	if !ok {
		return p
	}
	base := p.transient
	return p.WithTransient(func(err error) bool {
		return d.IsTransient(err) || base(err)
	})
}

// MaxAttempts reports the total number of attempts Do makes.
func (p *Policy) MaxAttempts() int { return p.attempts }

// Delay reports the wait after the given failed attempt (1-based).
func (p *Policy) Delay(attempt int) time.Duration {
	if p.delays.Min <= 0 {
		return 0
	}
	return p.delays.ForAttempt(float64(attempt - 1))
}

func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.transient(err) {
			return err
		}
		if attempt >= p.attempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-p.after(p.Delay(attempt)):
		}
	}
}

// IsTransient reports driver-agnostic failures worth retrying: broken
// connections, resets, refusals and network timeouts. Context errors are
// never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
