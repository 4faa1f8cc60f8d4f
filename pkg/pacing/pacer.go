package pacing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/developkariyer/IWApim/pkg/clock"
)

const (
	DefaultBackoffStep  = time.Second
	DefaultMaxBackoff   = 30 * time.Second
	DefaultMaxRetries   = 5
	DefaultPollInterval = 5 * time.Second
)

// Policy describes how one connector talks to its marketplace.
type Policy struct {
	// MinInterval is the steady-state delay between calls, independent of errors.
	MinInterval time.Duration
	// BackoffStep is multiplied by the failure counter (linear backoff).
	BackoffStep time.Duration
	MaxBackoff  time.Duration
	// MaxRetries caps retries of a single request.
	MaxRetries int
	// PollInterval is the fixed delay between async report status checks.
	PollInterval time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.BackoffStep <= 0 {
		p.BackoffStep = DefaultBackoffStep
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	return p
}

// Pacer combines the steady-state limiter with the failure counter of one connector.
// The counter is not reset by a successful call; it lives until Reset at pass start.
type Pacer struct {
	policy  Policy
	limiter *rate.Limiter
	clock   clock.Clock

	mu       sync.Mutex
	failures int
}

func New(policy Policy, clk clock.Clock) *Pacer {
	policy = policy.withDefaults()
	if clk == nil {
		clk = clock.Real()
	}
	limit := rate.Inf
	if policy.MinInterval > 0 {
		limit = rate.Every(policy.MinInterval)
	}
	return &Pacer{
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clk,
	}
}

func (p *Pacer) Policy() Policy {
	return p.policy
}

// Wait blocks until the next call is allowed by the minimum inter-call delay.
// Tokens are reserved and slept on the pacer's clock, not the wall clock.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("rate limiter: reservation exceeds burst")
	}
	if d := r.DelayFrom(now); d > 0 {
		if err := p.clock.Sleep(ctx, d); err != nil {
			r.CancelAt(p.clock.Now())
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}

// Failure registers a failed attempt and returns the new counter value.
func (p *Pacer) Failure() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	return p.failures
}

func (p *Pacer) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = 0
}

// BackoffDelay is failures*BackoffStep capped at MaxBackoff.
func (p *Pacer) BackoffDelay() time.Duration {
	p.mu.Lock()
	n := p.failures
	p.mu.Unlock()
	d := time.Duration(n) * p.policy.BackoffStep
	if d > p.policy.MaxBackoff {
		d = p.policy.MaxBackoff
	}
	return d
}

func (p *Pacer) Backoff(ctx context.Context) error {
	return p.clock.Sleep(ctx, p.BackoffDelay())
}

// Poll sleeps the fixed async-report polling delay.
func (p *Pacer) Poll(ctx context.Context) error {
	return p.clock.Sleep(ctx, p.policy.PollInterval)
}

// Pause sleeps an explicit delay, e.g. per-item pacing demanded by a marketplace.
func (p *Pacer) Pause(ctx context.Context, d time.Duration) error {
	return p.clock.Sleep(ctx, d)
}

func (p *Pacer) Clock() clock.Clock {
	return p.clock
}
