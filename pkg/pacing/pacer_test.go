package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/pkg/clock"
)

func TestPacer_LinearBackoffWithCap(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := New(Policy{BackoffStep: 2 * time.Second, MaxBackoff: 5 * time.Second}, clk)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		p.Failure()
		require.NoError(t, p.Backoff(ctx))
	}

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, clk.Sleeps())
	assert.Equal(t, 4, p.Failures())
}

func TestPacer_ResetClearsCounter(t *testing.T) {
	p := New(Policy{}, clock.NewFake(time.Now()))
	p.Failure()
	p.Failure()
	assert.Equal(t, 2*DefaultBackoffStep, p.BackoffDelay())

	p.Reset()
	assert.Equal(t, time.Duration(0), p.BackoffDelay())
}

func TestPacer_Defaults(t *testing.T) {
	p := New(Policy{}, nil)
	pol := p.Policy()
	assert.Equal(t, DefaultMaxRetries, pol.MaxRetries)
	assert.Equal(t, DefaultPollInterval, pol.PollInterval)
	assert.NoError(t, p.Wait(context.Background()))
}

func TestPacer_PollUsesFixedDelay(t *testing.T) {
	clk := clock.NewFake(time.Now())
	p := New(Policy{PollInterval: 5 * time.Second}, clk)
	p.Failure()

	require.NoError(t, p.Poll(context.Background()))
	assert.Equal(t, []time.Duration{5 * time.Second}, clk.Sleeps())
}

func TestPacer_CancelledContext(t *testing.T) {
	p := New(Policy{MinInterval: time.Hour}, clock.NewFake(time.Now()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, p.Backoff(ctx))
	assert.Error(t, p.Wait(ctx))
}

func TestPacer_WaitUsesInjectedClock(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := New(Policy{MinInterval: 2 * time.Second}, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clk.Sleeps())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 4, 0, time.UTC), clk.Now())

	// idle long enough, next call goes out immediately
	clk.Advance(time.Minute)
	require.NoError(t, p.Wait(ctx))
	assert.Len(t, clk.Sleeps(), 2)
}
