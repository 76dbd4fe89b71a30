package messaging

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
)

// ResolvePolicy reads a plugin's configured PhasePolicy for one phase
// fragment, applying spec §4.4.2's per-phase timeout defaults when the
// configuration is silent.
func ResolvePolicy(policies map[string]config.PhasePolicy, phaseFragment string, defaultTimeout time.Duration) transport.PhasePolicy {
	p, ok := policies[phaseFragment]
	if !ok {
		return transport.PhasePolicy{
			Timeout:        defaultTimeout,
			OnError:        "end",
			RetryMax:       config.DefaultRetryMax,
			BackoffInitial: config.DefaultRetryBackoffInitial,
			BackoffMax:     config.DefaultRetryBackoffMax,
		}
	}

	timeout := defaultTimeout
	if p.TimeoutMS > 0 {
		timeout = time.Duration(p.TimeoutMS) * time.Millisecond
	}
	onErr := p.OnError
	if onErr == "" {
		onErr = "end"
	}
	max := p.Retry.Max
	if max == 0 {
		max = config.DefaultRetryMax
	}
	initial := p.Retry.BackoffInitial
	if initial == 0 {
		initial = config.DefaultRetryBackoffInitial
	}
	backoffMax := p.Retry.BackoffMax
	if backoffMax == 0 {
		backoffMax = config.DefaultRetryBackoffMax
	}

	return transport.PhasePolicy{
		Timeout:        timeout,
		OnError:        onErr,
		RetryMax:       max,
		BackoffInitial: initial,
		BackoffMax:     backoffMax,
	}
}

// newExponentialBackOff builds a jittered exponential backoff generator.
// Each delay is drawn uniformly from [0, 2×interval], where interval is
// the current exponential step capped at max; it is not drawn from
// [0, interval].
func newExponentialBackOff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.RandomizationFactor = 1.0 // next delay uniform in [0, 2×current interval]
	b.Reset()
	return b
}

// waitBackoff blocks for the given backoff interval or until ctx is
// cancelled.
func waitBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
