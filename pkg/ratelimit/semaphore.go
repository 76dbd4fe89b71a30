package ratelimit

import (
	"context"
	"sync/atomic"
)

// OverflowPolicy governs what happens when max_inflight is already
// saturated (spec §4.4.2).
type OverflowPolicy string

const (
	// OverflowQueue blocks the acquirer until a slot frees up.
	OverflowQueue OverflowPolicy = "queue"
	// OverflowReject fails the acquire immediately. Nothing on this path
	// writes a 503; the failure reaches the pipeline as a step error.
	OverflowReject OverflowPolicy = "reject"
	// OverflowShed fails the step but, under on_error:continue, lets
	// the pipeline proceed without this plugin's contribution.
	OverflowShed OverflowPolicy = "shed"
)

// Semaphore is a counting semaphore over a fixed limit, used as the
// max_inflight cap per plugin. It holds a buffered channel of `limit`
// slots plus an atomic counter that Inflight reports. Adapted from the
// teacher's ConcurrentLimiter, plus a blocking Acquire for
// OverflowQueue, which the teacher's version (a pure reject-on-full
// HTTP rate limiter) never needed.
type Semaphore struct {
	limit   int64
	current int64
	slots   chan struct{}
}

// NewSemaphore creates a semaphore admitting at most limit concurrent
// holders. limit <= 0 means unlimited (TryAcquire/Acquire always
// succeed).
func NewSemaphore(limit int) *Semaphore {
	s := &Semaphore{limit: int64(limit)}
	if limit > 0 {
		s.slots = make(chan struct{}, limit)
	}
	return s
}

// TryAcquire attempts to acquire a slot without blocking. Used for
// OverflowReject and OverflowShed.
func (s *Semaphore) TryAcquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		atomic.AddInt64(&s.current, 1)
		return true
	default:
		return false
	}
}

// Acquire blocks until a slot is available or ctx is cancelled. Used for
// OverflowQueue.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if s.slots == nil {
		return nil
	}
	select {
	case s.slots <- struct{}{}:
		atomic.AddInt64(&s.current, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously-acquired slot.
func (s *Semaphore) Release() {
	if s.slots == nil {
		return
	}
	select {
	case <-s.slots:
		atomic.AddInt64(&s.current, -1)
	default:
	}
}

// Inflight returns the current number of held slots, for the
// plugins_messaging_inflight gauge (spec §6.3).
func (s *Semaphore) Inflight() int64 {
	return atomic.LoadInt64(&s.current)
}

// Limit returns the configured cap (0 means unlimited).
func (s *Semaphore) Limit() int64 {
	return s.limit
}
