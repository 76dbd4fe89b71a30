// Package ratelimit provides the counting semaphore the Messaging plugin
// transport uses to enforce max_inflight (spec §4.4.2): a per-plugin cap
// on concurrent invocations, with queue/reject/shed overflow behavior.
//
// Adapted from the teacher's pkg/limits/ratelimit/concurrent.go
// (ConcurrentLimiter, a lock-free atomic counting semaphore). The
// teacher's token_bucket.go and sliding_window.go implement per-API-key
// request-rate limiting for an LLM gateway's cost/budget controls; spec's
// only rate-limiting concept is this concurrency cap, so those two were
// not adapted (see DESIGN.md).
package ratelimit
