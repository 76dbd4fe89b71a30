// Package dedup implements the messaging transport's request-id
// deduplication set (spec §4.4.2): "the core keeps a set of recently-seen
// request_ids per session for deduplication of retries (at-least-once
// delivery)". This is a bounded, prunable idempotency cache, not
// persistent storage of business state — entries age out once a session
// closes or a retention window passes.
//
// Adapted from the teacher's pkg/limits/storage package: MemoryStore
// follows MemoryBackend's map-plus-mutex-plus-periodic-cleanup shape
// (with a plain sync.Mutex), and SQLiteStore mirrors SQLiteBackend's
// database/sql-over-modernc.org/sqlite
// WAL setup with prepared statements — both restructured around a single
// narrow "have I seen this request_id for this session" question instead
// of the teacher's general rate-limit/budget LimitState record.
package dedup
