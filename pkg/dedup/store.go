package dedup

import "context"

// Store answers "has this request_id been seen for this session" and
// records new sightings. Implementations must be safe for concurrent use.
type Store interface {
	// SeenOrRecord returns true if requestID was already recorded for
	// sessionID; otherwise it records it and returns false. This must be
	// atomic with respect to concurrent callers for the same key.
	SeenOrRecord(ctx context.Context, sessionID uint32, requestID [16]byte) (bool, error)

	// Forget drops all recorded request-ids for a session, called when
	// the Session Handler reaches Terminal.
	Forget(ctx context.Context, sessionID uint32) error

	Close() error
}
