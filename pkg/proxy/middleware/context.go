package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for storing values in request context.
const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"

	// UserIDKey stores an identifier extracted from request headers, for
	// deployments that run an auth plugin ahead of the proxy core.
	UserIDKey contextKey = "user_id"
)
