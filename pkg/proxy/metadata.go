package proxy

import (
	"net/http"
	"time"
)

// RequestMetadata is the fixed set of fields the Logging phase and the
// access log emit for every request, independent of which route or
// service handled it.
type RequestMetadata struct {
	RequestID string
	Method    string
	Path      string
	Host      string
	UserAgent string
	RemoteAddr string
	Timestamp time.Time
}

// ResponseMetadata is the matching set of fields recorded once a
// request settles, whatever produced the response: an upstream
// service, a plugin, a static file, or the proxy core's own error
// path.
type ResponseMetadata struct {
	RequestID string

	// Route is the matched route path pattern ("" if matching failed).
	Route string
	// Service is the name of the service the route selected ("" if
	// matching failed before service selection).
	Service string

	StatusCode   int
	BytesWritten int64
	Duration     time.Duration
	Error        error
	Timestamp    time.Time
}

// ExtractRequestMetadata builds a RequestMetadata from the live HTTP
// request, pairing it with the request ID the RequestID middleware
// already attached to the request context.
func ExtractRequestMetadata(r *http.Request, requestID string) *RequestMetadata {
	return &RequestMetadata{
		RequestID:  requestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		Host:       r.Host,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Timestamp:  time.Now(),
	}
}

// ExtractResponseMetadata builds the ResponseMetadata for a request
// that reached a matched route and service.
func ExtractResponseMetadata(requestID, route, service string, statusCode int, bytesWritten int64, duration time.Duration) *ResponseMetadata {
	return &ResponseMetadata{
		RequestID:    requestID,
		Route:        route,
		Service:      service,
		StatusCode:   statusCode,
		BytesWritten: bytesWritten,
		Duration:     duration,
		Timestamp:    time.Now(),
	}
}

// ExtractErrorMetadata builds the ResponseMetadata for a request the
// proxy core terminated itself before or instead of reaching a service.
func ExtractErrorMetadata(requestID string, statusCode int, err error, duration time.Duration) *ResponseMetadata {
	return &ResponseMetadata{
		RequestID:  requestID,
		StatusCode: statusCode,
		Duration:   duration,
		Error:      err,
		Timestamp:  time.Now(),
	}
}

// IsSuccess reports whether the response was a 2xx.
func (m *ResponseMetadata) IsSuccess() bool {
	return m.StatusCode >= 200 && m.StatusCode < 300
}

// IsError reports whether the request failed, either with an explicit
// error or a 4xx/5xx status.
func (m *ResponseMetadata) IsError() bool {
	return m.Error != nil || m.StatusCode >= 400
}
