// Package types defines the JSON error response shape the proxy core
// writes for requests it terminates itself — no route matched, no
// healthy endpoint, an upstream failure — as distinct from a response a
// plugin or an upstream service produced, which passes through
// untouched.
package types
