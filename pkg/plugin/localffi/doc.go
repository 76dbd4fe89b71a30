// Package localffi implements the Local-FFI plugin transport (spec
// §4.4.1): plugins are shared objects loaded at runtime via dlopen, per
// a path named in configuration (PluginBackend.SharedObjectPath) — not
// linked at Go build time, so this package resolves the six C-ABI
// symbols (initialize, shutdown, register_session_stream, event_stream,
// close_session_stream, plugin_free) dynamically rather than declaring
// them as build-time cgo externs.
//
// Grounded on the teacher's pkg/transcoder/rust.go cgo/FFI wrapper: same
// handle-struct-plus-finalizer shape, same runtime.KeepAlive discipline
// around buffers passed across the cgo boundary, same one-file-per-build-
// tag split (the dlopen-based implementation compiles only with cgo
// enabled; a CGO_ENABLED=0 build gets a stub whose Load always returns an
// error, so Local-FFI plugins are unavailable there — the same
// restriction the teacher documents for its own native bindings).
package localffi
