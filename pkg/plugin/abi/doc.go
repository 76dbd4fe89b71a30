// Package abi defines the wire-level contract shared by both plugin
// transports (Local-FFI and Messaging): the method-id catalogue (spec
// §4.6/§6.4), the phase id space, and the payload encoding rules per
// method class. Neither transport implementation nor the Session Handler
// owns this contract — both depend on it, which is why it is its own
// package (mirrors the teacher's pkg/proxy/metadata.go sitting below both
// pkg/proxy and pkg/providers as a shared leaf package).
package abi
