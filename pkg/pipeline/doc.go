// Package pipeline implements the Filter Pipeline (spec §4.7): per
// request, it assembles the effective middleware list, drives each step
// through a plugin.session.Handler across the four phases, and applies
// the short-circuit and opt-in rules that govern how far a middleware
// chain runs once one step terminates early.
//
// This package never touches net/http directly; it is driven by the
// small RequestView/ResponseView capability interfaces pkg/plugin/session
// defines, so the HTTP-specific wiring (reading the real request,
// writing the real response, picking an upstream endpoint) lives in
// pkg/proxy, which calls this package's functions once per request.
package pipeline
