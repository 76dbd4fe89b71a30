// Package session implements the Session Handler (spec §4.5): one state
// machine instance per plugin middleware invocation, mediating between
// the Filter Pipeline's "run this phase and return" call shape and a
// plugin's asynchronous, arbitrary-order control invocations.
//
// A Handler owns current_phase, the response mutation buffer, and the
// FIFO dispatch of invocations arriving from a transport.Transport. It
// is deliberately ignorant of HTTP: request data is read through the
// small RequestView interface so the same Handler drives RequestFilter,
// ResponseFilter, ResponseBodyFilter and Logging steps alike.
package session
