// Package websocket implements the WebSocket Bridge (spec §4.8): the
// upgrade handshake, frame read/write pumps, and a room abstraction
// that fans broadcasts out to every local connection plus, when an
// Adapter is configured, to other processes over pub/sub.
//
// This package owns the wire-level connection; pkg/plugin/session owns
// the plugin-facing WEBSOCKET_* method dispatch. A Bridge implements
// session.WebSocketHandler so a Handler can route plugin commands
// (SEND_TEXT, JOIN_ROOM, ...) straight into it.
package websocket
