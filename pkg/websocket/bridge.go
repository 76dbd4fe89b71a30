package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/session"
)

// Notifier is the subset of *session.Handler the Bridge needs to push
// lifecycle events to the plugin; narrowed to keep this package's tests
// independent of a live session.Handler/transport.
type Notifier interface {
	Notify(ctx context.Context, method abi.Method, payload []byte) error
}

// Upgrader performs the HTTP->WebSocket handshake. Wraps
// gorilla/websocket's Upgrader so callers never import gorilla
// directly outside this package.
type Upgrader struct {
	inner websocket.Upgrader
}

func NewUpgrader(readBufferSize, writeBufferSize int) *Upgrader {
	return &Upgrader{inner: websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
		// Route matching already decided this request belongs to a
		// configured route; origin checking is a plugin's concern
		// (spec's Non-goals exclude client auth by the proxy itself).
		CheckOrigin: func(r *http.Request) bool { return true },
	}}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 20
)

// Bridge is one upgraded connection: the gorilla socket, its room
// memberships, and the Handler it forwards ON_* events to / receives
// SEND_*/JOIN_ROOM/etc commands from (spec §4.8). Implements
// session.WebSocketHandler.
type Bridge struct {
	id     string
	conn   *websocket.Conn
	notify Notifier
	rooms  *Rooms

	writeMu sync.Mutex
	closed  bool

	out chan wsFrame
}

type wsFrame struct {
	payload []byte
	binary  bool
}

// Upgrade performs the handshake (spec: "writes 101 Switching
// Protocols"), wires the resulting Bridge to h for event delivery, and
// starts the read pump. It blocks until the connection closes, the
// plugin's RunWebSocket loop returns, or ctx is cancelled; callers run
// it from the goroutine serving the hijacked request.
func Upgrade(ctx context.Context, u *Upgrader, w http.ResponseWriter, r *http.Request, h *session.Handler, rr *Rooms) error {
	conn, err := u.inner.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket: upgrade: %w", err)
	}

	b := &Bridge{
		id:     uuid.NewString(),
		conn:   conn,
		notify: h,
		rooms:  rr,
		out:    make(chan wsFrame, 32),
	}
	h.AttachWebSocket(b)

	return b.run(ctx, h)
}

// run drives the connection's lifetime: the write pump, the plugin
// command drain (Handler.RunWebSocket), and the read pump all run
// concurrently; the first one to finish tears the others down.
func (b *Bridge) run(ctx context.Context, h *session.Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.teardown()

	if err := b.notify.Notify(ctx, abi.WEBSOCKET_ON_OPEN, nil); err != nil {
		return fmt.Errorf("websocket: notify open: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)

	var readErr, commandErr error

	go func() {
		defer wg.Done()
		defer cancel()
		readErr = b.readPump(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		b.writePump(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		commandErr = h.RunWebSocket(ctx)
	}()

	wg.Wait()

	if readErr != nil {
		return readErr
	}
	return commandErr
}

func (b *Bridge) teardown() {
	b.writeMu.Lock()
	b.closed = true
	b.writeMu.Unlock()
	if b.rooms != nil {
		b.rooms.leaveAll(b)
	}
	_ = b.conn.Close()
}

// readPump converts client frames into ON_* events (spec §4.8): text
// and binary frames become ON_MESSAGE_{TEXT|BINARY}, a close frame
// becomes ON_CLOSE, and any read/parse error becomes ON_ERROR followed
// by close. Pings are answered by gorilla internally via the default
// pong handler.
func (b *Bridge) readPump(ctx context.Context) error {
	b.conn.SetReadLimit(maxMessage)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := b.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				_ = b.notify.Notify(ctx, abi.WEBSOCKET_ON_CLOSE, abi.EncodeCloseCode(ce.Code))
				return nil
			}
			_ = b.notify.Notify(ctx, abi.WEBSOCKET_ON_ERROR, []byte(err.Error()))
			return err
		}

		switch msgType {
		case websocket.TextMessage:
			if err := b.notify.Notify(ctx, abi.WEBSOCKET_ON_MESSAGE_TEXT, data); err != nil {
				return err
			}
		case websocket.BinaryMessage:
			if err := b.notify.Notify(ctx, abi.WEBSOCKET_ON_MESSAGE_BINARY, data); err != nil {
				return err
			}
		case websocket.CloseMessage:
			_ = b.notify.Notify(ctx, abi.WEBSOCKET_ON_CLOSE, abi.EncodeCloseCode(1000))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// writePump serializes all writes to the socket (gorilla connections
// are not safe for concurrent writers) and sends periodic pings.
func (b *Bridge) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-b.out:
			if !ok {
				return
			}
			b.writeFrame(frame)
		case <-ticker.C:
			b.writeMu.Lock()
			if !b.closed {
				_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = b.conn.WriteMessage(websocket.PingMessage, nil)
			}
			b.writeMu.Unlock()
		}
	}
}

func (b *Bridge) writeFrame(f wsFrame) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.closed {
		return
	}
	mt := websocket.TextMessage
	if f.binary {
		mt = websocket.BinaryMessage
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = b.conn.WriteMessage(mt, f.payload)
}

// writeAsync queues a frame for the write pump; used by room broadcast
// fanout so a slow room member never blocks the publisher.
func (b *Bridge) writeAsync(payload []byte, binary bool) {
	select {
	case b.out <- wsFrame{payload: payload, binary: binary}:
	default:
	}
}

// Dispatch implements session.WebSocketHandler: it applies a plugin's
// WEBSOCKET_* command (spec §4.6 range 300-399) to this connection.
func (b *Bridge) Dispatch(ctx context.Context, method abi.Method, payload []byte) ([]byte, error) {
	switch method {
	case abi.WEBSOCKET_SEND_TEXT:
		b.writeAsync(payload, false)
		return nil, nil
	case abi.WEBSOCKET_SEND_BINARY:
		b.writeAsync(payload, true)
		return nil, nil
	case abi.WEBSOCKET_CLOSE:
		code, err := abi.DecodeCloseCode(payload)
		if err != nil {
			code = 1000
		}
		return nil, b.close(code)
	case abi.WEBSOCKET_JOIN_ROOM:
		b.rooms.join(ctx, string(payload), b)
		return nil, nil
	case abi.WEBSOCKET_LEAVE_ROOM:
		b.rooms.leave(string(payload), b)
		return nil, nil
	case abi.WEBSOCKET_BROADCAST_ROOM_TEXT:
		return nil, b.broadcastRoom(ctx, payload, false)
	case abi.WEBSOCKET_BROADCAST_ROOM_BINARY:
		return nil, b.broadcastRoom(ctx, payload, true)
	default:
		return nil, fmt.Errorf("websocket: unsupported method %d", method)
	}
}

func (b *Bridge) broadcastRoom(ctx context.Context, payload []byte, binary bool) error {
	room, msg, err := abi.DecodeBroadcast(payload)
	if err != nil {
		return err
	}
	// Exclusion of the sender is a per-method design choice the spec
	// leaves open ("iff the broadcast method does not exclude the
	// sender"); this core includes the sender, matching a chat-room
	// echo so a client sees its own message round-trip.
	b.rooms.broadcast(ctx, room, msg, binary, b, false)
	return nil
}

func (b *Bridge) close(code int) error {
	b.writeMu.Lock()
	if b.closed {
		b.writeMu.Unlock()
		return nil
	}
	b.closed = true
	b.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	closeMsg := websocket.FormatCloseMessage(code, "")
	return b.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
}
