//go:build cgo
// +build cgo

package localffi

// #cgo linux LDFLAGS: -ldl
// #include <stdlib.h>
// #include <dlfcn.h>
// #include <stdint.h>
//
// typedef void (*initialize_fn)(const void*, size_t);
// typedef void (*shutdown_fn)(void);
// typedef int  (*register_session_stream_fn)(uint32_t, const char*, size_t, void*);
// typedef void (*event_stream_fn)(const void*);
// typedef void (*close_session_stream_fn)(uint32_t);
// typedef void (*plugin_free_fn)(void*);
// typedef void (*callback_fn)(uint32_t, uint8_t, uint32_t, const uint8_t*, size_t);
//
// static void call_initialize(initialize_fn f, const void *p, size_t n) { f(p, n); }
// static void call_shutdown(shutdown_fn f) { f(); }
// static int call_register_session_stream(register_session_stream_fn f, uint32_t sid, const char *p, size_t n, void *cb) {
//     return f(sid, p, n, cb);
// }
// static void call_event_stream(event_stream_fn f, const void *buf) { f(buf); }
// static void call_close_session_stream(close_session_stream_fn f, uint32_t sid) { f(sid); }
// static void call_plugin_free(plugin_free_fn f, void *p) { f(p); }
//
// extern void nylonPluginCallbackBridge(uint32_t sid, uint8_t phase, uint32_t method, const uint8_t *data_ptr, size_t data_len);
import "C"

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/nylon-dev/nylon/pkg/plugin/abi"
	"github.com/nylon-dev/nylon/pkg/plugin/transport"
)

// handle is one dlopen'd shared object's six resolved symbols.
type handle struct {
	lib                       unsafe.Pointer
	initialize                C.initialize_fn
	shutdown                  C.shutdown_fn
	registerSessionStream     C.register_session_stream_fn
	eventStream               C.event_stream_fn
	closeSessionStream        C.close_session_stream_fn
	pluginFree                C.plugin_free_fn
}

// Transport loads one plugin's shared object and implements
// transport.Transport over its six C-ABI symbols (spec §4.4.1).
type Transport struct {
	name string
	h    *handle

	mu       sync.Mutex
	sessions map[transport.SessionHandle]chan transport.Invoke
}

var nextSessionID atomic.Uint32

// registry maps a live session id to its inbound-invoke channel so the
// cgo export callback (which cannot be a method) can route a plugin's
// invocation to the right Go-side session. Session ids are "32-bit,
// monotonic within the process" per spec §3, so one process-wide map
// suffices regardless of how many plugins are loaded.
var registry sync.Map // transport.SessionHandle -> chan transport.Invoke

// Load dlopens the shared object at path and resolves all six required
// symbols, failing closed if any are missing.
func Load(name, path string) (*Transport, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	lib := C.dlopen(cPath, C.RTLD_NOW)
	if lib == nil {
		return nil, fmt.Errorf("localffi: dlopen %q: %s", path, C.GoString(C.dlerror()))
	}

	h := &handle{lib: lib}
	var err error
	h.initialize, err = sym[C.initialize_fn](lib, "initialize")
	if err == nil {
		h.shutdown, err = sym[C.shutdown_fn](lib, "shutdown")
	}
	if err == nil {
		h.registerSessionStream, err = sym[C.register_session_stream_fn](lib, "register_session_stream")
	}
	if err == nil {
		h.eventStream, err = sym[C.event_stream_fn](lib, "event_stream")
	}
	if err == nil {
		h.closeSessionStream, err = sym[C.close_session_stream_fn](lib, "close_session_stream")
	}
	if err == nil {
		h.pluginFree, err = sym[C.plugin_free_fn](lib, "plugin_free")
	}
	if err != nil {
		C.dlclose(lib)
		return nil, err
	}

	return &Transport{name: name, h: h, sessions: map[transport.SessionHandle]chan transport.Invoke{}}, nil
}

// symT is the set of function-pointer typedefs Load resolves; Go generics
// can't range over cgo types directly, so sym is instantiated per field.
type symT interface {
	C.initialize_fn | C.shutdown_fn | C.register_session_stream_fn | C.event_stream_fn | C.close_session_stream_fn | C.plugin_free_fn
}

func sym[T symT](lib unsafe.Pointer, name string) (T, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	p := C.dlsym(lib, cName)
	if p == nil {
		var zero T
		return zero, fmt.Errorf("localffi: symbol %q not found: %s", name, C.GoString(C.dlerror()))
	}
	return T(p), nil
}

// Initialize calls the plugin's initialize(config_ptr, config_len) once,
// per spec §3's PluginInstance lifecycle.
func (t *Transport) Initialize(initPayload []byte) {
	var ptr unsafe.Pointer
	if len(initPayload) > 0 {
		ptr = unsafe.Pointer(&initPayload[0])
	}
	C.call_initialize(t.h.initialize, ptr, C.size_t(len(initPayload)))
	runtime.KeepAlive(initPayload)
}

// Shutdown calls the plugin's shutdown() once.
func (t *Transport) Shutdown(context.Context) error {
	C.call_shutdown(t.h.shutdown)
	return nil
}

func (t *Transport) Open(_ context.Context, _ string, entryPoint string, _ []byte) (transport.SessionHandle, error) {
	sid := transport.SessionHandle(nextSessionID.Add(1))

	ch := make(chan transport.Invoke, 64)
	registry.Store(sid, ch)
	t.mu.Lock()
	t.sessions[sid] = ch
	t.mu.Unlock()

	entryBytes := []byte(entryPoint)
	var entryPtr *C.char
	if len(entryBytes) > 0 {
		entryPtr = (*C.char)(unsafe.Pointer(&entryBytes[0]))
	}

	ok := C.call_register_session_stream(
		t.h.registerSessionStream,
		C.uint32_t(sid),
		entryPtr,
		C.size_t(len(entryBytes)),
		unsafe.Pointer(C.nylonPluginCallbackBridge),
	)
	runtime.KeepAlive(entryBytes)

	if ok == 0 {
		t.closeLocked(sid)
		return 0, fmt.Errorf("localffi: plugin refused session %d for entry %q", sid, entryPoint)
	}
	return sid, nil
}

func (t *Transport) SendEvent(_ context.Context, h transport.SessionHandle, ev transport.Event) error {
	buf := encodeEventBuffer(h, ev)
	C.call_event_stream(t.h.eventStream, unsafe.Pointer(&buf[0]))
	runtime.KeepAlive(buf)
	return nil
}

func (t *Transport) TryRecvInvoke(h transport.SessionHandle) (transport.Invoke, bool, error) {
	t.mu.Lock()
	ch, ok := t.sessions[h]
	t.mu.Unlock()
	if !ok {
		return transport.Invoke{}, false, fmt.Errorf("localffi: unknown session %d", h)
	}
	select {
	case inv := <-ch:
		return inv, true, nil
	default:
		return transport.Invoke{}, false, nil
	}
}

func (t *Transport) Close(_ context.Context, h transport.SessionHandle) error {
	C.call_close_session_stream(t.h.closeSessionStream, C.uint32_t(h))
	t.mu.Lock()
	t.closeLocked(h)
	t.mu.Unlock()
	return nil
}

func (t *Transport) closeLocked(h transport.SessionHandle) {
	if ch, ok := t.sessions[h]; ok {
		close(ch)
		delete(t.sessions, h)
	}
	registry.Delete(h)
}

// encodeEventBuffer builds the {sid, phase, method, data_ptr, data_len}
// buffer layout event_stream expects (spec §4.4.1). Pointers the core
// hands to the plugin are only valid for the duration of the call — the
// plugin must copy, per the memory rules in §4.4.1 — so this buffer does
// not outlive SendEvent's runtime.KeepAlive window.
func encodeEventBuffer(h transport.SessionHandle, ev transport.Event) []byte {
	buf := make([]byte, 4+1+4+len(ev.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h))
	buf[4] = byte(ev.Phase)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(ev.Method))
	copy(buf[9:], ev.Payload)
	return buf
}

//export nylonPluginCallbackBridge
func nylonPluginCallbackBridge(sid C.uint32_t, phase C.uint8_t, method C.uint32_t, dataPtr *C.uint8_t, dataLen C.size_t) {
	var data []byte
	if dataLen > 0 {
		data = C.GoBytes(unsafe.Pointer(dataPtr), C.int(dataLen))
	}

	v, ok := registry.Load(transport.SessionHandle(sid))
	if !ok {
		return
	}
	ch := v.(chan transport.Invoke)

	select {
	case ch <- transport.Invoke{Method: abi.Method(method), Payload: data}:
	default:
		// Session's inbound queue is full; the plugin is invoking
		// faster than the Session Handler is draining it. Dropping
		// here rather than blocking the plugin's calling thread is
		// required by the "must accept concurrent callbacks from any
		// thread" contract in §4.4.1 — a bounded wait would risk a
		// cross-plugin deadlock if that thread also holds a lock the
		// Session Handler needs.
	}
}
