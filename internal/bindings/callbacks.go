//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/datachannel/native"
)

// One trampoline per event kind, shared by every handle. purego callbacks
// are never freed, so they are created once for the life of the process.
var (
	callbackEvents  = native.Events()
	callbackSetters = make([]func(id int32, cb uintptr) int32, len(callbackEvents))

	callbackOnce sync.Once
	callbackPtrs []uintptr

	logOnce sync.Once
	logPtr  uintptr
)

type dispatcherRef struct {
	d native.Dispatcher
}

type sinkRef struct {
	fn native.LogSink
}

var (
	dispatcher atomic.Pointer[dispatcherRef]
	logSink    atomic.Pointer[sinkRef]
)

func currentDispatcher() native.Dispatcher {
	if ref := dispatcher.Load(); ref != nil {
		return ref.d
	}
	return nil
}

func callbackPtr(ev native.Event) uintptr {
	callbackOnce.Do(func() {
		callbackPtrs = make([]uintptr, len(callbackEvents))
		callbackPtrs[native.EventLocalDescription] = purego.NewCallback(onLocalDescription)
		callbackPtrs[native.EventLocalCandidate] = purego.NewCallback(onLocalCandidate)
		callbackPtrs[native.EventStateChange] = purego.NewCallback(onStateChange)
		callbackPtrs[native.EventIceStateChange] = purego.NewCallback(onIceStateChange)
		callbackPtrs[native.EventGatheringStateChange] = purego.NewCallback(onGatheringStateChange)
		callbackPtrs[native.EventSignalingStateChange] = purego.NewCallback(onSignalingStateChange)
		callbackPtrs[native.EventDataChannel] = purego.NewCallback(onDataChannel)
		callbackPtrs[native.EventTrack] = purego.NewCallback(onTrack)
		callbackPtrs[native.EventOpen] = purego.NewCallback(onOpen)
		callbackPtrs[native.EventClosed] = purego.NewCallback(onClosed)
		callbackPtrs[native.EventError] = purego.NewCallback(onError)
		callbackPtrs[native.EventMessage] = purego.NewCallback(onMessage)
		callbackPtrs[native.EventBufferedAmountLow] = purego.NewCallback(onBufferedAmountLow)
		callbackPtrs[native.EventAvailable] = purego.NewCallback(onAvailable)
	})
	return callbackPtrs[ev]
}

// deliver runs fn against the bound dispatcher. A panic must not unwind
// into C, so anything the dispatcher failed to contain stops here.
func deliver(fn func(d native.Dispatcher)) {
	d := currentDispatcher()
	if d == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(d)
}

// Signature: void (*)(int pc, const char *sdp, const char *type, void *ptr)
func onLocalDescription(_ purego.CDecl, pc int32, sdp, typ *byte, _ unsafe.Pointer) {
	s, t := goString(sdp), goString(typ)
	deliver(func(d native.Dispatcher) { d.LocalDescription(pc, s, t) })
}

// Signature: void (*)(int pc, const char *cand, const char *mid, void *ptr)
func onLocalCandidate(_ purego.CDecl, pc int32, cand, mid *byte, _ unsafe.Pointer) {
	c, m := goString(cand), goString(mid)
	deliver(func(d native.Dispatcher) { d.LocalCandidate(pc, c, m) })
}

// Signature: void (*)(int pc, rtcState state, void *ptr), and likewise for
// the ICE, gathering and signaling state callbacks.
func onStateChange(_ purego.CDecl, pc int32, state int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.StateChange(pc, state) })
}

func onIceStateChange(_ purego.CDecl, pc int32, state int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.IceStateChange(pc, state) })
}

func onGatheringStateChange(_ purego.CDecl, pc int32, state int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.GatheringStateChange(pc, state) })
}

func onSignalingStateChange(_ purego.CDecl, pc int32, state int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.SignalingStateChange(pc, state) })
}

// Signature: void (*)(int pc, int dc, void *ptr)
func onDataChannel(_ purego.CDecl, pc, dc int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.DataChannel(pc, dc) })
}

func onTrack(_ purego.CDecl, pc, tr int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.Track(pc, tr) })
}

// Signature: void (*)(int id, void *ptr)
func onOpen(_ purego.CDecl, id int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.Open(id) })
}

func onClosed(_ purego.CDecl, id int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.Closed(id) })
}

// Signature: void (*)(int id, const char *error, void *ptr)
func onError(_ purego.CDecl, id int32, msg *byte, _ unsafe.Pointer) {
	m := goString(msg)
	deliver(func(d native.Dispatcher) { d.Error(id, m) })
}

// Signature: void (*)(int id, const char *message, int size, void *ptr)
// A negative size marks a null-terminated text message.
func onMessage(_ purego.CDecl, id int32, msg *byte, size int32, _ unsafe.Pointer) {
	var data []byte
	binary := size >= 0
	switch {
	case !binary:
		data = unsafe.Slice(msg, cStrlen(msg))
	case msg != nil && size > 0:
		data = unsafe.Slice(msg, size)
	}
	deliver(func(d native.Dispatcher) { d.Message(id, data, binary) })
}

func onBufferedAmountLow(_ purego.CDecl, id int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.BufferedAmountLow(id) })
}

func onAvailable(_ purego.CDecl, id int32, _ unsafe.Pointer) {
	deliver(func(d native.Dispatcher) { d.Available(id) })
}

// Signature: void (*)(rtcLogLevel level, const char *message)
func onLog(_ purego.CDecl, level int32, msg *byte) {
	ref := logSink.Load()
	if ref == nil || ref.fn == nil {
		return
	}
	m := goString(msg)
	defer func() { _ = recover() }()
	ref.fn(native.LogLevel(level), m)
}
