package datachannel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/obinnaokechukwu/datachannel/native"
)

type callbackCall struct {
	id      int32
	ev      native.Event
	enabled bool
}

// fakeLib is an in-memory native.Library. Tests drive events by calling the
// bound dispatcher directly.
type fakeLib struct {
	mu       sync.Mutex
	next     int32
	d        native.Dispatcher
	calls    map[string]int
	codes    map[string]int32
	strs     map[string]string
	callback []callbackCall
	sent     [][]byte
	inbox    [][]byte

	// onCallback runs after a successful SetCallback, outside mu.
	onCallback func(callbackCall)
}

func newFakeLib() *fakeLib {
	return &fakeLib{
		next:  1,
		calls: make(map[string]int),
		codes: make(map[string]int32),
		strs:  make(map[string]string),
	}
}

func (f *fakeLib) record(op string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.codes[op]
}

func (f *fakeLib) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLib) fail(op string, code int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[op] = code
}

func (f *fakeLib) alloc(op string) int32 {
	if code := f.record(op); code != 0 {
		return code
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	return id
}

func (f *fakeLib) callbacks() []callbackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]callbackCall(nil), f.callback...)
}

func (f *fakeLib) str(op string) (string, int32) {
	code := f.record(op)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strs[op], code
}

func (f *fakeLib) Bind(d native.Dispatcher)                   { f.d = d }
func (f *fakeLib) InitLogger(native.LogLevel, native.LogSink) {}

func (f *fakeLib) CreatePeerConnection(*native.Config) int32 { return f.alloc("CreatePeerConnection") }
func (f *fakeLib) ClosePeerConnection(int32) int32           { return f.record("ClosePeerConnection") }
func (f *fakeLib) DeletePeerConnection(int32) int32          { return f.record("DeletePeerConnection") }

func (f *fakeLib) SetCallback(id int32, ev native.Event, enabled bool) int32 {
	code := f.record("SetCallback")
	if code == 0 {
		f.mu.Lock()
		f.callback = append(f.callback, callbackCall{id, ev, enabled})
		hook := f.onCallback
		f.mu.Unlock()
		if hook != nil {
			hook(callbackCall{id, ev, enabled})
		}
	}
	return code
}

func (f *fakeLib) SetLocalDescription(int32, string) int32 { return f.record("SetLocalDescription") }
func (f *fakeLib) SetRemoteDescription(int32, string, string) int32 {
	return f.record("SetRemoteDescription")
}
func (f *fakeLib) AddRemoteCandidate(int32, string, string) int32 {
	return f.record("AddRemoteCandidate")
}
func (f *fakeLib) LocalDescription(int32) (string, int32)      { return f.str("LocalDescription") }
func (f *fakeLib) LocalDescriptionType(int32) (string, int32)  { return f.str("LocalDescriptionType") }
func (f *fakeLib) RemoteDescription(int32) (string, int32)     { return f.str("RemoteDescription") }
func (f *fakeLib) RemoteDescriptionType(int32) (string, int32) { return f.str("RemoteDescriptionType") }
func (f *fakeLib) LocalAddress(int32) (string, int32)          { return f.str("LocalAddress") }
func (f *fakeLib) RemoteAddress(int32) (string, int32)         { return f.str("RemoteAddress") }

func (f *fakeLib) SelectedCandidatePair(int32) (string, string, int32) {
	code := f.record("SelectedCandidatePair")
	return "a=candidate:local", "a=candidate:remote", code
}

func (f *fakeLib) MaxDataChannelStream(int32) int32 { return 1023 }
func (f *fakeLib) RemoteMaxMessageSize(int32) int32 { return 262144 }

func (f *fakeLib) CreateDataChannel(int32, string, *native.DataChannelInit) int32 {
	return f.alloc("CreateDataChannel")
}
func (f *fakeLib) DeleteDataChannel(int32) int32             { return f.record("DeleteDataChannel") }
func (f *fakeLib) DataChannelStream(int32) int32             { return 4 }
func (f *fakeLib) DataChannelLabel(int32) (string, int32)    { return f.str("DataChannelLabel") }
func (f *fakeLib) DataChannelProtocol(int32) (string, int32) { return f.str("DataChannelProtocol") }
func (f *fakeLib) DataChannelReliability(int32) (native.Reliability, int32) {
	return native.Reliability{Unordered: true, Unreliable: true, MaxPacketLifeTime: 1500}, f.record("DataChannelReliability")
}

func (f *fakeLib) AddTrack(int32, string) int32           { return f.alloc("AddTrack") }
func (f *fakeLib) DeleteTrack(int32) int32                { return f.record("DeleteTrack") }
func (f *fakeLib) TrackMid(int32) (string, int32)         { return f.str("TrackMid") }
func (f *fakeLib) TrackDescription(int32) (string, int32) { return f.str("TrackDescription") }
func (f *fakeLib) Close(int32) int32                      { return f.record("Close") }
func (f *fakeLib) IsOpen(int32) bool                      { return true }
func (f *fakeLib) IsClosed(int32) bool                    { return false }
func (f *fakeLib) MaxMessageSize(int32) int32             { return 65536 }
func (f *fakeLib) BufferedAmount(int32) int32             { return 0 }
func (f *fakeLib) SetBufferedAmountLowThreshold(int32, int32) int32 {
	return f.record("SetBufferedAmountLowThreshold")
}
func (f *fakeLib) AvailableAmount(int32) int32 { return 0 }

func (f *fakeLib) SendMessage(_ int32, data []byte, _ bool) int32 {
	code := f.record("SendMessage")
	f.mu.Lock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	f.mu.Unlock()
	return code
}

func (f *fakeLib) ReceiveMessage(_ int32, buf []byte) (int32, int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbox) == 0 {
		return 0, native.ErrNotAvail
	}
	msg := f.inbox[0]
	if len(buf) < len(msg) {
		return int32(len(msg)), native.ErrTooSmall
	}
	copy(buf, msg)
	f.inbox = f.inbox[1:]
	return int32(len(msg)), native.Success
}

// newTestEngine returns an engine on a fake library plus an observer of
// everything it logs at debug and above.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeLib, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	lib := newFakeLib()
	e := NewEngine(lib, append([]Option{WithLogger(zap.New(core))}, opts...)...)
	require.NotNil(t, lib.d)
	return e, lib, logs
}

func newTestPeer(t *testing.T, e *Engine) *PeerConnection {
	t.Helper()
	p, err := e.CreatePeerConnection(Configuration{})
	require.NoError(t, err)
	return p
}
