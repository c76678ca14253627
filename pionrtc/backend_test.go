package pionrtc

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/datachannel/native"
)

func TestParseICEServer(t *testing.T) {
	tests := []struct {
		raw  string
		want webrtc.ICEServer
	}{
		{"stun:stun.l.google.com:19302", webrtc.ICEServer{URLs: []string{"stun:stun.l.google.com:19302"}}},
		{"turn:user:secret@turn.example.com:3478", webrtc.ICEServer{
			URLs: []string{"turn:turn.example.com:3478"}, Username: "user", Credential: "secret",
		}},
		{"turns:bob@turn.example.com?transport=tcp", webrtc.ICEServer{
			URLs: []string{"turns:turn.example.com?transport=tcp"}, Username: "bob",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseICEServer(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "stun:", "http://example.com", "example.com"} {
		_, err := parseICEServer(bad)
		assert.Error(t, err, bad)
	}
}

func TestChannelInit(t *testing.T) {
	opts, code := channelInit(nil)
	assert.Equal(t, native.Success, code)
	assert.Nil(t, opts)

	opts, code = channelInit(&native.DataChannelInit{
		Reliability: native.Reliability{Unordered: true, Unreliable: true, MaxPacketLifeTime: 250},
		Protocol:    "chat",
	})
	require.Equal(t, native.Success, code)
	assert.False(t, *opts.Ordered)
	assert.Equal(t, uint16(250), *opts.MaxPacketLifeTime)
	assert.Nil(t, opts.MaxRetransmits)
	assert.Equal(t, "chat", *opts.Protocol)

	opts, code = channelInit(&native.DataChannelInit{
		Reliability: native.Reliability{Unreliable: true, MaxRetransmits: 3},
	})
	require.Equal(t, native.Success, code)
	assert.True(t, *opts.Ordered)
	assert.Equal(t, uint16(3), *opts.MaxRetransmits)

	opts, code = channelInit(&native.DataChannelInit{Negotiated: true, ManualStream: true, Stream: 5})
	require.Equal(t, native.Success, code)
	assert.True(t, *opts.Negotiated)
	assert.Equal(t, uint16(5), *opts.ID)

	_, code = channelInit(&native.DataChannelInit{Negotiated: true})
	assert.Equal(t, native.ErrInvalid, code)

	_, code = channelInit(&native.DataChannelInit{ManualStream: true, Stream: maxDataChannelStream + 1})
	assert.Equal(t, native.ErrInvalid, code)
}

func TestReceiveQueue(t *testing.T) {
	c := &channel{}
	size, code := c.receive(make([]byte, 8))
	assert.Equal(t, native.ErrNotAvail, code)
	assert.Zero(t, size)

	c.push([]byte("hello world"))
	c.push([]byte("hi"))
	assert.Equal(t, 13, c.queuedBytes())

	size, code = c.receive(make([]byte, 4))
	assert.Equal(t, native.ErrTooSmall, code)
	assert.Equal(t, int32(11), size)
	assert.Equal(t, 13, c.queuedBytes(), "a message that does not fit stays queued")

	buf := make([]byte, 16)
	size, code = c.receive(buf)
	require.Equal(t, native.Success, code)
	assert.Equal(t, "hello world", string(buf[:size]))

	size, code = c.receive(buf)
	require.Equal(t, native.Success, code)
	assert.Equal(t, "hi", string(buf[:size]))
	assert.Zero(t, c.queuedBytes())
}

func TestPushCopies(t *testing.T) {
	c := &channel{}
	data := []byte("abc")
	c.push(data)
	data[0] = 'x'

	buf := make([]byte, 3)
	_, code := c.receive(buf)
	require.Equal(t, native.Success, code)
	assert.Equal(t, "abc", string(buf))
}

func TestUnknownHandle(t *testing.T) {
	b := New()
	assert.Equal(t, native.ErrInvalid, b.SetCallback(42, native.EventOpen, true))
	assert.Equal(t, native.ErrInvalid, b.ClosePeerConnection(42))
	assert.Equal(t, native.ErrInvalid, b.DeletePeerConnection(42))
	assert.Equal(t, native.ErrInvalid, b.DeleteDataChannel(42))
	assert.Equal(t, native.ErrInvalid, b.DeleteTrack(42))
	assert.Equal(t, native.ErrInvalid, b.Close(42))
	assert.Equal(t, native.ErrInvalid, b.SendMessage(42, nil, true))
	assert.False(t, b.IsOpen(42))
	assert.True(t, b.IsClosed(42))

	_, code := b.LocalDescription(42)
	assert.Equal(t, native.ErrInvalid, code)
	_, code = b.ReceiveMessage(42, nil)
	assert.Equal(t, native.ErrInvalid, code)
}

func TestEndpointMask(t *testing.T) {
	b := New()
	b.Bind(&recorder{})
	e := &endpoint{b: b, id: 1}

	called := false
	fire := func() bool {
		return e.fire(native.EventMessage, func(native.Dispatcher) { called = true })
	}

	assert.False(t, fire())
	e.setEnabled(native.EventMessage, true)
	assert.True(t, fire())
	assert.True(t, called)

	called = false
	e.setEnabled(native.EventMessage, false)
	assert.False(t, fire())

	e.setEnabled(native.EventMessage, true)
	e.forget()
	assert.False(t, fire())
	assert.False(t, called)
}

func TestPeerLifecycle(t *testing.T) {
	b := New()
	pc := b.CreatePeerConnection(&native.Config{})
	require.Greater(t, pc, int32(0))

	assert.Equal(t, native.Success, b.SetCallback(pc, native.EventStateChange, true))
	assert.Equal(t, int32(maxDataChannelStream), b.MaxDataChannelStream(pc))
	assert.Equal(t, native.ErrNotAvail, b.AddTrack(pc, "m=audio 9 UDP/TLS/RTP/SAVPF 111"))

	_, code := b.RemoteDescription(pc)
	assert.Equal(t, native.ErrNotAvail, code)

	assert.Equal(t, native.Success, b.ClosePeerConnection(pc))
	assert.Equal(t, native.Success, b.DeletePeerConnection(pc))
	assert.Equal(t, native.ErrInvalid, b.DeletePeerConnection(pc))
}

func TestCreatePeerConnectionInvalidConfig(t *testing.T) {
	b := New()
	assert.Equal(t, native.ErrInvalid, b.CreatePeerConnection(&native.Config{ICEServers: []string{"http://x"}}))
	assert.Equal(t, native.ErrInvalid, b.CreatePeerConnection(&native.Config{BindAddress: "not-an-ip"}))
}

func TestLoggerFactory(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var lines []string
	b.InitLogger(native.LogWarning, func(level native.LogLevel, msg string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, msg)
	})

	l := (&loggerFactory{b: b}).NewLogger("ice")
	l.Debug("hidden")
	l.Warnf("port %d", 9)
	l.Error("bad")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ice: port 9", "ice: bad"}, lines)
}

// recorder is a Dispatcher that relays signaling between two peers of the
// same backend, in order, and records channel traffic.
type recorder struct {
	b     *Backend
	peers map[int32]int32 // peer -> remote peer

	relay chan func()

	mu       sync.Mutex
	opened   map[int32]bool
	messages map[int32][]string
	channels []int32
}

func newRecorder(b *Backend) *recorder {
	r := &recorder{
		b:        b,
		peers:    make(map[int32]int32),
		relay:    make(chan func(), 64),
		opened:   make(map[int32]bool),
		messages: make(map[int32][]string),
	}
	go func() {
		for fn := range r.relay {
			fn()
		}
	}()
	return r
}

func (r *recorder) LocalDescription(pc int32, sdp, typ string) {
	to := r.peers[pc]
	r.relay <- func() { r.b.SetRemoteDescription(to, sdp, typ) }
}

func (r *recorder) LocalCandidate(pc int32, candidate, mid string) {
	to := r.peers[pc]
	r.relay <- func() { r.b.AddRemoteCandidate(to, candidate, mid) }
}

func (r *recorder) StateChange(int32, int32)          {}
func (r *recorder) IceStateChange(int32, int32)       {}
func (r *recorder) GatheringStateChange(int32, int32) {}
func (r *recorder) SignalingStateChange(int32, int32) {}
func (r *recorder) Track(int32, int32)                {}
func (r *recorder) Closed(int32)                      {}
func (r *recorder) Error(int32, string)               {}
func (r *recorder) BufferedAmountLow(int32)           {}
func (r *recorder) Available(int32)                   {}

func (r *recorder) DataChannel(pc, dc int32) {
	r.b.SetCallback(dc, native.EventOpen, true)
	r.b.SetCallback(dc, native.EventMessage, true)
	r.mu.Lock()
	r.channels = append(r.channels, dc)
	r.mu.Unlock()
}

func (r *recorder) Open(id int32) {
	r.mu.Lock()
	r.opened[id] = true
	r.mu.Unlock()
}

func (r *recorder) Message(id int32, data []byte, binary bool) {
	r.mu.Lock()
	r.messages[id] = append(r.messages[id], string(data))
	r.mu.Unlock()
}

func TestLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ICE loopback test in short mode")
	}

	b := New(WithLoopback())
	r := newRecorder(b)
	b.Bind(r)

	offerer := b.CreatePeerConnection(&native.Config{})
	answerer := b.CreatePeerConnection(&native.Config{})
	require.Greater(t, offerer, int32(0))
	require.Greater(t, answerer, int32(0))
	r.peers[offerer] = answerer
	r.peers[answerer] = offerer
	t.Cleanup(func() {
		b.DeletePeerConnection(offerer)
		b.DeletePeerConnection(answerer)
	})

	for _, pc := range []int32{offerer, answerer} {
		for _, ev := range []native.Event{native.EventLocalDescription, native.EventLocalCandidate, native.EventDataChannel} {
			require.Equal(t, native.Success, b.SetCallback(pc, ev, true))
		}
	}

	dc := b.CreateDataChannel(offerer, "test", nil)
	require.Greater(t, dc, int32(0))
	require.Equal(t, native.Success, b.SetCallback(dc, native.EventOpen, true))

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.opened[dc] && len(r.channels) == 1
	}, 10*time.Second, 20*time.Millisecond)

	label, code := b.DataChannelLabel(dc)
	assert.Equal(t, native.Success, code)
	assert.Equal(t, "test", label)
	assert.True(t, b.IsOpen(dc))

	r.mu.Lock()
	remote := r.channels[0]
	r.mu.Unlock()

	require.Equal(t, native.Success, b.SendMessage(dc, []byte("ping"), false))
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.messages[remote]) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// With the message callback disabled the next message is queued.
	require.Equal(t, native.Success, b.SetCallback(remote, native.EventMessage, false))
	require.Equal(t, native.Success, b.SendMessage(dc, []byte{1, 2, 3}, true))
	require.Eventually(t, func() bool {
		return b.AvailableAmount(remote) == 3
	}, 5*time.Second, 10*time.Millisecond)

	buf := make([]byte, 8)
	size, code := b.ReceiveMessage(remote, buf)
	require.Equal(t, native.Success, code)
	assert.Equal(t, []byte{1, 2, 3}, buf[:size])

	local, remoteAddr, code := b.SelectedCandidatePair(offerer)
	if code == native.Success {
		assert.NotEmpty(t, local)
		assert.NotEmpty(t, remoteAddr)
	}

	assert.Equal(t, native.Success, b.DeleteDataChannel(dc))
	assert.Equal(t, native.ErrInvalid, b.SendMessage(dc, []byte("late"), true))
}
