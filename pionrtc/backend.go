// Package pionrtc implements native.Library in-process on top of
// github.com/pion/webrtc. It behaves like libdatachannel as seen through
// the native boundary: handles share one id space, every event kind is
// enabled per handle, and messages queue for pull-mode reception while the
// message callback is disabled.
//
// Events are fired from pion's goroutines.
package pionrtc

import (
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/internal/handles"
	"github.com/obinnaokechukwu/datachannel/native"
)

// Backend is a native.Library running entirely in Go.
type Backend struct {
	log      *zap.Logger
	loopback bool

	objects *handles.Registry[any]

	dispatcher atomic.Pointer[dispatcherRef]
	logLevel   atomic.Int32
	logSink    atomic.Pointer[sinkRef]
}

type dispatcherRef struct {
	d native.Dispatcher
}

type sinkRef struct {
	fn native.LogSink
}

var _ native.Library = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for backend diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// WithLoopback lets ICE use loopback candidates, so peers on a host
// without other interfaces can still connect to each other.
func WithLoopback() Option {
	return func(b *Backend) {
		b.loopback = true
	}
}

// New creates a Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		log:     zap.NewNop(),
		objects: handles.New[any](),
	}
	b.logLevel.Store(int32(native.LogNone))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Bind(d native.Dispatcher) {
	b.dispatcher.Store(&dispatcherRef{d: d})
}

func (b *Backend) InitLogger(level native.LogLevel, sink native.LogSink) {
	b.logLevel.Store(int32(level))
	if sink == nil {
		b.logSink.Store(nil)
		return
	}
	b.logSink.Store(&sinkRef{fn: sink})
}

// endpoint is the part shared by peers, channels and tracks: the handle
// and the set of enabled events.
type endpoint struct {
	b  *Backend
	id int32

	mu      sync.Mutex
	enabled atomic.Uint32
	deleted atomic.Bool
}

func (e *endpoint) setEnabled(ev native.Event, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mask := e.enabled.Load()
	if on {
		mask |= 1 << ev
	} else {
		mask &^= 1 << ev
	}
	e.enabled.Store(mask)
}

// fire calls fn on the dispatcher if ev is enabled for the endpoint.
func (e *endpoint) fire(ev native.Event, fn func(d native.Dispatcher)) bool {
	if e.deleted.Load() || e.enabled.Load()&(1<<ev) == 0 {
		return false
	}
	ref := e.b.dispatcher.Load()
	if ref == nil {
		return false
	}
	fn(ref.d)
	return true
}

// forget disables every event and releases the handle.
func (e *endpoint) forget() {
	e.deleted.Store(true)
	e.enabled.Store(0)
	e.b.objects.Remove(e.id)
}

func (b *Backend) endpoint(id int32) (*endpoint, bool) {
	v, ok := b.objects.Get(id)
	if !ok {
		return nil, false
	}
	switch o := v.(type) {
	case *peer:
		return &o.endpoint, true
	case *channel:
		return &o.endpoint, true
	case *track:
		return &o.endpoint, true
	}
	return nil, false
}

func (b *Backend) peer(id int32) (*peer, bool) {
	v, ok := b.objects.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := v.(*peer)
	return p, ok
}

func (b *Backend) channel(id int32) (*channel, bool) {
	v, ok := b.objects.Get(id)
	if !ok {
		return nil, false
	}
	c, ok := v.(*channel)
	return c, ok
}

func (b *Backend) track(id int32) (*track, bool) {
	v, ok := b.objects.Get(id)
	if !ok {
		return nil, false
	}
	t, ok := v.(*track)
	return t, ok
}

// SetCallback enables or disables delivery of ev for a handle.
func (b *Backend) SetCallback(id int32, ev native.Event, enabled bool) int32 {
	e, ok := b.endpoint(id)
	if !ok {
		return native.ErrInvalid
	}
	e.setEnabled(ev, enabled)
	return native.Success
}

// Close closes a data channel or track.
func (b *Backend) Close(id int32) int32 {
	if c, ok := b.channel(id); ok {
		return c.close()
	}
	if t, ok := b.track(id); ok {
		return t.close()
	}
	return native.ErrInvalid
}

func (b *Backend) IsOpen(id int32) bool {
	if c, ok := b.channel(id); ok {
		return c.isOpen()
	}
	if t, ok := b.track(id); ok {
		return t.isOpen()
	}
	return false
}

func (b *Backend) IsClosed(id int32) bool {
	if c, ok := b.channel(id); ok {
		return c.isClosed()
	}
	if t, ok := b.track(id); ok {
		return !t.isOpen()
	}
	return true
}

func (b *Backend) SendMessage(id int32, data []byte, binary bool) int32 {
	if c, ok := b.channel(id); ok {
		return c.send(data, binary)
	}
	if _, ok := b.track(id); ok {
		// Remote tracks are receive-only.
		return native.ErrNotAvail
	}
	return native.ErrInvalid
}

func (b *Backend) ReceiveMessage(id int32, buf []byte) (int32, int32) {
	c, ok := b.channel(id)
	if !ok {
		return 0, native.ErrInvalid
	}
	return c.receive(buf)
}

func (b *Backend) MaxMessageSize(id int32) int32 {
	c, ok := b.channel(id)
	if !ok {
		return native.ErrInvalid
	}
	return c.maxMessageSize()
}

func (b *Backend) BufferedAmount(id int32) int32 {
	c, ok := b.channel(id)
	if !ok {
		return native.ErrInvalid
	}
	return clamp(c.dc.BufferedAmount())
}

func (b *Backend) SetBufferedAmountLowThreshold(id int32, amount int32) int32 {
	c, ok := b.channel(id)
	if !ok || amount < 0 {
		return native.ErrInvalid
	}
	c.dc.SetBufferedAmountLowThreshold(uint64(amount))
	return native.Success
}

func (b *Backend) AvailableAmount(id int32) int32 {
	c, ok := b.channel(id)
	if !ok {
		return native.ErrInvalid
	}
	return clamp(uint64(c.queuedBytes()))
}

func clamp(n uint64) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
