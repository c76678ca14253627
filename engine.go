package datachannel

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/internal/bindings"
	"github.com/obinnaokechukwu/datachannel/internal/handles"
	"github.com/obinnaokechukwu/datachannel/native"
)

// Engine binds a native library to the Go side: it owns the handle
// registries and receives every native notification.
//
// One Engine per native.Library instance. The libdatachannel backend is
// process-wide, so it is normally used through Default.
type Engine struct {
	lib  native.Library
	log  *zap.Logger
	exec Executor

	peers    *handles.Registry[*PeerConnection]
	channels *handles.Registry[*DataChannel]
	tracks   *handles.Registry[*Track]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its resources.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithExecutor sets the executor that runs listener invocations.
// The default runs listeners inline on the native callback thread.
func WithExecutor(x Executor) Option {
	return func(e *Engine) {
		if x != nil {
			e.exec = x
		}
	}
}

// NewEngine creates an Engine for lib and binds its dispatcher.
func NewEngine(lib native.Library, opts ...Option) *Engine {
	e := &Engine{
		lib:      lib,
		log:      Logger(),
		exec:     Inline,
		peers:    handles.New[*PeerConnection](),
		channels: handles.New[*DataChannel](),
		tracks:   handles.New[*Track](),
	}
	for _, opt := range opts {
		opt(e)
	}
	lib.Bind(&bridge{e: e, log: e.log.Named("dispatch")})
	return e
}

// Library returns the native library the engine drives.
func (e *Engine) Library() native.Library {
	return e.lib
}

// CreatePeerConnection creates a PeerConnection. Close it when done.
func (e *Engine) CreatePeerConnection(cfg Configuration) (*PeerConnection, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	h, err := wrapError("rtcCreatePeerConnection", e.lib.CreatePeerConnection(cfg.native()))
	if err != nil {
		return nil, err
	}

	p := newPeerConnection(e, h)
	if !e.peers.Put(h, p) {
		e.lib.ClosePeerConnection(h)
		e.lib.DeletePeerConnection(h)
		return nil, fmt.Errorf("%w: peer connection handle %d already registered", ErrFailure, h)
	}
	e.log.Debug("peer connection created", zap.Int32("handle", h))
	return p, nil
}

// PeerConnection returns the live PeerConnection for a handle.
func (e *Engine) PeerConnection(h int32) (*PeerConnection, bool) {
	return e.peers.Get(h)
}

// Stats reports the number of live wrappers per resource kind.
func (e *Engine) Stats() (peers, channels, tracks int) {
	return e.peers.Len(), e.channels.Len(), e.tracks.Len()
}

// Close closes every live PeerConnection.
func (e *Engine) Close() error {
	var result *multierror.Error
	e.peers.Each(func(_ int32, p *PeerConnection) bool {
		if err := p.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		return true
	})
	return result.ErrorOrNil()
}

func (e *Engine) listeners(h int32, ev native.Event) func(bool) error {
	op := "rtcSet" + ev.String() + "Callback"
	return func(enabled bool) error {
		return checkResult(op, e.lib.SetCallback(h, ev, enabled))
	}
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
	defaultExec   *SerialExecutor
)

// Init loads libdatachannel and creates the default Engine. It is called
// automatically by CreatePeerConnection, but can be called explicitly to
// check for errors. It is safe to call multiple times.
func Init() error {
	_, err := Default()
	return err
}

// IsLoaded returns true if libdatachannel has been successfully loaded.
func IsLoaded() bool {
	return bindings.IsLoaded()
}

// Default returns the process-wide Engine backed by libdatachannel, loading
// the library on first use according to the environment Settings.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = newDefaultEngine()
	})
	return defaultEngine, defaultErr
}

func newDefaultEngine() (*Engine, error) {
	s, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	if err := bindings.Load(s.LibraryPath); err != nil {
		return nil, err
	}

	lib := bindings.Library()
	lib.InitLogger(s.NativeLogLevel(), nativeLogSink(Logger()))

	var opts []Option
	if s.AsyncDispatch {
		defaultExec = NewSerialExecutor(s.QueueSize)
		opts = append(opts, WithExecutor(defaultExec))
	}
	return NewEngine(lib, opts...), nil
}

// CreatePeerConnection creates a PeerConnection on the default Engine.
func CreatePeerConnection(cfg Configuration) (*PeerConnection, error) {
	e, err := Default()
	if err != nil {
		return nil, err
	}
	return e.CreatePeerConnection(cfg)
}
