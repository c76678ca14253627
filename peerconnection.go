package datachannel

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// PeerConnection wraps a native peer connection handle.
//
// Listeners are registered on the exported containers; the native callback
// for an event kind is only enabled while its container has listeners.
type PeerConnection struct {
	e   *Engine
	h   int32
	log *zap.Logger
	lc  lifecycle

	OnLocalDescription     *Listeners[LocalDescriptionEvent]
	OnLocalCandidate       *Listeners[LocalCandidateEvent]
	OnStateChange          *Listeners[StateChangeEvent]
	OnIceStateChange       *Listeners[IceStateChangeEvent]
	OnGatheringStateChange *Listeners[GatheringStateChangeEvent]
	OnSignalingStateChange *Listeners[SignalingStateChangeEvent]
	OnDataChannel          *Listeners[DataChannelEvent]
	OnTrack                *Listeners[TrackEvent]

	mu       sync.Mutex
	channels map[int32]*DataChannel
	tracks   map[int32]*Track
}

func newPeerConnection(e *Engine, h int32) *PeerConnection {
	log := e.log.With(zap.Int32("peer", h))
	p := &PeerConnection{
		e:        e,
		h:        h,
		log:      log,
		channels: make(map[int32]*DataChannel),
		tracks:   make(map[int32]*Track),
	}
	p.OnLocalDescription = newListeners[LocalDescriptionEvent]("local description",
		e.listeners(h, native.EventLocalDescription), e.exec, log)
	p.OnLocalCandidate = newListeners[LocalCandidateEvent]("local candidate",
		e.listeners(h, native.EventLocalCandidate), e.exec, log)
	p.OnStateChange = newListeners[StateChangeEvent]("state change",
		e.listeners(h, native.EventStateChange), e.exec, log)
	p.OnIceStateChange = newListeners[IceStateChangeEvent]("ICE state change",
		e.listeners(h, native.EventIceStateChange), e.exec, log)
	p.OnGatheringStateChange = newListeners[GatheringStateChangeEvent]("gathering state change",
		e.listeners(h, native.EventGatheringStateChange), e.exec, log)
	p.OnSignalingStateChange = newListeners[SignalingStateChangeEvent]("signaling state change",
		e.listeners(h, native.EventSignalingStateChange), e.exec, log)
	p.OnDataChannel = newListeners[DataChannelEvent]("data channel",
		e.listeners(h, native.EventDataChannel), e.exec, log)
	p.OnTrack = newListeners[TrackEvent]("track",
		e.listeners(h, native.EventTrack), e.exec, log)
	return p
}

func (p *PeerConnection) containers() []closer {
	return []closer{
		p.OnLocalDescription,
		p.OnLocalCandidate,
		p.OnStateChange,
		p.OnIceStateChange,
		p.OnGatheringStateChange,
		p.OnSignalingStateChange,
		p.OnDataChannel,
		p.OnTrack,
	}
}

// Handle returns the native handle.
func (p *PeerConnection) Handle() int32 {
	return p.h
}

// Engine returns the engine that owns the connection.
func (p *PeerConnection) Engine() *Engine {
	return p.e
}

// SetLocalDescription creates and sets the local description. Use
// DescriptionAuto to let the native layer choose offer or answer.
func (p *PeerConnection) SetLocalDescription(typ DescriptionType) error {
	if err := p.lc.check(); err != nil {
		return err
	}
	return checkResult("rtcSetLocalDescription", p.e.lib.SetLocalDescription(p.h, string(typ)))
}

// SetRemoteDescription sets the remote description received from the peer.
func (p *PeerConnection) SetRemoteDescription(sdp string, typ DescriptionType) error {
	if err := p.lc.check(); err != nil {
		return err
	}
	if sdp == "" {
		return fmt.Errorf("%w: empty remote description", ErrInvalid)
	}
	return checkResult("rtcSetRemoteDescription", p.e.lib.SetRemoteDescription(p.h, sdp, string(typ)))
}

// SetAnswer sets an answer received from the peer as remote description.
func (p *PeerConnection) SetAnswer(sdp string) error {
	return p.SetRemoteDescription(sdp, DescriptionAnswer)
}

// AddRemoteCandidate adds an ICE candidate received from the peer.
func (p *PeerConnection) AddRemoteCandidate(candidate, mid string) error {
	if err := p.lc.check(); err != nil {
		return err
	}
	return checkResult("rtcAddRemoteCandidate", p.e.lib.AddRemoteCandidate(p.h, candidate, mid))
}

func (p *PeerConnection) text(op string, get func(int32) (string, int32)) (string, error) {
	if err := p.lc.check(); err != nil {
		return "", err
	}
	s, code := get(p.h)
	if err := checkResult(op, code); err != nil {
		return "", err
	}
	return s, nil
}

// LocalDescription returns the local SDP.
func (p *PeerConnection) LocalDescription() (string, error) {
	return p.text("rtcGetLocalDescription", p.e.lib.LocalDescription)
}

// LocalDescriptionType returns the type of the local description.
func (p *PeerConnection) LocalDescriptionType() (DescriptionType, error) {
	s, err := p.text("rtcGetLocalDescriptionType", p.e.lib.LocalDescriptionType)
	if err != nil {
		return "", err
	}
	return parseDescriptionType("rtcGetLocalDescriptionType", s)
}

// RemoteDescription returns the remote SDP.
func (p *PeerConnection) RemoteDescription() (string, error) {
	return p.text("rtcGetRemoteDescription", p.e.lib.RemoteDescription)
}

// RemoteDescriptionType returns the type of the remote description.
func (p *PeerConnection) RemoteDescriptionType() (DescriptionType, error) {
	s, err := p.text("rtcGetRemoteDescriptionType", p.e.lib.RemoteDescriptionType)
	if err != nil {
		return "", err
	}
	return parseDescriptionType("rtcGetRemoteDescriptionType", s)
}

func parseDescriptionType(op, s string) (DescriptionType, error) {
	t, ok := decodeDescriptionType(s)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %q", ErrUnknownNative, op, s)
	}
	return t, nil
}

// LocalAddress returns the local address of the selected candidate pair.
func (p *PeerConnection) LocalAddress() (netip.AddrPort, error) {
	s, err := p.text("rtcGetLocalAddress", p.e.lib.LocalAddress)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return parseAddress("rtcGetLocalAddress", s)
}

// RemoteAddress returns the remote address of the selected candidate pair.
func (p *PeerConnection) RemoteAddress() (netip.AddrPort, error) {
	s, err := p.text("rtcGetRemoteAddress", p.e.lib.RemoteAddress)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return parseAddress("rtcGetRemoteAddress", s)
}

func parseAddress(op, s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %s returned %q: %v", ErrUnknownNative, op, s, err)
	}
	return ap, nil
}

// SelectedCandidatePair returns the local and remote candidates in use.
func (p *PeerConnection) SelectedCandidatePair() (local, remote string, err error) {
	if err := p.lc.check(); err != nil {
		return "", "", err
	}
	local, remote, code := p.e.lib.SelectedCandidatePair(p.h)
	if err := checkResult("rtcGetSelectedCandidatePair", code); err != nil {
		return "", "", err
	}
	return local, remote, nil
}

// MaxDataChannelStream returns the highest usable data channel stream ID.
func (p *PeerConnection) MaxDataChannelStream() (int, error) {
	if err := p.lc.check(); err != nil {
		return 0, err
	}
	n, err := wrapError("rtcGetMaxDataChannelStream", p.e.lib.MaxDataChannelStream(p.h))
	return int(n), err
}

// RemoteMaxMessageSize returns the maximum message size the peer accepts.
func (p *PeerConnection) RemoteMaxMessageSize() (int, error) {
	if err := p.lc.check(); err != nil {
		return 0, err
	}
	n, err := wrapError("rtcGetRemoteMaxMessageSize", p.e.lib.RemoteMaxMessageSize(p.h))
	return int(n), err
}

// CreateDataChannel creates a data channel. A nil init uses the defaults.
func (p *PeerConnection) CreateDataChannel(label string, init *DataChannelInit) (*DataChannel, error) {
	if err := p.lc.check(); err != nil {
		return nil, err
	}
	h, err := wrapError("rtcCreateDataChannelEx", p.e.lib.CreateDataChannel(p.h, label, init.native()))
	if err != nil {
		return nil, err
	}
	ch, err := p.adoptChannel(h)
	if err != nil {
		p.e.lib.DeleteDataChannel(h)
		return nil, err
	}
	return ch, nil
}

// AddTrack adds a media track described by an SDP media section.
func (p *PeerConnection) AddTrack(mediaSDP string) (*Track, error) {
	if err := p.lc.check(); err != nil {
		return nil, err
	}
	h, err := wrapError("rtcAddTrack", p.e.lib.AddTrack(p.h, mediaSDP))
	if err != nil {
		return nil, err
	}
	t, err := p.adoptTrack(h)
	if err != nil {
		p.e.lib.DeleteTrack(h)
		return nil, err
	}
	return t, nil
}

// adoptChannel registers a wrapper for a native channel handle owned by p.
func (p *PeerConnection) adoptChannel(h int32) (*DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.lc.check(); err != nil {
		return nil, err
	}
	ch := newDataChannel(p, h)
	if !p.e.channels.Put(h, ch) {
		return nil, fmt.Errorf("%w: data channel handle %d already registered", ErrFailure, h)
	}
	p.channels[h] = ch
	return ch, nil
}

func (p *PeerConnection) adoptTrack(h int32) (*Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.lc.check(); err != nil {
		return nil, err
	}
	t := newTrack(p, h)
	if !p.e.tracks.Put(h, t) {
		return nil, fmt.Errorf("%w: track handle %d already registered", ErrFailure, h)
	}
	p.tracks[h] = t
	return t, nil
}

func (p *PeerConnection) dropChannel(h int32) {
	p.mu.Lock()
	delete(p.channels, h)
	p.mu.Unlock()
}

func (p *PeerConnection) dropTrack(h int32) {
	p.mu.Lock()
	delete(p.tracks, h)
	p.mu.Unlock()
}

// DataChannels returns the live data channels of the connection.
func (p *PeerConnection) DataChannels() []*DataChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*DataChannel, 0, len(p.channels))
	for _, ch := range p.channels {
		out = append(out, ch)
	}
	return out
}

// Tracks returns the live tracks of the connection.
func (p *PeerConnection) Tracks() []*Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Track, 0, len(p.tracks))
	for _, t := range p.tracks {
		out = append(out, t)
	}
	return out
}

// CloseChannels closes every data channel and track of the connection,
// leaving the connection itself open.
func (p *PeerConnection) CloseChannels() error {
	var result *multierror.Error
	for _, ch := range p.DataChannels() {
		if err := ch.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, t := range p.Tracks() {
		if err := t.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close closes the connection with its channels and tracks and releases the
// native handle. Close is idempotent and may be called from a listener;
// only the first call does any work.
func (p *PeerConnection) Close() error {
	if !p.lc.beginClose() {
		return nil
	}
	defer p.lc.finishClose()

	// Adoption checks the lifecycle under p.mu, so the child set is final
	// once beginClose has won.
	p.mu.Lock()
	p.mu.Unlock()

	var result *multierror.Error
	if err := p.CloseChannels(); err != nil {
		result = multierror.Append(result, err)
	}
	result = multierror.Append(result, teardown(p.log, p.containers(),
		func() { p.e.peers.Remove(p.h) },
		nativeStep{"rtcClosePeerConnection", func() int32 { return p.e.lib.ClosePeerConnection(p.h) }},
		nativeStep{"rtcDeletePeerConnection", func() int32 { return p.e.lib.DeletePeerConnection(p.h) }},
	))
	p.log.Debug("peer connection closed")
	return result.ErrorOrNil()
}
