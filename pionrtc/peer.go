package pionrtc

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// maxDataChannelStream matches libdatachannel's default stream count.
const maxDataChannelStream = 1023

// defaultMaxMessageSize is used until SCTP has negotiated a limit.
const defaultMaxMessageSize = 65536

type peer struct {
	endpoint
	pc            *webrtc.PeerConnection
	autoNegotiate bool

	// Candidates gathered before the first local description was announced
	// are held back so the remote side always sees the description first.
	cmu       sync.Mutex
	announced bool
	pending   []func()
}

func (b *Backend) CreatePeerConnection(cfg *native.Config) int32 {
	conf, err := b.configuration(cfg)
	if err != nil {
		b.log.Warn("invalid configuration", zap.Error(err))
		return native.ErrInvalid
	}
	se, err := b.settingEngine(cfg)
	if err != nil {
		b.log.Warn("invalid configuration", zap.Error(err))
		return native.ErrInvalid
	}
	pc, err := webrtc.NewAPI(webrtc.WithSettingEngine(se)).NewPeerConnection(conf)
	if err != nil {
		b.log.Warn("creating peer connection", zap.Error(err))
		return native.ErrFailure
	}

	p := &peer{pc: pc, autoNegotiate: !cfg.DisableAutoNegotiation}
	p.b = b
	p.id = b.objects.Insert(p)
	p.wire()
	return p.id
}

func (p *peer) wire() {
	id := p.id
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		mid := ""
		if init.SDPMid != nil {
			mid = *init.SDPMid
		}
		p.afterDescription(func() {
			p.fire(native.EventLocalCandidate, func(d native.Dispatcher) {
				d.LocalCandidate(id, "a="+init.Candidate, mid)
			})
		})
	})
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if code, ok := peerStateCode(s); ok {
			p.fire(native.EventStateChange, func(d native.Dispatcher) { d.StateChange(id, code) })
		}
	})
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		if code, ok := iceStateCode(s); ok {
			p.fire(native.EventIceStateChange, func(d native.Dispatcher) { d.IceStateChange(id, code) })
		}
	})
	p.pc.OnICEGatheringStateChange(func(s webrtc.ICEGatheringState) {
		if code, ok := gatheringStateCode(s); ok {
			p.fire(native.EventGatheringStateChange, func(d native.Dispatcher) { d.GatheringStateChange(id, code) })
		}
	})
	p.pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		if code, ok := signalingStateCode(s); ok {
			p.fire(native.EventSignalingStateChange, func(d native.Dispatcher) { d.SignalingStateChange(id, code) })
		}
	})
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c := p.b.adoptChannel(p, dc)
		if !p.fire(native.EventDataChannel, func(d native.Dispatcher) { d.DataChannel(id, c.id) }) {
			// Nobody can learn the handle, so nobody could delete it.
			c.delete()
		}
	})
	p.pc.OnTrack(func(tr *webrtc.TrackRemote, recv *webrtc.RTPReceiver) {
		t := p.b.adoptTrack(p, tr, recv)
		if !p.fire(native.EventTrack, func(d native.Dispatcher) { d.Track(id, t.id) }) {
			t.delete()
			return
		}
		t.start()
	})
	if p.autoNegotiate {
		p.pc.OnNegotiationNeeded(func() {
			if p.pc.SignalingState() == webrtc.SignalingStateStable {
				p.setLocalDescription("")
			}
		})
	}
}

func (b *Backend) ClosePeerConnection(id int32) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	if err := p.pc.Close(); err != nil {
		b.log.Debug("closing peer connection", zap.Int32("peer", id), zap.Error(err))
		return native.ErrFailure
	}
	return native.Success
}

func (b *Backend) DeletePeerConnection(id int32) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	p.forget()
	if err := p.pc.Close(); err != nil {
		b.log.Debug("closing peer connection", zap.Int32("peer", id), zap.Error(err))
	}
	return native.Success
}

func (b *Backend) SetLocalDescription(id int32, typ string) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	return p.setLocalDescription(typ)
}

func (p *peer) setLocalDescription(typ string) int32 {
	if typ == "" {
		typ = "offer"
		if p.pc.SignalingState() == webrtc.SignalingStateHaveRemoteOffer {
			typ = "answer"
		}
	}

	var (
		desc webrtc.SessionDescription
		err  error
	)
	switch typ {
	case "offer":
		desc, err = p.pc.CreateOffer(nil)
	case "answer", "pranswer":
		desc, err = p.pc.CreateAnswer(nil)
		if typ == "pranswer" {
			desc.Type = webrtc.SDPTypePranswer
		}
	case "rollback":
		desc = webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
	default:
		return native.ErrInvalid
	}
	if err != nil {
		p.b.log.Debug("creating description", zap.Int32("peer", p.id), zap.String("type", typ), zap.Error(err))
		return native.ErrFailure
	}
	if err := p.pc.SetLocalDescription(desc); err != nil {
		p.b.log.Debug("setting local description", zap.Int32("peer", p.id), zap.String("type", typ), zap.Error(err))
		return native.ErrFailure
	}

	if local := p.pc.LocalDescription(); local != nil && desc.Type != webrtc.SDPTypeRollback {
		id := p.id
		p.fire(native.EventLocalDescription, func(d native.Dispatcher) {
			d.LocalDescription(id, local.SDP, local.Type.String())
		})
		p.flushCandidates()
	}
	return native.Success
}

func (p *peer) afterDescription(fn func()) {
	p.cmu.Lock()
	if !p.announced {
		p.pending = append(p.pending, fn)
		p.cmu.Unlock()
		return
	}
	p.cmu.Unlock()
	fn()
}

func (p *peer) flushCandidates() {
	p.cmu.Lock()
	p.announced = true
	pending := p.pending
	p.pending = nil
	p.cmu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (b *Backend) SetRemoteDescription(id int32, sdp, typ string) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	if typ == "" {
		typ = "offer"
		if p.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
			typ = "answer"
		}
	}
	t := webrtc.NewSDPType(typ)
	if t == webrtc.SDPTypeUnknown {
		return native.ErrInvalid
	}
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: sdp}); err != nil {
		b.log.Debug("setting remote description", zap.Int32("peer", id), zap.Error(err))
		return native.ErrFailure
	}
	if t == webrtc.SDPTypeOffer && p.autoNegotiate {
		return p.setLocalDescription("answer")
	}
	return native.Success
}

func (b *Backend) AddRemoteCandidate(id int32, candidate, mid string) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	init := webrtc.ICECandidateInit{Candidate: strings.TrimPrefix(candidate, "a=")}
	if mid != "" {
		init.SDPMid = &mid
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		b.log.Debug("adding remote candidate", zap.Int32("peer", id), zap.Error(err))
		return native.ErrFailure
	}
	return native.Success
}

func (b *Backend) description(id int32, remote bool) (*webrtc.SessionDescription, int32) {
	p, ok := b.peer(id)
	if !ok {
		return nil, native.ErrInvalid
	}
	desc := p.pc.LocalDescription()
	if remote {
		desc = p.pc.RemoteDescription()
	}
	if desc == nil {
		return nil, native.ErrNotAvail
	}
	return desc, native.Success
}

func (b *Backend) LocalDescription(id int32) (string, int32) {
	desc, code := b.description(id, false)
	if desc == nil {
		return "", code
	}
	return desc.SDP, code
}

func (b *Backend) LocalDescriptionType(id int32) (string, int32) {
	desc, code := b.description(id, false)
	if desc == nil {
		return "", code
	}
	return desc.Type.String(), code
}

func (b *Backend) RemoteDescription(id int32) (string, int32) {
	desc, code := b.description(id, true)
	if desc == nil {
		return "", code
	}
	return desc.SDP, code
}

func (b *Backend) RemoteDescriptionType(id int32) (string, int32) {
	desc, code := b.description(id, true)
	if desc == nil {
		return "", code
	}
	return desc.Type.String(), code
}

func (p *peer) selectedPair() (*webrtc.ICECandidatePair, int32) {
	sctp := p.pc.SCTP()
	if sctp == nil || sctp.Transport() == nil {
		return nil, native.ErrNotAvail
	}
	pair, err := sctp.Transport().ICETransport().GetSelectedCandidatePair()
	if err != nil || pair == nil {
		return nil, native.ErrNotAvail
	}
	return pair, native.Success
}

func (b *Backend) address(id int32, remote bool) (string, int32) {
	p, ok := b.peer(id)
	if !ok {
		return "", native.ErrInvalid
	}
	pair, code := p.selectedPair()
	if pair == nil {
		return "", code
	}
	c := pair.Local
	if remote {
		c = pair.Remote
	}
	return net.JoinHostPort(c.Address, strconv.Itoa(int(c.Port))), native.Success
}

func (b *Backend) LocalAddress(id int32) (string, int32)  { return b.address(id, false) }
func (b *Backend) RemoteAddress(id int32) (string, int32) { return b.address(id, true) }

func (b *Backend) SelectedCandidatePair(id int32) (local, remote string, code int32) {
	p, ok := b.peer(id)
	if !ok {
		return "", "", native.ErrInvalid
	}
	pair, code := p.selectedPair()
	if pair == nil {
		return "", "", code
	}
	return "a=" + pair.Local.ToJSON().Candidate, "a=" + pair.Remote.ToJSON().Candidate, native.Success
}

func (b *Backend) MaxDataChannelStream(id int32) int32 {
	if _, ok := b.peer(id); !ok {
		return native.ErrInvalid
	}
	return maxDataChannelStream
}

func (b *Backend) RemoteMaxMessageSize(id int32) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	return p.maxMessageSize()
}

func (p *peer) maxMessageSize() int32 {
	if sctp := p.pc.SCTP(); sctp != nil {
		if n := sctp.GetCapabilities().MaxMessageSize; n > 0 {
			return clamp(uint64(n))
		}
	}
	return defaultMaxMessageSize
}

// AddTrack is not supported: building a local track from an SDP media
// section needs SDP parsing.
func (b *Backend) AddTrack(id int32, mediaSDP string) int32 {
	if _, ok := b.peer(id); !ok {
		return native.ErrInvalid
	}
	return native.ErrNotAvail
}

func peerStateCode(s webrtc.PeerConnectionState) (int32, bool) {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return 0, true
	case webrtc.PeerConnectionStateConnecting:
		return 1, true
	case webrtc.PeerConnectionStateConnected:
		return 2, true
	case webrtc.PeerConnectionStateDisconnected:
		return 3, true
	case webrtc.PeerConnectionStateFailed:
		return 4, true
	case webrtc.PeerConnectionStateClosed:
		return 5, true
	}
	return 0, false
}

func iceStateCode(s webrtc.ICEConnectionState) (int32, bool) {
	switch s {
	case webrtc.ICEConnectionStateNew:
		return 0, true
	case webrtc.ICEConnectionStateChecking:
		return 1, true
	case webrtc.ICEConnectionStateConnected:
		return 2, true
	case webrtc.ICEConnectionStateCompleted:
		return 3, true
	case webrtc.ICEConnectionStateFailed:
		return 4, true
	case webrtc.ICEConnectionStateDisconnected:
		return 5, true
	case webrtc.ICEConnectionStateClosed:
		return 6, true
	}
	return 0, false
}

func gatheringStateCode(s webrtc.ICEGatheringState) (int32, bool) {
	switch s {
	case webrtc.ICEGatheringStateNew:
		return 0, true
	case webrtc.ICEGatheringStateGathering:
		return 1, true
	case webrtc.ICEGatheringStateComplete:
		return 2, true
	}
	return 0, false
}

func signalingStateCode(s webrtc.SignalingState) (int32, bool) {
	switch s {
	case webrtc.SignalingStateStable:
		return 0, true
	case webrtc.SignalingStateHaveLocalOffer:
		return 1, true
	case webrtc.SignalingStateHaveRemoteOffer:
		return 2, true
	case webrtc.SignalingStateHaveLocalPranswer:
		return 3, true
	case webrtc.SignalingStateHaveRemotePranswer:
		return 4, true
	}
	return 0, false
}
