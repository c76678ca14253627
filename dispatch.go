package datachannel

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// bridge routes native notifications to listener containers. It runs on
// whatever thread the native layer uses and never lets a panic escape: an
// unknown handle or an undecodable payload drops the event.
type bridge struct {
	e   *Engine
	log *zap.Logger
}

var _ native.Dispatcher = (*bridge)(nil)

func (b *bridge) guard(ev native.Event, id int32) {
	if r := recover(); r != nil {
		b.log.Error("dispatch panic",
			zap.Stringer("event", ev),
			zap.Int32("handle", id),
			zap.Any("panic", r),
			zap.Stack("stack"))
	}
}

func (b *bridge) peer(ev native.Event, pc int32) (*PeerConnection, bool) {
	p, ok := b.e.peers.Get(pc)
	if !ok {
		b.log.Warn("dropping event for unknown peer connection",
			zap.Stringer("event", ev), zap.Int32("handle", pc))
	}
	return p, ok
}

func (b *bridge) channel(ev native.Event, id int32) (*DataChannel, bool) {
	ch, ok := b.e.channels.Get(id)
	if !ok {
		b.log.Warn("dropping event for unknown data channel",
			zap.Stringer("event", ev), zap.Int32("handle", id))
	}
	return ch, ok
}

// resource resolves a channel or track handle; both share one id space.
func (b *bridge) resource(ev native.Event, id int32) (*DataChannel, *Track, bool) {
	if ch, ok := b.e.channels.Get(id); ok {
		return ch, nil, true
	}
	if tr, ok := b.e.tracks.Get(id); ok {
		return nil, tr, true
	}
	b.log.Warn("dropping event for unknown channel or track",
		zap.Stringer("event", ev), zap.Int32("handle", id))
	return nil, nil, false
}

func (b *bridge) LocalDescription(pc int32, sdp, typ string) {
	defer b.guard(native.EventLocalDescription, pc)
	p, ok := b.peer(native.EventLocalDescription, pc)
	if !ok {
		return
	}
	t, ok := decodeDescriptionType(typ)
	if !ok {
		b.log.Error("unknown description type", zap.Int32("handle", pc), zap.String("type", typ))
		return
	}
	p.OnLocalDescription.invoke(LocalDescriptionEvent{Peer: p, SDP: sdp, Type: t})
}

func (b *bridge) LocalCandidate(pc int32, candidate, mid string) {
	defer b.guard(native.EventLocalCandidate, pc)
	p, ok := b.peer(native.EventLocalCandidate, pc)
	if !ok {
		return
	}
	p.OnLocalCandidate.invoke(LocalCandidateEvent{Peer: p, Candidate: candidate, Mid: mid})
}

func (b *bridge) StateChange(pc int32, state int32) {
	defer b.guard(native.EventStateChange, pc)
	p, ok := b.peer(native.EventStateChange, pc)
	if !ok {
		return
	}
	s, ok := decodePeerState(state)
	if !ok {
		b.log.Error("unknown peer state", zap.Int32("handle", pc), zap.Int32("state", state))
		return
	}
	p.OnStateChange.invoke(StateChangeEvent{Peer: p, State: s})
}

func (b *bridge) IceStateChange(pc int32, state int32) {
	defer b.guard(native.EventIceStateChange, pc)
	p, ok := b.peer(native.EventIceStateChange, pc)
	if !ok {
		return
	}
	s, ok := decodeIceState(state)
	if !ok {
		b.log.Error("unknown ICE state", zap.Int32("handle", pc), zap.Int32("state", state))
		return
	}
	p.OnIceStateChange.invoke(IceStateChangeEvent{Peer: p, State: s})
}

func (b *bridge) GatheringStateChange(pc int32, state int32) {
	defer b.guard(native.EventGatheringStateChange, pc)
	p, ok := b.peer(native.EventGatheringStateChange, pc)
	if !ok {
		return
	}
	s, ok := decodeGatheringState(state)
	if !ok {
		b.log.Error("unknown gathering state", zap.Int32("handle", pc), zap.Int32("state", state))
		return
	}
	p.OnGatheringStateChange.invoke(GatheringStateChangeEvent{Peer: p, State: s})
}

func (b *bridge) SignalingStateChange(pc int32, state int32) {
	defer b.guard(native.EventSignalingStateChange, pc)
	p, ok := b.peer(native.EventSignalingStateChange, pc)
	if !ok {
		return
	}
	s, ok := decodeSignalingState(state)
	if !ok {
		b.log.Error("unknown signaling state", zap.Int32("handle", pc), zap.Int32("state", state))
		return
	}
	p.OnSignalingStateChange.invoke(SignalingStateChangeEvent{Peer: p, State: s})
}

func (b *bridge) DataChannel(pc int32, dc int32) {
	defer b.guard(native.EventDataChannel, pc)
	p, ok := b.peer(native.EventDataChannel, pc)
	if !ok {
		// Nobody can ever close it from Go.
		b.e.lib.DeleteDataChannel(dc)
		return
	}
	ch, err := p.adoptChannel(dc)
	if err != nil {
		b.log.Warn("dropping announced data channel",
			zap.Int32("handle", pc), zap.Int32("channel", dc), zap.Error(err))
		b.e.lib.DeleteDataChannel(dc)
		return
	}
	p.OnDataChannel.invoke(DataChannelEvent{Peer: p, Channel: ch})
}

func (b *bridge) Track(pc int32, tr int32) {
	defer b.guard(native.EventTrack, pc)
	p, ok := b.peer(native.EventTrack, pc)
	if !ok {
		b.e.lib.DeleteTrack(tr)
		return
	}
	t, err := p.adoptTrack(tr)
	if err != nil {
		b.log.Warn("dropping announced track",
			zap.Int32("handle", pc), zap.Int32("track", tr), zap.Error(err))
		b.e.lib.DeleteTrack(tr)
		return
	}
	p.OnTrack.invoke(TrackEvent{Peer: p, Track: t})
}

func (b *bridge) Open(id int32) {
	defer b.guard(native.EventOpen, id)
	ch, tr, ok := b.resource(native.EventOpen, id)
	switch {
	case !ok:
	case ch != nil:
		ch.OnOpen.invoke(ChannelEvent{Channel: ch})
	default:
		tr.OnOpen.invoke(TrackEvent{Peer: tr.peer, Track: tr})
	}
}

func (b *bridge) Closed(id int32) {
	defer b.guard(native.EventClosed, id)
	ch, tr, ok := b.resource(native.EventClosed, id)
	switch {
	case !ok:
	case ch != nil:
		ch.OnClosed.invoke(ChannelEvent{Channel: ch})
	default:
		tr.OnClosed.invoke(TrackEvent{Peer: tr.peer, Track: tr})
	}
}

func (b *bridge) Error(id int32, message string) {
	defer b.guard(native.EventError, id)
	ch, tr, ok := b.resource(native.EventError, id)
	switch {
	case !ok:
	case ch != nil:
		ch.OnError.invoke(ChannelErrorEvent{Channel: ch, Message: message})
	default:
		tr.OnError.invoke(TrackErrorEvent{Track: tr, Message: message})
	}
}

func (b *bridge) Message(id int32, data []byte, binary bool) {
	defer b.guard(native.EventMessage, id)
	ch, tr, ok := b.resource(native.EventMessage, id)
	if !ok {
		return
	}
	// data belongs to the native layer and is only valid during this call.
	owned := bytes.Clone(data)
	if owned == nil {
		owned = []byte{}
	}
	if ch != nil {
		ch.OnMessage.invoke(MessageEvent{Channel: ch, Data: owned, Binary: binary})
		return
	}
	tr.OnMessage.invoke(TrackMessageEvent{Track: tr, Data: owned})
}

func (b *bridge) BufferedAmountLow(id int32) {
	defer b.guard(native.EventBufferedAmountLow, id)
	ch, ok := b.channel(native.EventBufferedAmountLow, id)
	if !ok {
		return
	}
	ch.OnBufferedAmountLow.invoke(ChannelEvent{Channel: ch})
}

func (b *bridge) Available(id int32) {
	defer b.guard(native.EventAvailable, id)
	ch, ok := b.channel(native.EventAvailable, id)
	if !ok {
		return
	}
	ch.OnAvailable.invoke(ChannelEvent{Channel: ch})
}
