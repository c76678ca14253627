package pionrtc

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// rtpBufferSize fits one RTP packet at the default receive MTU.
const rtpBufferSize = 1500

// track is a remote media track. Received RTP packets are delivered as
// binary messages.
type track struct {
	endpoint
	peer   *peer
	remote *webrtc.TrackRemote
	recv   *webrtc.RTPReceiver
	mid    string
	closed atomic.Bool
}

func (b *Backend) adoptTrack(p *peer, remote *webrtc.TrackRemote, recv *webrtc.RTPReceiver) *track {
	t := &track{peer: p, remote: remote, recv: recv}
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Receiver() == recv {
			t.mid = tr.Mid()
			break
		}
	}
	t.b = b
	t.id = b.objects.Insert(t)
	return t
}

// start announces the track as open and pumps packets until the receiver
// stops.
func (t *track) start() {
	id := t.id
	t.fire(native.EventOpen, func(d native.Dispatcher) { d.Open(id) })
	go func() {
		buf := make([]byte, rtpBufferSize)
		for {
			n, _, err := t.remote.Read(buf)
			if err != nil {
				t.closed.Store(true)
				t.fire(native.EventClosed, func(d native.Dispatcher) { d.Closed(id) })
				return
			}
			t.fire(native.EventMessage, func(d native.Dispatcher) { d.Message(id, buf[:n], true) })
		}
	}()
}

func (t *track) isOpen() bool {
	return !t.closed.Load()
}

func (t *track) close() int32 {
	if err := t.recv.Stop(); err != nil {
		t.b.log.Debug("stopping track receiver", zap.Int32("track", t.id), zap.Error(err))
		return native.ErrFailure
	}
	return native.Success
}

func (t *track) delete() {
	t.forget()
	t.closed.Store(true)
	if err := t.recv.Stop(); err != nil {
		t.b.log.Debug("stopping track receiver", zap.Int32("track", t.id), zap.Error(err))
	}
}

func (b *Backend) DeleteTrack(id int32) int32 {
	t, ok := b.track(id)
	if !ok {
		return native.ErrInvalid
	}
	t.delete()
	return native.Success
}

func (b *Backend) TrackMid(id int32) (string, int32) {
	t, ok := b.track(id)
	if !ok {
		return "", native.ErrInvalid
	}
	if t.mid == "" {
		return "", native.ErrNotAvail
	}
	return t.mid, native.Success
}

// TrackDescription is not available: it would require rendering an SDP
// media section.
func (b *Backend) TrackDescription(id int32) (string, int32) {
	if _, ok := b.track(id); !ok {
		return "", native.ErrInvalid
	}
	return "", native.ErrNotAvail
}
