package datachannel

import (
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// Track wraps a native media track handle. Media packets arrive on OnMessage
// already packetized by the native layer.
type Track struct {
	peer *PeerConnection
	h    int32
	log  *zap.Logger
	lc   lifecycle

	OnOpen    *Listeners[TrackEvent]
	OnClosed  *Listeners[TrackEvent]
	OnError   *Listeners[TrackErrorEvent]
	OnMessage *Listeners[TrackMessageEvent]
}

func newTrack(p *PeerConnection, h int32) *Track {
	e := p.e
	log := p.log.With(zap.Int32("track", h))
	return &Track{
		peer:      p,
		h:         h,
		log:       log,
		OnOpen:    newListeners[TrackEvent]("open", e.listeners(h, native.EventOpen), e.exec, log),
		OnClosed:  newListeners[TrackEvent]("closed", e.listeners(h, native.EventClosed), e.exec, log),
		OnError:   newListeners[TrackErrorEvent]("error", e.listeners(h, native.EventError), e.exec, log),
		OnMessage: newListeners[TrackMessageEvent]("message", e.listeners(h, native.EventMessage), e.exec, log),
	}
}

// Handle returns the native handle.
func (t *Track) Handle() int32 {
	return t.h
}

// Peer returns the connection the track belongs to.
func (t *Track) Peer() *PeerConnection {
	return t.peer
}

// Mid returns the media stream identification of the track.
func (t *Track) Mid() (string, error) {
	if err := t.lc.check(); err != nil {
		return "", err
	}
	s, code := t.peer.e.lib.TrackMid(t.h)
	if err := checkResult("rtcGetTrackMid", code); err != nil {
		return "", err
	}
	return s, nil
}

// Description returns the SDP media section of the track.
func (t *Track) Description() (string, error) {
	if err := t.lc.check(); err != nil {
		return "", err
	}
	s, code := t.peer.e.lib.TrackDescription(t.h)
	if err := checkResult("rtcGetTrackDescription", code); err != nil {
		return "", err
	}
	return s, nil
}

// IsOpen reports whether the track is open for sending.
func (t *Track) IsOpen() bool {
	return t.lc.isOpen() && t.peer.e.lib.IsOpen(t.h)
}

// IsClosed reports whether the track is closed.
func (t *Track) IsClosed() bool {
	return !t.lc.isOpen() || t.peer.e.lib.IsClosed(t.h)
}

// Send sends one media packet.
func (t *Track) Send(data []byte) error {
	if err := t.lc.check(); err != nil {
		return err
	}
	return checkResult("rtcSendMessage", t.peer.e.lib.SendMessage(t.h, data, true))
}

// Close closes the track and releases the native handle. It is idempotent.
func (t *Track) Close() error {
	if !t.lc.beginClose() {
		return nil
	}
	defer t.lc.finishClose()

	result := teardown(t.log, []closer{t.OnOpen, t.OnClosed, t.OnError, t.OnMessage},
		func() {
			t.peer.e.tracks.Remove(t.h)
			t.peer.dropTrack(t.h)
		},
		nativeStep{"rtcClose", func() int32 { return t.peer.e.lib.Close(t.h) }},
		nativeStep{"rtcDeleteTrack", func() int32 { return t.peer.e.lib.DeleteTrack(t.h) }},
	)
	t.log.Debug("track closed")
	return result.ErrorOrNil()
}
