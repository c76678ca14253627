package datachannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/obinnaokechukwu/datachannel/native"
)

func TestDispatchUnknownHandle(t *testing.T) {
	e, lib, logs := newTestEngine(t)
	p := newTestPeer(t, e)

	var called bool
	_, err := p.OnStateChange.Register(func(StateChangeEvent) { called = true })
	require.NoError(t, err)

	lib.d.StateChange(p.Handle()+100, 2)
	assert.False(t, called)

	entries := logs.FilterMessage("dropping event for unknown peer connection").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	lib.d.Open(999)
	assert.Equal(t, 1, logs.FilterMessage("dropping event for unknown channel or track").Len())
}

func TestDispatchStateDecoding(t *testing.T) {
	e, lib, logs := newTestEngine(t)
	p := newTestPeer(t, e)

	var states []PeerState
	_, err := p.OnStateChange.Register(func(ev StateChangeEvent) {
		assert.Same(t, p, ev.Peer)
		states = append(states, ev.State)
	})
	require.NoError(t, err)

	lib.d.StateChange(p.Handle(), 2)
	lib.d.StateChange(p.Handle(), 99)
	assert.Equal(t, []PeerState{PeerStateConnected}, states)

	entries := logs.FilterMessage("unknown peer state").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestDispatchDescriptionAndCandidate(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)

	var desc LocalDescriptionEvent
	var cand LocalCandidateEvent
	_, err := p.OnLocalDescription.Register(func(ev LocalDescriptionEvent) { desc = ev })
	require.NoError(t, err)
	_, err = p.OnLocalCandidate.Register(func(ev LocalCandidateEvent) { cand = ev })
	require.NoError(t, err)

	lib.d.LocalDescription(p.Handle(), "v=0", "offer")
	lib.d.LocalCandidate(p.Handle(), "a=candidate:1 1 UDP 1 127.0.0.1 5000 typ host", "0")

	assert.Equal(t, DescriptionOffer, desc.Type)
	assert.Equal(t, "v=0", desc.SDP)
	assert.Equal(t, "0", cand.Mid)
	assert.Same(t, p, cand.Peer)
}

func TestDispatchActivatesNativeCallback(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)

	id, err := p.OnGatheringStateChange.Register(func(GatheringStateChangeEvent) {})
	require.NoError(t, err)
	p.OnGatheringStateChange.Deregister(id)

	assert.Equal(t, []callbackCall{
		{p.Handle(), native.EventGatheringStateChange, true},
		{p.Handle(), native.EventGatheringStateChange, false},
	}, lib.callbacks())
}

func TestDispatchAnnouncedDataChannel(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)

	var announced *DataChannel
	_, err := p.OnDataChannel.Register(func(ev DataChannelEvent) { announced = ev.Channel })
	require.NoError(t, err)

	lib.d.DataChannel(p.Handle(), 40)
	require.NotNil(t, announced)
	assert.Equal(t, int32(40), announced.Handle())
	assert.Same(t, p, announced.Peer())
	assert.Len(t, p.DataChannels(), 1)

	var opened bool
	_, err = announced.OnOpen.Register(func(ChannelEvent) { opened = true })
	require.NoError(t, err)
	lib.d.Open(40)
	assert.True(t, opened)
}

func TestDispatchOrphanResources(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)
	require.NoError(t, p.Close())

	lib.d.DataChannel(p.Handle(), 41)
	lib.d.Track(p.Handle(), 42)
	assert.Equal(t, 1, lib.count("DeleteDataChannel"))
	assert.Equal(t, 1, lib.count("DeleteTrack"))

	_, channels, tracks := e.Stats()
	assert.Zero(t, channels)
	assert.Zero(t, tracks)
}

func TestDispatchMessageCopy(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)
	ch, err := p.CreateDataChannel("chat", nil)
	require.NoError(t, err)

	var got []MessageEvent
	_, err = ch.OnMessage.Register(func(ev MessageEvent) { got = append(got, ev) })
	require.NoError(t, err)

	buf := []byte("hello")
	lib.d.Message(ch.Handle(), buf, false)
	copy(buf, "XXXXX")
	lib.d.Message(ch.Handle(), nil, true)

	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text())
	assert.False(t, got[0].Binary)
	assert.NotNil(t, got[1].Data)
	assert.Empty(t, got[1].Data)
	assert.True(t, got[1].Binary)
}

func TestDispatchTrackResolution(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)
	tr, err := p.AddTrack("m=video 9 UDP/TLS/RTP/SAVPF 96")
	require.NoError(t, err)

	var packets [][]byte
	var trackErr string
	_, err = tr.OnMessage.Register(func(ev TrackMessageEvent) { packets = append(packets, ev.Data) })
	require.NoError(t, err)
	_, err = tr.OnError.Register(func(ev TrackErrorEvent) { trackErr = ev.Message })
	require.NoError(t, err)

	lib.d.Message(tr.Handle(), []byte{0x80, 0x60}, true)
	lib.d.Error(tr.Handle(), "srtp failure")

	assert.Equal(t, [][]byte{{0x80, 0x60}}, packets)
	assert.Equal(t, "srtp failure", trackErr)
}

func TestDispatchRecoversBridgePanic(t *testing.T) {
	e, lib, logs := newTestEngine(t)
	p := newTestPeer(t, e)

	p.OnTrack = nil
	assert.NotPanics(t, func() { lib.d.Track(p.Handle(), 43) })
	assert.Equal(t, 1, logs.FilterMessage("dispatch panic").Len())
}

func TestDispatchAnnouncedDuringClose(t *testing.T) {
	e, lib, _ := newTestEngine(t)
	p := newTestPeer(t, e)

	_, err := p.OnDataChannel.Register(func(DataChannelEvent) { t.Error("channel announced to a closing peer") })
	require.NoError(t, err)
	_, err = p.OnTrack.Register(func(TrackEvent) { t.Error("track announced to a closing peer") })
	require.NoError(t, err)

	lib.onCallback = func(c callbackCall) {
		if c.enabled || c.ev != native.EventDataChannel {
			return
		}
		lib.d.DataChannel(p.Handle(), 4242)
		lib.d.Track(p.Handle(), 4243)
	}
	require.NoError(t, p.Close())

	assert.Equal(t, 1, lib.count("DeleteDataChannel"))
	assert.Equal(t, 1, lib.count("DeleteTrack"))
	_, channels, tracks := e.Stats()
	assert.Zero(t, channels)
	assert.Zero(t, tracks)
}

func TestDispatchDuplicateAnnouncement(t *testing.T) {
	e, lib, logs := newTestEngine(t)
	p := newTestPeer(t, e)

	var announced int
	_, err := p.OnDataChannel.Register(func(DataChannelEvent) { announced++ })
	require.NoError(t, err)

	lib.d.DataChannel(p.Handle(), 40)
	lib.d.DataChannel(p.Handle(), 40)
	assert.Equal(t, 1, announced)
	assert.Equal(t, 1, lib.count("DeleteDataChannel"))
	assert.Equal(t, 1, logs.FilterMessage("dropping announced data channel").Len())
}
