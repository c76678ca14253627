//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"runtime"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/datachannel/native"
)

// Library returns the native.Library backed by the loaded libdatachannel.
// It must only be used after Load succeeded.
func Library() native.Library {
	return library{}
}

type library struct{}

var _ native.Library = library{}

func (library) Bind(d native.Dispatcher) {
	dispatcher.Store(&dispatcherRef{d: d})
}

func (library) InitLogger(level native.LogLevel, sink native.LogSink) {
	if sink == nil {
		logSink.Store(nil)
		rtcInitLogger(int32(level), 0)
		return
	}
	logSink.Store(&sinkRef{fn: sink})
	logOnce.Do(func() {
		logPtr = purego.NewCallback(onLog)
	})
	rtcInitLogger(int32(level), logPtr)
}

func pinString(p *runtime.Pinner, s string) *byte {
	b := cString(s)
	if b != nil {
		p.Pin(b)
	}
	return b
}

func (library) CreatePeerConnection(cfg *native.Config) int32 {
	var pin runtime.Pinner
	defer pin.Unpin()

	c := rtcConfiguration{
		iceServersCount:        int32(len(cfg.ICEServers)),
		proxyServer:            pinString(&pin, cfg.ProxyServer),
		bindAddress:            pinString(&pin, cfg.BindAddress),
		certificateType:        int32(cfg.CertificateType),
		iceTransportPolicy:     int32(cfg.ICETransportPolicy),
		enableIceTcp:           cfg.EnableICETCP,
		enableIceUdpMux:        cfg.EnableICEUDPMux,
		disableAutoNegotiation: cfg.DisableAutoNegotiation,
		forceMediaTransport:    cfg.ForceMediaTransport,
		portRangeBegin:         cfg.PortRangeBegin,
		portRangeEnd:           cfg.PortRangeEnd,
		mtu:                    cfg.MTU,
		maxMessageSize:         cfg.MaxMessageSize,
	}
	if len(cfg.ICEServers) > 0 {
		servers := make([]*byte, len(cfg.ICEServers))
		for i, s := range cfg.ICEServers {
			servers[i] = pinString(&pin, s)
		}
		pin.Pin(&servers[0])
		c.iceServers = &servers[0]
	}
	return rtcCreatePeerConnection(&c)
}

func (library) ClosePeerConnection(pc int32) int32  { return rtcClosePeerConnection(pc) }
func (library) DeletePeerConnection(pc int32) int32 { return rtcDeletePeerConnection(pc) }

func (library) SetCallback(id int32, ev native.Event, enabled bool) int32 {
	if int(ev) >= len(callbackSetters) {
		return native.ErrInvalid
	}
	var cb uintptr
	if enabled {
		cb = callbackPtr(ev)
	}
	return callbackSetters[ev](id, cb)
}

func (library) SetLocalDescription(pc int32, typ string) int32 {
	t := cString(typ)
	defer runtime.KeepAlive(t)
	return rtcSetLocalDescription(pc, t)
}

func (library) SetRemoteDescription(pc int32, sdp, typ string) int32 {
	t := cString(typ)
	defer runtime.KeepAlive(t)
	return rtcSetRemoteDescription(pc, sdp, t)
}

func (library) AddRemoteCandidate(pc int32, candidate, mid string) int32 {
	m := cString(mid)
	defer runtime.KeepAlive(m)
	return rtcAddRemoteCandidate(pc, candidate, m)
}

func (library) LocalDescription(pc int32) (string, int32) {
	return readString(rtcGetLocalDescription, pc)
}

func (library) LocalDescriptionType(pc int32) (string, int32) {
	return readString(rtcGetLocalDescriptionType, pc)
}

func (library) RemoteDescription(pc int32) (string, int32) {
	return readString(rtcGetRemoteDescription, pc)
}

func (library) RemoteDescriptionType(pc int32) (string, int32) {
	return readString(rtcGetRemoteDescriptionType, pc)
}

func (library) LocalAddress(pc int32) (string, int32) {
	return readString(rtcGetLocalAddress, pc)
}

func (library) RemoteAddress(pc int32) (string, int32) {
	return readString(rtcGetRemoteAddress, pc)
}

func (library) SelectedCandidatePair(pc int32) (local, remote string, code int32) {
	n := rtcGetSelectedCandidatePair(pc, nil, 0, nil, 0)
	if n <= 0 {
		return "", "", n
	}
	l := make([]byte, n)
	r := make([]byte, n)
	if code := rtcGetSelectedCandidatePair(pc, &l[0], n, &r[0], n); code < 0 {
		return "", "", code
	}
	return goString(&l[0]), goString(&r[0]), native.Success
}

func (library) MaxDataChannelStream(pc int32) int32 { return rtcGetMaxDataChannelStream(pc) }
func (library) RemoteMaxMessageSize(pc int32) int32 { return rtcGetRemoteMaxMessageSize(pc) }

func (library) CreateDataChannel(pc int32, label string, init *native.DataChannelInit) int32 {
	var pin runtime.Pinner
	defer pin.Unpin()

	c := rtcDataChannelInit{
		reliability: rtcReliability{
			unordered:         init.Reliability.Unordered,
			unreliable:        init.Reliability.Unreliable,
			maxPacketLifeTime: init.Reliability.MaxPacketLifeTime,
			maxRetransmits:    init.Reliability.MaxRetransmits,
		},
		protocol:     pinString(&pin, init.Protocol),
		negotiated:   init.Negotiated,
		manualStream: init.ManualStream,
		stream:       init.Stream,
	}
	return rtcCreateDataChannelEx(pc, label, &c)
}

func (library) DeleteDataChannel(dc int32) int32 { return rtcDeleteDataChannel(dc) }
func (library) DataChannelStream(dc int32) int32 { return rtcGetDataChannelStream(dc) }

func (library) DataChannelLabel(dc int32) (string, int32) {
	return readString(rtcGetDataChannelLabel, dc)
}

func (library) DataChannelProtocol(dc int32) (string, int32) {
	return readString(rtcGetDataChannelProtocol, dc)
}

func (library) DataChannelReliability(dc int32) (native.Reliability, int32) {
	var r rtcReliability
	if code := rtcGetDataChannelReliability(dc, &r); code < 0 {
		return native.Reliability{}, code
	}
	return native.Reliability{
		Unordered:         r.unordered,
		Unreliable:        r.unreliable,
		MaxPacketLifeTime: r.maxPacketLifeTime,
		MaxRetransmits:    r.maxRetransmits,
	}, native.Success
}

func (library) AddTrack(pc int32, mediaSDP string) int32 { return rtcAddTrack(pc, mediaSDP) }
func (library) DeleteTrack(tr int32) int32               { return rtcDeleteTrack(tr) }

func (library) TrackMid(tr int32) (string, int32) {
	return readString(rtcGetTrackMid, tr)
}

func (library) TrackDescription(tr int32) (string, int32) {
	return readString(rtcGetTrackDescription, tr)
}

func (library) Close(id int32) int32   { return rtcClose(id) }
func (library) IsOpen(id int32) bool   { return rtcIsOpen(id) }
func (library) IsClosed(id int32) bool { return rtcIsClosed(id) }

// SendMessage sends data. Text goes out null-terminated with a negative size,
// which is how libdatachannel tells text from binary.
func (library) SendMessage(id int32, data []byte, binary bool) int32 {
	if !binary {
		text := append(append(make([]byte, 0, len(data)+1), data...), 0)
		return rtcSendMessage(id, &text[0], -1)
	}
	if len(data) == 0 {
		return rtcSendMessage(id, nil, 0)
	}
	return rtcSendMessage(id, &data[0], int32(len(data)))
}

// ReceiveMessage pulls one message. libdatachannel reports text messages with
// a negative size that counts the terminating NUL.
func (library) ReceiveMessage(id int32, buf []byte) (int32, int32) {
	size := int32(len(buf))
	if size == 0 {
		// A NULL buffer only queries the size of the next message.
		code := rtcReceiveMessage(id, nil, &size)
		if code < 0 {
			return abs(size), code
		}
		return abs(size), native.ErrTooSmall
	}
	code := rtcReceiveMessage(id, &buf[0], &size)
	switch {
	case code < 0:
		return abs(size), code
	case size < 0:
		return -size - 1, native.Success
	default:
		return size, native.Success
	}
}

func abs(n int32) int32 {
	if n < 0 {
		return -n
	}
	return n
}

func (library) MaxMessageSize(id int32) int32 { return rtcGetMaxMessageSize(id) }
func (library) BufferedAmount(id int32) int32 { return rtcGetBufferedAmount(id) }

func (library) SetBufferedAmountLowThreshold(id int32, amount int32) int32 {
	return rtcSetBufferedAmountLowThreshold(id, amount)
}

func (library) AvailableAmount(id int32) int32 { return rtcGetAvailableAmount(id) }
