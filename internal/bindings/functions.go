//go:build !ios && !android && (amd64 || arm64)

package bindings

import "unsafe"

// rtcConfiguration mirrors the C struct of the same name.
type rtcConfiguration struct {
	iceServers             **byte
	iceServersCount        int32
	proxyServer            *byte
	bindAddress            *byte
	certificateType        int32
	iceTransportPolicy     int32
	enableIceTcp           bool
	enableIceUdpMux        bool
	disableAutoNegotiation bool
	forceMediaTransport    bool
	portRangeBegin         uint16
	portRangeEnd           uint16
	mtu                    int32
	maxMessageSize         int32
}

// rtcReliability mirrors the C struct of the same name.
type rtcReliability struct {
	unordered         bool
	unreliable        bool
	maxPacketLifeTime uint32
	maxRetransmits    uint32
}

// rtcDataChannelInit mirrors the C struct of the same name.
type rtcDataChannelInit struct {
	reliability  rtcReliability
	protocol     *byte
	negotiated   bool
	manualStream bool
	stream       uint16
}

// getString is the shape of every rtcGet* function that fills a buffer.
// A nil buffer returns the required size including the terminating NUL.
type getString func(id int32, buffer *byte, size int32) int32

var (
	rtcInitLogger func(level int32, cb uintptr)
	rtcPreload    func()

	rtcCreatePeerConnection func(cfg *rtcConfiguration) int32
	rtcClosePeerConnection  func(pc int32) int32
	rtcDeletePeerConnection func(pc int32) int32

	rtcSetLocalDescription      func(pc int32, typ *byte) int32
	rtcSetRemoteDescription     func(pc int32, sdp string, typ *byte) int32
	rtcAddRemoteCandidate       func(pc int32, cand string, mid *byte) int32
	rtcGetLocalDescription      getString
	rtcGetRemoteDescription     getString
	rtcGetLocalDescriptionType  getString
	rtcGetRemoteDescriptionType getString
	rtcGetLocalAddress          getString
	rtcGetRemoteAddress         getString
	rtcGetSelectedCandidatePair func(pc int32, local *byte, localSize int32, remote *byte, remoteSize int32) int32
	rtcGetMaxDataChannelStream  func(pc int32) int32
	rtcGetRemoteMaxMessageSize  func(pc int32) int32

	rtcCreateDataChannelEx       func(pc int32, label string, init *rtcDataChannelInit) int32
	rtcDeleteDataChannel         func(dc int32) int32
	rtcGetDataChannelStream      func(dc int32) int32
	rtcGetDataChannelLabel       getString
	rtcGetDataChannelProtocol    getString
	rtcGetDataChannelReliability func(dc int32, r *rtcReliability) int32

	rtcAddTrack            func(pc int32, mediaSDP string) int32
	rtcDeleteTrack         func(tr int32) int32
	rtcGetTrackMid         getString
	rtcGetTrackDescription getString

	rtcClose                         func(id int32) int32
	rtcIsOpen                        func(id int32) bool
	rtcIsClosed                      func(id int32) bool
	rtcSendMessage                   func(id int32, data *byte, size int32) int32
	rtcReceiveMessage                func(id int32, buffer *byte, size *int32) int32
	rtcGetMaxMessageSize             func(id int32) int32
	rtcGetBufferedAmount             func(id int32) int32
	rtcSetBufferedAmountLowThreshold func(id int32, amount int32) int32
	rtcGetAvailableAmount            func(id int32) int32
)

// cString converts a Go string to a null-terminated C string (as *byte).
// The empty string maps to NULL.
func cString(s string) *byte {
	if s == "" {
		return nil
	}
	b := append([]byte(s), 0)
	return &b[0]
}

// goString converts a C string to a Go string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	return string(unsafe.Slice(p, cStrlen(p)))
}

func cStrlen(p *byte) int {
	if p == nil {
		return 0
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return n
}

// readString calls fn twice: once for the size, once to fill the buffer.
func readString(fn getString, id int32) (string, int32) {
	n := fn(id, nil, 0)
	if n <= 0 {
		return "", n
	}
	buf := make([]byte, n)
	if r := fn(id, &buf[0], n); r < 0 {
		return "", r
	}
	return goString(&buf[0]), 0
}
