// Package native describes the boundary to a libdatachannel-compatible
// WebRTC implementation.
//
// The boundary mirrors the libdatachannel C API: resources are identified by
// int32 handles, every operation returns an int32 that is either a result
// (handle, size) when >= 0 or one of the negative error codes below, and
// events are delivered through a Dispatcher from arbitrary threads.
//
// Backends:
//   - internal/bindings loads libdatachannel at runtime with purego
//   - pionrtc implements the boundary in-process on top of pion/webrtc
package native

// Result codes returned by Library operations.
const (
	Success     int32 = 0
	ErrInvalid  int32 = -1 // invalid argument
	ErrFailure  int32 = -2 // runtime failure
	ErrNotAvail int32 = -3 // element not available
	ErrTooSmall int32 = -4 // buffer too small
)

// Event identifies one kind of native notification.
type Event uint8

const (
	EventLocalDescription Event = iota
	EventLocalCandidate
	EventStateChange
	EventIceStateChange
	EventGatheringStateChange
	EventSignalingStateChange
	EventDataChannel
	EventTrack
	EventOpen
	EventClosed
	EventError
	EventMessage
	EventBufferedAmountLow
	EventAvailable

	eventCount
)

var eventNames = [...]string{
	EventLocalDescription:     "LocalDescription",
	EventLocalCandidate:       "LocalCandidate",
	EventStateChange:          "StateChange",
	EventIceStateChange:       "IceStateChange",
	EventGatheringStateChange: "GatheringStateChange",
	EventSignalingStateChange: "SignalingStateChange",
	EventDataChannel:          "DataChannel",
	EventTrack:                "Track",
	EventOpen:                 "Open",
	EventClosed:               "Closed",
	EventError:                "Error",
	EventMessage:              "Message",
	EventBufferedAmountLow:    "BufferedAmountLow",
	EventAvailable:            "Available",
}

// String returns the event name.
func (e Event) String() string {
	if e < eventCount {
		return eventNames[e]
	}
	return "Unknown"
}

// PeerEvent reports whether the event is registered on a peer connection
// rather than on a channel or track.
func (e Event) PeerEvent() bool {
	return e <= EventTrack
}

// Events returns all event kinds in declaration order.
func Events() []Event {
	out := make([]Event, 0, eventCount)
	for e := Event(0); e < eventCount; e++ {
		out = append(out, e)
	}
	return out
}

// CertificateType selects the DTLS certificate algorithm.
type CertificateType int32

const (
	CertificateDefault CertificateType = 0 // ECDSA
	CertificateECDSA   CertificateType = 1
	CertificateRSA     CertificateType = 2
)

// TransportPolicy restricts which ICE candidates are used.
type TransportPolicy int32

const (
	TransportPolicyAll   TransportPolicy = 0
	TransportPolicyRelay TransportPolicy = 1
)

// LogLevel matches rtcLogLevel.
type LogLevel int32

const (
	LogNone    LogLevel = 0
	LogFatal   LogLevel = 1
	LogError   LogLevel = 2
	LogWarning LogLevel = 3
	LogInfo    LogLevel = 4
	LogDebug   LogLevel = 5
	LogVerbose LogLevel = 6
)

// Config is the flattened rtcConfiguration.
type Config struct {
	ICEServers             []string
	ProxyServer            string
	BindAddress            string
	CertificateType        CertificateType
	ICETransportPolicy     TransportPolicy
	EnableICETCP           bool
	EnableICEUDPMux        bool
	DisableAutoNegotiation bool
	ForceMediaTransport    bool
	PortRangeBegin         uint16
	PortRangeEnd           uint16
	MTU                    int32
	MaxMessageSize         int32
}

// Reliability matches rtcReliability.
type Reliability struct {
	Unordered         bool
	Unreliable        bool
	MaxPacketLifeTime uint32 // milliseconds
	MaxRetransmits    uint32
}

// DataChannelInit matches rtcDataChannelInit.
type DataChannelInit struct {
	Reliability  Reliability
	Protocol     string
	Negotiated   bool
	ManualStream bool
	Stream       uint16
}

// LogSink receives log lines emitted by the native library.
type LogSink func(level LogLevel, message string)

// Dispatcher receives native notifications. Implementations are called from
// threads owned by the native layer and must never panic back into it.
type Dispatcher interface {
	LocalDescription(pc int32, sdp, typ string)
	LocalCandidate(pc int32, candidate, mid string)
	StateChange(pc int32, state int32)
	IceStateChange(pc int32, state int32)
	GatheringStateChange(pc int32, state int32)
	SignalingStateChange(pc int32, state int32)
	DataChannel(pc int32, dc int32)
	Track(pc int32, tr int32)

	Open(id int32)
	Closed(id int32)
	Error(id int32, message string)
	// Message delivers a received message. data is only valid for the
	// duration of the call. binary is false for text messages.
	Message(id int32, data []byte, binary bool)
	BufferedAmountLow(id int32)
	Available(id int32)
}

// Library is the set of operations a backend exposes.
//
// Handle-returning operations return the new handle (> 0) or a negative error
// code. Close and delete operations must tolerate handles that are already
// torn down. After DeletePeerConnection, DeleteDataChannel or DeleteTrack
// returns, no further callback fires for that handle except one already in
// progress on another thread.
type Library interface {
	// Bind installs the dispatcher that receives enabled events.
	Bind(d Dispatcher)
	// InitLogger forwards native log lines at or above level to sink.
	InitLogger(level LogLevel, sink LogSink)

	CreatePeerConnection(cfg *Config) int32
	ClosePeerConnection(pc int32) int32
	DeletePeerConnection(pc int32) int32

	// SetCallback enables or disables delivery of ev for the handle.
	SetCallback(id int32, ev Event, enabled bool) int32

	SetLocalDescription(pc int32, typ string) int32
	SetRemoteDescription(pc int32, sdp, typ string) int32
	AddRemoteCandidate(pc int32, candidate, mid string) int32
	LocalDescription(pc int32) (string, int32)
	LocalDescriptionType(pc int32) (string, int32)
	RemoteDescription(pc int32) (string, int32)
	RemoteDescriptionType(pc int32) (string, int32)
	LocalAddress(pc int32) (string, int32)
	RemoteAddress(pc int32) (string, int32)
	SelectedCandidatePair(pc int32) (local, remote string, code int32)
	MaxDataChannelStream(pc int32) int32
	RemoteMaxMessageSize(pc int32) int32

	CreateDataChannel(pc int32, label string, init *DataChannelInit) int32
	DeleteDataChannel(dc int32) int32
	DataChannelStream(dc int32) int32
	DataChannelLabel(dc int32) (string, int32)
	DataChannelProtocol(dc int32) (string, int32)
	DataChannelReliability(dc int32) (Reliability, int32)

	AddTrack(pc int32, mediaSDP string) int32
	DeleteTrack(tr int32) int32
	TrackMid(tr int32) (string, int32)
	TrackDescription(tr int32) (string, int32)

	// Channel and track operations share one handle space.
	Close(id int32) int32
	IsOpen(id int32) bool
	IsClosed(id int32) bool
	SendMessage(id int32, data []byte, binary bool) int32
	// ReceiveMessage copies a pending message into buf. It returns the
	// message size, or ErrTooSmall together with the required size, or
	// ErrNotAvail when nothing is pending.
	ReceiveMessage(id int32, buf []byte) (size int32, code int32)
	MaxMessageSize(id int32) int32
	BufferedAmount(id int32) int32
	SetBufferedAmountLowThreshold(id int32, amount int32) int32
	AvailableAmount(id int32) int32
}
