package datachannel

import (
	"fmt"
	"net/url"
	"time"

	"github.com/obinnaokechukwu/datachannel/native"
)

// CertificateType selects the DTLS certificate algorithm.
type CertificateType = native.CertificateType

const (
	CertificateDefault = native.CertificateDefault
	CertificateECDSA   = native.CertificateECDSA
	CertificateRSA     = native.CertificateRSA
)

// TransportPolicy restricts which ICE candidates are used.
type TransportPolicy = native.TransportPolicy

const (
	TransportPolicyAll   = native.TransportPolicyAll
	TransportPolicyRelay = native.TransportPolicyRelay
)

// Configuration holds the settings for a new PeerConnection.
type Configuration struct {
	// ICEServers are STUN/TURN URLs such as "stun:stun.l.google.com:19302"
	// or "turn:user:password@turn.example.com:3478".
	ICEServers []string

	ProxyServer        string // libnice only
	BindAddress        string // libjuice only; empty means any
	CertificateType    CertificateType
	ICETransportPolicy TransportPolicy
	EnableICETCP       bool // libnice only
	EnableICEUDPMux    bool // libjuice only

	// DisableAutoNegotiation stops the native layer from creating offers
	// and answers on its own; SetLocalDescription must then be called.
	DisableAutoNegotiation bool
	ForceMediaTransport    bool

	PortRangeBegin uint16 // 0 means automatic
	PortRangeEnd   uint16 // 0 means automatic
	MTU            int    // <= 0 means automatic
	MaxMessageSize int    // <= 0 means default
}

var iceSchemes = map[string]bool{
	"stun":  true,
	"stuns": true,
	"turn":  true,
	"turns": true,
}

func (c *Configuration) validate() error {
	for _, s := range c.ICEServers {
		u, err := url.Parse(s)
		if err != nil || !iceSchemes[u.Scheme] {
			return fmt.Errorf("%w: ICE server %q", ErrInvalid, s)
		}
	}
	if c.PortRangeBegin != 0 && c.PortRangeEnd != 0 && c.PortRangeBegin > c.PortRangeEnd {
		return fmt.Errorf("%w: port range %d-%d", ErrInvalid, c.PortRangeBegin, c.PortRangeEnd)
	}
	return nil
}

func (c *Configuration) native() *native.Config {
	return &native.Config{
		ICEServers:             append([]string(nil), c.ICEServers...),
		ProxyServer:            c.ProxyServer,
		BindAddress:            c.BindAddress,
		CertificateType:        c.CertificateType,
		ICETransportPolicy:     c.ICETransportPolicy,
		EnableICETCP:           c.EnableICETCP,
		EnableICEUDPMux:        c.EnableICEUDPMux,
		DisableAutoNegotiation: c.DisableAutoNegotiation,
		ForceMediaTransport:    c.ForceMediaTransport,
		PortRangeBegin:         c.PortRangeBegin,
		PortRangeEnd:           c.PortRangeEnd,
		MTU:                    int32(c.MTU),
		MaxMessageSize:         int32(c.MaxMessageSize),
	}
}

// Reliability describes the delivery guarantees of a data channel.
type Reliability struct {
	Unordered  bool
	Unreliable bool

	// MaxPacketLifeTime bounds retransmissions in time when Unreliable.
	MaxPacketLifeTime time.Duration

	// MaxRetransmits bounds retransmissions in count when Unreliable and
	// MaxPacketLifeTime is zero. Zero means no retransmission.
	MaxRetransmits uint32
}

func (r Reliability) native() native.Reliability {
	return native.Reliability{
		Unordered:         r.Unordered,
		Unreliable:        r.Unreliable,
		MaxPacketLifeTime: uint32(r.MaxPacketLifeTime / time.Millisecond),
		MaxRetransmits:    r.MaxRetransmits,
	}
}

func reliabilityFromNative(r native.Reliability) Reliability {
	return Reliability{
		Unordered:         r.Unordered,
		Unreliable:        r.Unreliable,
		MaxPacketLifeTime: time.Duration(r.MaxPacketLifeTime) * time.Millisecond,
		MaxRetransmits:    r.MaxRetransmits,
	}
}

// DataChannelInit holds the settings for a new DataChannel. The zero value
// is an ordered, reliable, in-band negotiated channel with an automatically
// chosen stream ID.
type DataChannelInit struct {
	Reliability Reliability
	Protocol    string

	// Negotiated marks the channel as negotiated out of band by the
	// application.
	Negotiated bool

	// Stream selects the SCTP stream ID; nil picks one automatically.
	Stream *uint16
}

func (i *DataChannelInit) native() *native.DataChannelInit {
	if i == nil {
		return &native.DataChannelInit{}
	}
	n := &native.DataChannelInit{
		Reliability: i.Reliability.native(),
		Protocol:    i.Protocol,
		Negotiated:  i.Negotiated,
	}
	if i.Stream != nil {
		n.ManualStream = true
		n.Stream = *i.Stream
	}
	return n
}
