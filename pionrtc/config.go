package pionrtc

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/obinnaokechukwu/datachannel/native"
)

// parseICEServer splits a libdatachannel style URL such as
// "turn:user:password@host:3478?transport=tcp" into pion's form, where the
// credentials live outside the URL.
func parseICEServer(raw string) (webrtc.ICEServer, error) {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || rest == "" {
		return webrtc.ICEServer{}, fmt.Errorf("invalid ICE server %q", raw)
	}
	switch scheme {
	case "stun", "stuns", "turn", "turns":
	default:
		return webrtc.ICEServer{}, fmt.Errorf("invalid ICE server scheme %q", scheme)
	}

	server := webrtc.ICEServer{}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		user, pass, hasPass := strings.Cut(rest[:at], ":")
		server.Username = user
		if hasPass {
			server.Credential = pass
		}
		rest = rest[at+1:]
	}
	server.URLs = []string{scheme + ":" + rest}
	return server, nil
}

func (b *Backend) configuration(cfg *native.Config) (webrtc.Configuration, error) {
	c := webrtc.Configuration{
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
	for _, s := range cfg.ICEServers {
		server, err := parseICEServer(s)
		if err != nil {
			return webrtc.Configuration{}, err
		}
		c.ICEServers = append(c.ICEServers, server)
	}
	if cfg.ICETransportPolicy == native.TransportPolicyRelay {
		c.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	if cfg.CertificateType == native.CertificateRSA {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return webrtc.Configuration{}, err
		}
		cert, err := webrtc.GenerateCertificate(key)
		if err != nil {
			return webrtc.Configuration{}, err
		}
		c.Certificates = []webrtc.Certificate{*cert}
	}
	return c, nil
}

func (b *Backend) settingEngine(cfg *native.Config) (webrtc.SettingEngine, error) {
	var se webrtc.SettingEngine
	se.LoggerFactory = &loggerFactory{b: b}

	if cfg.PortRangeBegin != 0 || cfg.PortRangeEnd != 0 {
		begin, end := cfg.PortRangeBegin, cfg.PortRangeEnd
		if begin == 0 {
			begin = 1024
		}
		if end == 0 {
			end = 65535
		}
		if err := se.SetEphemeralUDPPortRange(begin, end); err != nil {
			return se, err
		}
	}
	if cfg.BindAddress != "" {
		bind := net.ParseIP(cfg.BindAddress)
		if bind == nil {
			return se, fmt.Errorf("invalid bind address %q", cfg.BindAddress)
		}
		se.SetIPFilter(func(ip net.IP) bool { return ip.Equal(bind) })
	}
	if cfg.MTU > 0 {
		se.SetReceiveMTU(uint(cfg.MTU))
	}
	if b.loopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	return se, nil
}
