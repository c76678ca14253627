package pionrtc

import (
	"bytes"
	"math"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

type channel struct {
	endpoint
	peer *peer
	dc   *webrtc.DataChannel

	// Messages received while the message callback is disabled wait here
	// for ReceiveMessage.
	qmu    sync.Mutex
	queue  [][]byte
	queued int
}

func (b *Backend) adoptChannel(p *peer, dc *webrtc.DataChannel) *channel {
	c := &channel{peer: p, dc: dc}
	c.b = b
	c.id = b.objects.Insert(c)
	c.wire()
	return c
}

func (c *channel) wire() {
	id := c.id
	c.dc.OnOpen(func() {
		c.fire(native.EventOpen, func(d native.Dispatcher) { d.Open(id) })
	})
	c.dc.OnClose(func() {
		c.fire(native.EventClosed, func(d native.Dispatcher) { d.Closed(id) })
	})
	c.dc.OnError(func(err error) {
		c.fire(native.EventError, func(d native.Dispatcher) { d.Error(id, err.Error()) })
	})
	c.dc.OnBufferedAmountLow(func() {
		c.fire(native.EventBufferedAmountLow, func(d native.Dispatcher) { d.BufferedAmountLow(id) })
	})
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if c.fire(native.EventMessage, func(d native.Dispatcher) { d.Message(id, msg.Data, !msg.IsString) }) {
			return
		}
		c.push(msg.Data)
		c.fire(native.EventAvailable, func(d native.Dispatcher) { d.Available(id) })
	})
}

func (b *Backend) CreateDataChannel(id int32, label string, init *native.DataChannelInit) int32 {
	p, ok := b.peer(id)
	if !ok {
		return native.ErrInvalid
	}
	opts, code := channelInit(init)
	if code != native.Success {
		return code
	}
	dc, err := p.pc.CreateDataChannel(label, opts)
	if err != nil {
		b.log.Debug("creating data channel", zap.Int32("peer", id), zap.String("label", label), zap.Error(err))
		return native.ErrFailure
	}
	return b.adoptChannel(p, dc).id
}

func channelInit(init *native.DataChannelInit) (*webrtc.DataChannelInit, int32) {
	if init == nil {
		return nil, native.Success
	}
	ordered := !init.Reliability.Unordered
	opts := &webrtc.DataChannelInit{Ordered: &ordered}

	if init.Reliability.Unreliable {
		if init.Reliability.MaxPacketLifeTime > 0 {
			v := uint16(min(init.Reliability.MaxPacketLifeTime, math.MaxUint16))
			opts.MaxPacketLifeTime = &v
		} else {
			v := uint16(min(init.Reliability.MaxRetransmits, math.MaxUint16))
			opts.MaxRetransmits = &v
		}
	}
	if init.Protocol != "" {
		protocol := init.Protocol
		opts.Protocol = &protocol
	}
	if init.Negotiated {
		if !init.ManualStream {
			return nil, native.ErrInvalid
		}
		negotiated := true
		opts.Negotiated = &negotiated
	}
	if init.ManualStream {
		if init.Stream > maxDataChannelStream {
			return nil, native.ErrInvalid
		}
		stream := init.Stream
		opts.ID = &stream
	}
	return opts, native.Success
}

func (b *Backend) DeleteDataChannel(id int32) int32 {
	c, ok := b.channel(id)
	if !ok {
		return native.ErrInvalid
	}
	c.delete()
	return native.Success
}

func (c *channel) delete() {
	c.forget()
	if err := c.dc.Close(); err != nil {
		c.b.log.Debug("closing data channel", zap.Int32("channel", c.id), zap.Error(err))
	}
}

func (c *channel) close() int32 {
	if err := c.dc.Close(); err != nil {
		c.b.log.Debug("closing data channel", zap.Int32("channel", c.id), zap.Error(err))
		return native.ErrFailure
	}
	return native.Success
}

func (c *channel) isOpen() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *channel) isClosed() bool {
	return c.dc.ReadyState() == webrtc.DataChannelStateClosed
}

func (c *channel) send(data []byte, binary bool) int32 {
	if !c.isOpen() {
		return native.ErrFailure
	}
	if int32(len(data)) > c.maxMessageSize() {
		return native.ErrInvalid
	}
	var err error
	if binary {
		err = c.dc.Send(data)
	} else {
		err = c.dc.SendText(string(data))
	}
	if err != nil {
		c.b.log.Debug("sending message", zap.Int32("channel", c.id), zap.Error(err))
		return native.ErrFailure
	}
	return native.Success
}

func (c *channel) maxMessageSize() int32 {
	return c.peer.maxMessageSize()
}

func (c *channel) push(data []byte) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	c.queue = append(c.queue, bytes.Clone(data))
	c.queued += len(data)
}

// receive pops the oldest queued message into buf. A message that does not
// fit stays queued and its size is returned with ErrTooSmall.
func (c *channel) receive(buf []byte) (int32, int32) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return 0, native.ErrNotAvail
	}
	msg := c.queue[0]
	if len(buf) < len(msg) {
		return int32(len(msg)), native.ErrTooSmall
	}
	copy(buf, msg)
	c.queue[0] = nil
	c.queue = c.queue[1:]
	c.queued -= len(msg)
	return int32(len(msg)), native.Success
}

func (c *channel) queuedBytes() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return c.queued
}

func (b *Backend) DataChannelStream(id int32) int32 {
	c, ok := b.channel(id)
	if !ok {
		return native.ErrInvalid
	}
	stream := c.dc.ID()
	if stream == nil {
		return native.ErrNotAvail
	}
	return int32(*stream)
}

func (b *Backend) DataChannelLabel(id int32) (string, int32) {
	c, ok := b.channel(id)
	if !ok {
		return "", native.ErrInvalid
	}
	return c.dc.Label(), native.Success
}

func (b *Backend) DataChannelProtocol(id int32) (string, int32) {
	c, ok := b.channel(id)
	if !ok {
		return "", native.ErrInvalid
	}
	return c.dc.Protocol(), native.Success
}

func (b *Backend) DataChannelReliability(id int32) (native.Reliability, int32) {
	c, ok := b.channel(id)
	if !ok {
		return native.Reliability{}, native.ErrInvalid
	}
	r := native.Reliability{Unordered: !c.dc.Ordered()}
	if v := c.dc.MaxPacketLifeTime(); v != nil {
		r.Unreliable = true
		r.MaxPacketLifeTime = uint32(*v)
	}
	if v := c.dc.MaxRetransmits(); v != nil {
		r.Unreliable = true
		r.MaxRetransmits = uint32(*v)
	}
	return r, native.Success
}
