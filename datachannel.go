package datachannel

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/datachannel/native"
)

// DataChannel wraps a native data channel handle.
type DataChannel struct {
	peer *PeerConnection
	h    int32
	log  *zap.Logger
	lc   lifecycle

	OnOpen              *Listeners[ChannelEvent]
	OnClosed            *Listeners[ChannelEvent]
	OnError             *Listeners[ChannelErrorEvent]
	OnMessage           *Listeners[MessageEvent]
	OnBufferedAmountLow *Listeners[ChannelEvent]
	OnAvailable         *Listeners[ChannelEvent]
}

func newDataChannel(p *PeerConnection, h int32) *DataChannel {
	e := p.e
	log := p.log.With(zap.Int32("channel", h))
	return &DataChannel{
		peer:                p,
		h:                   h,
		log:                 log,
		OnOpen:              newListeners[ChannelEvent]("open", e.listeners(h, native.EventOpen), e.exec, log),
		OnClosed:            newListeners[ChannelEvent]("closed", e.listeners(h, native.EventClosed), e.exec, log),
		OnError:             newListeners[ChannelErrorEvent]("error", e.listeners(h, native.EventError), e.exec, log),
		OnMessage:           newListeners[MessageEvent]("message", e.listeners(h, native.EventMessage), e.exec, log),
		OnBufferedAmountLow: newListeners[ChannelEvent]("buffered amount low", e.listeners(h, native.EventBufferedAmountLow), e.exec, log),
		OnAvailable:         newListeners[ChannelEvent]("available", e.listeners(h, native.EventAvailable), e.exec, log),
	}
}

func (d *DataChannel) containers() []closer {
	return []closer{d.OnOpen, d.OnClosed, d.OnError, d.OnMessage, d.OnBufferedAmountLow, d.OnAvailable}
}

func (d *DataChannel) lib() native.Library {
	return d.peer.e.lib
}

// Handle returns the native handle.
func (d *DataChannel) Handle() int32 {
	return d.h
}

// Peer returns the connection the channel belongs to.
func (d *DataChannel) Peer() *PeerConnection {
	return d.peer
}

// Send sends a binary message.
func (d *DataChannel) Send(data []byte) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	return checkResult("rtcSendMessage", d.lib().SendMessage(d.h, data, true))
}

// SendText sends a text message.
func (d *DataChannel) SendText(s string) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	return checkResult("rtcSendMessage", d.lib().SendMessage(d.h, []byte(s), false))
}

// IsOpen reports whether the channel is open for sending.
func (d *DataChannel) IsOpen() bool {
	return d.lc.isOpen() && d.lib().IsOpen(d.h)
}

// IsClosed reports whether the channel is closed.
func (d *DataChannel) IsClosed() bool {
	return !d.lc.isOpen() || d.lib().IsClosed(d.h)
}

// MaxMessageSize returns the largest message the channel can send.
func (d *DataChannel) MaxMessageSize() (int, error) {
	return d.size("rtcGetMaxMessageSize", d.lib().MaxMessageSize)
}

// BufferedAmount returns the number of bytes queued for sending.
func (d *DataChannel) BufferedAmount() (int, error) {
	return d.size("rtcGetBufferedAmount", d.lib().BufferedAmount)
}

// AvailableAmount returns the number of bytes waiting in the receive queue.
// Only meaningful while OnMessage has no listeners.
func (d *DataChannel) AvailableAmount() (int, error) {
	return d.size("rtcGetAvailableAmount", d.lib().AvailableAmount)
}

func (d *DataChannel) size(op string, get func(int32) int32) (int, error) {
	if err := d.lc.check(); err != nil {
		return 0, err
	}
	n, err := wrapError(op, get(d.h))
	return int(n), err
}

// SetBufferedAmountLowThreshold sets the level below which OnBufferedAmountLow
// fires.
func (d *DataChannel) SetBufferedAmountLowThreshold(amount int) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	if amount < 0 {
		return fmt.Errorf("%w: negative threshold %d", ErrInvalid, amount)
	}
	return checkResult("rtcSetBufferedAmountLowThreshold", d.lib().SetBufferedAmountLowThreshold(d.h, int32(amount)))
}

// Receive pulls one queued message into buf. It only yields messages while
// OnMessage has no listeners. If buf is too small the message stays queued
// and n is the size required, with an error matching ErrTooSmall. When no
// message is waiting the error matches ErrNotAvailable.
func (d *DataChannel) Receive(buf []byte) (n int, err error) {
	if err := d.lc.check(); err != nil {
		return 0, err
	}
	size, code := d.lib().ReceiveMessage(d.h, buf)
	if err := checkResult("rtcReceiveMessage", code); err != nil {
		if errors.Is(err, ErrTooSmall) {
			return int(size), err
		}
		return 0, err
	}
	return int(size), nil
}

// Stream returns the SCTP stream ID.
func (d *DataChannel) Stream() (uint16, error) {
	if err := d.lc.check(); err != nil {
		return 0, err
	}
	n, err := wrapError("rtcGetDataChannelStream", d.lib().DataChannelStream(d.h))
	return uint16(n), err
}

// Label returns the channel label.
func (d *DataChannel) Label() (string, error) {
	return d.text("rtcGetDataChannelLabel", d.lib().DataChannelLabel)
}

// Protocol returns the channel sub-protocol.
func (d *DataChannel) Protocol() (string, error) {
	return d.text("rtcGetDataChannelProtocol", d.lib().DataChannelProtocol)
}

func (d *DataChannel) text(op string, get func(int32) (string, int32)) (string, error) {
	if err := d.lc.check(); err != nil {
		return "", err
	}
	s, code := get(d.h)
	if err := checkResult(op, code); err != nil {
		return "", err
	}
	return s, nil
}

// Reliability returns the delivery guarantees of the channel.
func (d *DataChannel) Reliability() (Reliability, error) {
	if err := d.lc.check(); err != nil {
		return Reliability{}, err
	}
	r, code := d.lib().DataChannelReliability(d.h)
	if err := checkResult("rtcGetDataChannelReliability", code); err != nil {
		return Reliability{}, err
	}
	return reliabilityFromNative(r), nil
}

// Close closes the channel and releases the native handle. It is idempotent
// and safe to call from the channel's own listeners.
func (d *DataChannel) Close() error {
	if !d.lc.beginClose() {
		return nil
	}
	defer d.lc.finishClose()

	result := teardown(d.log, d.containers(),
		func() {
			d.peer.e.channels.Remove(d.h)
			d.peer.dropChannel(d.h)
		},
		nativeStep{"rtcClose", func() int32 { return d.lib().Close(d.h) }},
		nativeStep{"rtcDeleteDataChannel", func() int32 { return d.lib().DeleteDataChannel(d.h) }},
	)
	d.log.Debug("data channel closed")
	return result.ErrorOrNil()
}
