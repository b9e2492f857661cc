// Package link implements the packet link layer: an inbound framing
// parser with CRC validation and RETX/ACK handling, and a
// synchronous, retransmission-capable outbound sender. It is the Go
// analog of the reference firmware's comms.c, minus the aliasing bug
// noted in DESIGN.md (the reference computes its CRC over the packet
// *pointer*'s bytes; this implementation always computes it over the
// packet's actual length|data contents).
package link

import (
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/packet"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/ringbuf"
)

// ByteSource is anything a Link can pull inbound bytes from. It is
// satisfied by *ringbuf.ByteRing; the indirection exists so tests can
// drive the parser from a plain slice without going through a ring.
type ByteSource interface {
	Read() (byte, bool)
}

// ByteSink is anything a Link can push outbound bytes to,
// synchronously, one byte at a time — matching the reference
// firmware's blocking, per-byte UART transmit.
type ByteSink interface {
	WriteByte(b byte) error
}

// parserState is the inbound framing sub-state-machine's state.
type parserState int

const (
	stateLength parserState = iota
	stateData
	stateCRC
)

// Link is the packet link layer. The byte ring is its only
// cross-context boundary (see spec §4.6); everything else here — the
// parser, the packet ring, the outbound sender, and lastSent —
// is touched only from the main loop, so Link needs no internal
// locking.
type Link struct {
	in  ByteSource
	out ByteSink

	packets *ringbuf.PacketRing[packet.Packet]

	state        parserState
	tempLength   uint8
	tempData     [packet.DataLength]byte
	dataCount    int
	lastSent     packet.Packet
	haveLastSent bool

	// OnPacketRingFull is invoked if a fully-validated, ACK-worthy
	// packet arrives while the packet ring is full. Spec treats this
	// as a fatal implementation invariant violation: the default is
	// nil, in which case Pump panics, matching "halt in debug."
	OnPacketRingFull func()
}

// New builds a Link backed by a byte source, an outbound byte sink,
// and the packet ring the main loop will drain validated packets
// from.
func New(in ByteSource, out ByteSink, packets *ringbuf.PacketRing[packet.Packet]) *Link {
	return &Link{in: in, out: out, packets: packets, state: stateLength}
}

// Send transmits a packet synchronously, byte by byte, and — unless
// it's an ACK or RETX, neither of which is ever itself retransmitted —
// records it as the packet to resend on the next RETX.
func (l *Link) Send(p packet.Packet) error {
	var wire = p.Encode()
	for _, b := range wire {
		if err := l.out.WriteByte(b); err != nil {
			return err
		}
	}

	if !packet.IsSingle(p, packet.ACK) && !packet.IsSingle(p, packet.RETX) {
		l.lastSent = p
		l.haveLastSent = true
	}
	return nil
}

// resend retransmits the last packet sent, if any. There is always
// one by the time RETX can legitimately arrive (the host never sends
// RETX before the device has sent something), so a missing
// lastSent is silently a no-op rather than an error.
func (l *Link) resend() error {
	if !l.haveLastSent {
		return nil
	}
	var wire = l.lastSent.Encode()
	for _, b := range wire {
		if err := l.out.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// Pump drains every byte currently available from the byte source,
// advancing the inbound framing parser and reacting to each
// completed frame: CRC mismatch emits RETX, a valid RETX triggers
// retransmission, a valid ACK is discarded, and any other valid
// packet is appended to the packet ring and ACK'd.
func (l *Link) Pump() error {
	for {
		var b, ok = l.in.Read()
		if !ok {
			return nil
		}
		if err := l.feed(b); err != nil {
			return err
		}
	}
}

func (l *Link) feed(b byte) error {
	switch l.state {
	case stateLength:
		l.tempLength = b
		l.dataCount = 0
		l.state = stateData

	case stateData:
		l.tempData[l.dataCount] = b
		l.dataCount++
		if l.dataCount >= packet.DataLength {
			l.state = stateCRC
		}

	case stateCRC:
		var p = packet.Packet{Length: l.tempLength, Data: l.tempData, CRC: b}
		l.state = stateLength

		if !p.CRCValid() {
			return l.Send(packet.Single(packet.RETX))
		}

		if packet.IsSingle(p, packet.RETX) {
			return l.resend()
		}

		if packet.IsSingle(p, packet.ACK) {
			return nil
		}

		if l.packets.Full() {
			if l.OnPacketRingFull != nil {
				l.OnPacketRingFull()
				return nil
			}
			panic("link: packet ring overflow")
		}
		l.packets.Write(p)
		return l.Send(packet.Single(packet.ACK))
	}
	return nil
}
