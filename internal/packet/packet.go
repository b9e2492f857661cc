// Package packet implements the 18-byte framed, CRC-protected packet
// that is the bootloader wire protocol's unit of transfer.
package packet

import (
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/crc"
)

// DataLength is the number of payload bytes in a packet.
const DataLength = 16

// Length is the total on-wire size of a packet: length|data|crc.
const Length = 1 + DataLength + 1

// Fill is the sentinel value unused tail bytes must carry.
const Fill = 0xFF

// Kind is one of the closed set of control-packet discriminants.
// Extended kinds (DeviceIDRes, FWLengthRes) carry the discriminant in
// data[0] and parameters in the following bytes.
type Kind uint8

const (
	RETX             Kind = 0x19
	ACK              Kind = 0x15
	SyncObserved     Kind = 0x20
	FWUpdateReq      Kind = 0x31
	FWUpdateRes      Kind = 0x37
	DeviceIDReq      Kind = 0x3C
	DeviceIDRes      Kind = 0x3F
	FWLengthReq      Kind = 0x42
	FWLengthRes      Kind = 0x45
	ReadyForData     Kind = 0x48
	UpdateSuccessful Kind = 0x54
	NACK             Kind = 0x59
)

// SyncPrefix is the unframed four-byte preamble sent before the first
// framed packet of a session.
var SyncPrefix = [4]byte{0xC4, 0x55, 0x7E, 0x10}

// Packet is the fixed 18-byte frame: the semantic length minus one
// (0..15 for 1..16 bytes) packed into the low nibble of the length
// byte (reserved bits zero), 16
// data bytes (always transmitted in full; unused tail bytes must be
// Fill), and a CRC-8 over length|data.
type Packet struct {
	Length uint8
	Data   [DataLength]byte
	CRC    uint8
}

// PayloadLength returns the semantic payload length in [1, 16]
// encoded in the low nibble of Length.
func (p Packet) PayloadLength() int {
	return int(p.Length&0x0F) + 1
}

// ComputeCRC returns the CRC-8 this packet should carry, computed over
// length|data — never over the packet's own memory representation
// (see DESIGN.md for why that distinction matters).
func (p Packet) ComputeCRC() uint8 {
	var buf [1 + DataLength]byte
	buf[0] = p.Length
	copy(buf[1:], p.Data[:])
	return crc.CRC8(buf[:])
}

// CRCValid reports whether the packet's stored CRC matches the
// computed one.
func (p Packet) CRCValid() bool {
	return p.CRC == p.ComputeCRC()
}

// Encode serializes the packet to its 18-byte wire form.
func (p Packet) Encode() [Length]byte {
	var out [Length]byte
	out[0] = p.Length
	copy(out[1:1+DataLength], p.Data[:])
	out[Length-1] = p.CRC
	return out
}

// Decode parses an 18-byte wire frame into a Packet. It does not
// validate the CRC; call CRCValid for that.
func Decode(wire [Length]byte) Packet {
	var p Packet
	p.Length = wire[0]
	copy(p.Data[:], wire[1:1+DataLength])
	p.CRC = wire[Length-1]
	return p
}

// Single constructs a well-formed control packet: length=1 (semantic
// length 1, so the low nibble is 0), data[0]=byte(kind), the
// remaining data bytes Fill, and a correct CRC.
func Single(kind Kind) Packet {
	var p Packet
	p.Length = 0 // low nibble 0 => PayloadLength() == 1
	p.Data[0] = byte(kind)
	for i := 1; i < DataLength; i++ {
		p.Data[i] = Fill
	}
	p.CRC = p.ComputeCRC()
	return p
}

// IsSingle reports whether p is strictly a well-formed single-byte
// control packet carrying kind: semantic length 1, data[0]==kind, and
// every remaining data byte equal to Fill.
func IsSingle(p Packet, kind Kind) bool {
	if p.PayloadLength() != 1 {
		return false
	}
	if p.Data[0] != byte(kind) {
		return false
	}
	for i := 1; i < DataLength; i++ {
		if p.Data[i] != Fill {
			return false
		}
	}
	return true
}

// IsDeviceIDRes reports whether p is a well-formed DEVICE_ID_RES
// packet (data[0]=DeviceIDRes, data[1]=device id, rest Fill) and, if
// so, returns the carried device id.
func IsDeviceIDRes(p Packet) (deviceID uint8, ok bool) {
	if p.PayloadLength() != 2 {
		return 0, false
	}
	if p.Data[0] != byte(DeviceIDRes) {
		return 0, false
	}
	for i := 2; i < DataLength; i++ {
		if p.Data[i] != Fill {
			return 0, false
		}
	}
	return p.Data[1], true
}

// DeviceIDResPacket builds a well-formed DEVICE_ID_RES packet for the
// given device id, as the host side of the wire protocol sends it.
func DeviceIDResPacket(deviceID uint8) Packet {
	var p Packet
	p.Length = 1 // semantic length 2
	p.Data[0] = byte(DeviceIDRes)
	p.Data[1] = deviceID
	for i := 2; i < DataLength; i++ {
		p.Data[i] = Fill
	}
	p.CRC = p.ComputeCRC()
	return p
}

// IsFWLengthRes reports whether p is a well-formed FW_LENGTH_RES
// packet (data[0]=FWLengthRes, data[1..5) = length little-endian,
// rest Fill) and, if so, returns the carried length.
func IsFWLengthRes(p Packet) (length uint32, ok bool) {
	if p.PayloadLength() != 5 {
		return 0, false
	}
	if p.Data[0] != byte(FWLengthRes) {
		return 0, false
	}
	for i := 5; i < DataLength; i++ {
		if p.Data[i] != Fill {
			return 0, false
		}
	}
	length = uint32(p.Data[1]) | uint32(p.Data[2])<<8 | uint32(p.Data[3])<<16 | uint32(p.Data[4])<<24
	return length, true
}

// FWLengthResPacket builds a well-formed FW_LENGTH_RES packet carrying
// length as little-endian bytes.
func FWLengthResPacket(length uint32) Packet {
	var p Packet
	p.Length = 4 // semantic length 5
	p.Data[0] = byte(FWLengthRes)
	p.Data[1] = byte(length)
	p.Data[2] = byte(length >> 8)
	p.Data[3] = byte(length >> 16)
	p.Data[4] = byte(length >> 24)
	for i := 5; i < DataLength; i++ {
		p.Data[i] = Fill
	}
	p.CRC = p.ComputeCRC()
	return p
}

// DataPacket builds a firmware-data packet carrying 1..16 payload
// bytes, with the unused tail (if any) set to Fill.
func DataPacket(payload []byte) Packet {
	if len(payload) < 1 || len(payload) > DataLength {
		panic("packet: data packet payload must be 1..16 bytes")
	}
	var p Packet
	p.Length = uint8(len(payload) - 1)
	copy(p.Data[:], payload)
	for i := len(payload); i < DataLength; i++ {
		p.Data[i] = Fill
	}
	p.CRC = p.ComputeCRC()
	return p
}

// IsControl reports whether p's semantic length is 1, the shape every
// single-discriminant control packet shares (though not every
// length-1 packet is one of the closed Kind values).
func (p Packet) IsControl() bool {
	return p.PayloadLength() == 1
}
