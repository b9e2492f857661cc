// Package image locates and validates the firmware-info header and
// MAC signature embedded in a flashed application image.
package image

import (
	"encoding/binary"
	"fmt"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
)

// HeaderSentinel is the fixed marker every valid firmware-info header
// must carry.
const HeaderSentinel uint32 = 0xDEADC0DE

// HeaderSize and SignatureSize are both exactly one AES block, and the
// linker must place them back to back, 16-byte aligned, immediately
// after the vector table (spec §3, §6).
const HeaderSize = aes128.BlockSize
const SignatureSize = aes128.BlockSize

// Header is the 16-byte firmware-info header, little-endian on the
// wire like the rest of the target's fields.
type Header struct {
	Sentinel uint32
	DeviceID uint32
	Version  uint32
	Length   uint32 // total bytes from Header through the end of AppData, i.e. excluding the vector table.
}

// Encode serializes the header to its 16-byte on-flash form.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], h.Sentinel)
	binary.LittleEndian.PutUint32(b[4:8], h.DeviceID)
	binary.LittleEndian.PutUint32(b[8:12], h.Version)
	binary.LittleEndian.PutUint32(b[12:16], h.Length)
	return b
}

// DecodeHeader parses a 16-byte on-flash header.
func DecodeHeader(b [HeaderSize]byte) Header {
	return Header{
		Sentinel: binary.LittleEndian.Uint32(b[0:4]),
		DeviceID: binary.LittleEndian.Uint32(b[4:8]),
		Version:  binary.LittleEndian.Uint32(b[8:12]),
		Length:   binary.LittleEndian.Uint32(b[12:16]),
	}
}

// Image is a parsed firmware image as it sits in the application
// region: a vector table (opaque to this package — its size is a
// build-time, chip-specific constant), the firmware-info header, the
// signature block, and the remaining application bytes.
type Image struct {
	VectorTable []byte
	Header      Header
	Signature   [SignatureSize]byte
	AppData     []byte
}

// Parse splits a flashed region (starting at the application base
// address) into its vector table, header, signature, and application
// bytes, given the chip-specific vector table size. It returns an
// error if the region is too short to hold a complete header and
// signature block after the vector table — a structural check,
// distinct from Verify's semantic sentinel/device-id/MAC checks.
func Parse(region []byte, vectorTableSize int) (Image, error) {
	if len(region) < vectorTableSize+HeaderSize+SignatureSize {
		return Image{}, fmt.Errorf("image: region of %d bytes too short for a %d-byte vector table plus header and signature", len(region), vectorTableSize)
	}

	var headerStart = vectorTableSize
	var sigStart = headerStart + HeaderSize
	var appStart = sigStart + SignatureSize

	var headerBytes [HeaderSize]byte
	copy(headerBytes[:], region[headerStart:sigStart])
	var header = DecodeHeader(headerBytes)

	var sig [SignatureSize]byte
	copy(sig[:], region[sigStart:appStart])

	// header.Length counts header+signature+app, so the application
	// payload runs for header.Length-32 bytes after the signature —
	// but never past what the caller actually gave us.
	var appLen = 0
	if header.Length > uint32(HeaderSize+SignatureSize) {
		appLen = int(header.Length) - HeaderSize - SignatureSize
	}
	if appStart+appLen > len(region) {
		appLen = len(region) - appStart
	}

	return Image{
		VectorTable: append([]byte(nil), region[:headerStart]...),
		Header:      header,
		Signature:   sig,
		AppData:     append([]byte(nil), region[appStart:appStart+appLen]...),
	}, nil
}

// Bytes reassembles the full on-flash image: vector table, encoded
// header, signature, application data, in that order.
func (img Image) Bytes() []byte {
	var out = make([]byte, 0, len(img.VectorTable)+HeaderSize+SignatureSize+len(img.AppData))
	out = append(out, img.VectorTable...)
	var h = img.Header.Encode()
	out = append(out, h[:]...)
	out = append(out, img.Signature[:]...)
	out = append(out, img.AppData...)
	return out
}

// ComputeMAC computes the CBC-MAC over the header followed by
// AppData, skipping the signature block exactly as the signature
// itself does not participate in its own computation.
func (img Image) ComputeMAC(ks *aes128.KeySchedule) [SignatureSize]byte {
	return aes128.CBCMAC(ks, img.Header.Encode(), img.AppData)
}

// Verify implements the verifier contract of spec §4.4: it returns
// true iff the header sentinel and device id match, AND the computed
// MAC equals the signature block. It never mutates anything — in
// particular, it never touches flash.
func (img Image) Verify(ks *aes128.KeySchedule, expectedDeviceID uint32) bool {
	if img.Header.Sentinel != HeaderSentinel {
		return false
	}
	if img.Header.DeviceID != expectedDeviceID {
		return false
	}
	return img.ComputeMAC(ks) == img.Signature
}
