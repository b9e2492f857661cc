// Package fwpack builds and reads signed firmware images: the
// host-side counterpart to internal/image, playing the same
// hardware-independent role the go-cyacd bootloader package's
// io.ReadWriter design does for Cypress/Infineon programming —
// packing and reading work against any io.Writer/io.Reader, with no
// notion of a particular transport baked in.
package fwpack

import (
	"fmt"
	"io"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/image"
)

// Options configures Pack. VectorTableSize defaults to 0 (no vector
// table prepended) if left unset, for build pipelines that only ever
// round-trip the header+signature+app payload and leave the vector
// table to the linker.
type Options struct {
	VectorTableSize int
	Version         uint32
}

// Option mutates Options, following the functional-options shape the
// pack's own reference (go-cyacd's bootloader.New) uses for its
// programmer configuration.
type Option func(*Options)

// WithVectorTableSize sets the chip-specific vector table size
// prepended to the packed image.
func WithVectorTableSize(n int) Option {
	return func(o *Options) { o.VectorTableSize = n }
}

// WithVersion sets the firmware version recorded in the header.
func WithVersion(v uint32) Option {
	return func(o *Options) { o.Version = v }
}

// Pack signs appData under key for deviceID and writes the complete
// on-flash image (vector table, header, signature, application bytes)
// to w.
func Pack(w io.Writer, deviceID uint32, key [aes128.BlockSize]byte, appData []byte, opts ...Option) error {
	var cfg Options
	for _, opt := range opts {
		opt(&cfg)
	}

	var header = image.Header{
		Sentinel: image.HeaderSentinel,
		DeviceID: deviceID,
		Version:  cfg.Version,
		Length:   uint32(image.HeaderSize + image.SignatureSize + len(appData)),
	}

	var ks = aes128.ExpandKey(key)
	var sig = aes128.CBCMAC(ks, header.Encode(), appData)

	var img = image.Image{
		VectorTable: make([]byte, cfg.VectorTableSize),
		Header:      header,
		Signature:   sig,
		AppData:     appData,
	}

	if _, err := w.Write(img.Bytes()); err != nil {
		return fmt.Errorf("fwpack: writing packed image: %w", err)
	}
	return nil
}

// Unpack reads a complete on-flash image from r (of exactly the given
// vector table size) and parses it, without verifying the signature —
// callers that need a verified image should run image.Image.Verify on
// the result themselves once they know the device's key.
func Unpack(r io.Reader, vectorTableSize int) (image.Image, error) {
	var all, err = io.ReadAll(r)
	if err != nil {
		return image.Image{}, fmt.Errorf("fwpack: reading packed image: %w", err)
	}
	return image.Parse(all, vectorTableSize)
}
