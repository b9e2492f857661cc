// Package flash implements the bootloader's flash-programming
// subsystem: erase the application region (sector-wise) and
// byte-program into it, matching the reference firmware's
// bl-flash.c's unlock/act/lock shape.
package flash

import (
	"fmt"
	"time"
)

// Programmer erases and programs the application region. address
// arguments are offsets into the application region, not absolute
// memory addresses — callers add ApplicationBase themselves when they
// need one (see bootloader.Machine), which keeps this package free of
// any particular chip's memory map.
type Programmer interface {
	// Erase unlocks, erases every sector covering the application
	// region, and locks. It may block for seconds; there is no retry,
	// and failure is fatal (spec §4.5, §7): the caller finds out only
	// via a later image-integrity failure.
	Erase() error
	// Program unlocks, writes bytes starting at address, and locks.
	// address must fall within the application region and the write
	// must not extend past it. The caller is responsible for never
	// programming a cell that has not been erased since its last
	// program, mirroring the reference implementation, which performs
	// no such check either.
	Program(address uint32, data []byte) error
}

// Reader is an optional capability a Programmer may implement to
// support post-write image verification (spec §4.4's verifier reads
// the flashed region back to recompute the MAC). Real flash supports
// this trivially (it's memory-mapped); it is kept separate from
// Programmer because the reference's own flash driver has no such
// call — verification reads flash directly, bypassing the driver.
type Reader interface {
	ReadBack(address uint32, length int) ([]byte, error)
}

// SimFlash is an in-process stand-in for the chip's application
// region: a byte-addressable byte slice, sector-erased to 0xFF (the
// conventional erased-NOR-flash value) the way real flash is, used by
// cmd/bootloader and by tests in place of real MMIO.
type SimFlash struct {
	mem        []byte
	sectorSize uint32

	// EraseDelayPerSector simulates the "may take several seconds"
	// cost of a real sector erase. Zero (the test default) makes
	// Erase instantaneous.
	EraseDelayPerSector time.Duration
}

// NewSimFlash allocates a simulated application region of size bytes,
// divided into sectors of sectorSize bytes (sectorSize must evenly
// divide size), initially erased.
func NewSimFlash(size, sectorSize uint32) *SimFlash {
	if sectorSize == 0 || size%sectorSize != 0 {
		panic("flash: size must be a multiple of sectorSize")
	}
	var f = &SimFlash{
		mem:        make([]byte, size),
		sectorSize: sectorSize,
	}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	return f
}

// Erase resets every byte of the simulated application region to
// 0xFF, sector by sector, sleeping EraseDelayPerSector between
// sectors to model a blocking hardware erase.
func (f *SimFlash) Erase() error {
	var numSectors = uint32(len(f.mem)) / f.sectorSize
	for sector := uint32(0); sector < numSectors; sector++ {
		var start = sector * f.sectorSize
		var end = start + f.sectorSize
		for i := start; i < end; i++ {
			f.mem[i] = 0xFF
		}
		if f.EraseDelayPerSector > 0 {
			time.Sleep(f.EraseDelayPerSector)
		}
	}
	return nil
}

// Program writes data starting at address, which must lie within the
// simulated region and not overflow it.
func (f *SimFlash) Program(address uint32, data []byte) error {
	if address > uint32(len(f.mem)) {
		return fmt.Errorf("flash: address %#x out of range", address)
	}
	if uint64(address)+uint64(len(data)) > uint64(len(f.mem)) {
		return fmt.Errorf("flash: write of %d bytes at %#x overflows application region", len(data), address)
	}
	copy(f.mem[address:], data)
	return nil
}

// Bytes returns the simulated region's current contents. Callers must
// not retain the slice past further Program/Erase calls.
func (f *SimFlash) Bytes() []byte {
	return f.mem
}

// ReadBack returns a copy of length bytes starting at address, as
// flash.Reader requires.
func (f *SimFlash) ReadBack(address uint32, length int) ([]byte, error) {
	if address > uint32(len(f.mem)) {
		return nil, fmt.Errorf("flash: read address %#x out of range", address)
	}
	if uint64(address)+uint64(length) > uint64(len(f.mem)) {
		return nil, fmt.Errorf("flash: read of %d bytes at %#x overflows application region", length, address)
	}
	var out = make([]byte, length)
	copy(out, f.mem[address:uint32(length)+address])
	return out, nil
}
