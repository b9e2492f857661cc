package crc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/crc"
)

// referenceCRC8 is a deliberately different formulation (256-entry
// byte table lookup instead of bit-at-a-time shifting) used to cross-check CRC8
// agrees with itself under an independent implementation strategy.
func referenceCRC8(data []byte) uint8 {
	var table [256]uint8
	for i := range table {
		var c = uint8(i)
		for j := 0; j < 8; j++ {
			if c&0x80 != 0 {
				c = (c << 1) ^ 0x07
			} else {
				c <<= 1
			}
		}
		table[i] = c
	}

	var crcVal uint8
	for _, b := range data {
		crcVal = table[crcVal^b]
	}
	return crcVal
}

func TestCRC8KnownVectors(t *testing.T) {
	assert.Equal(t, uint8(0), crc.CRC8(nil))
	assert.Equal(t, uint8(0), crc.CRC8([]byte{}))
}

func TestCRC8AgreesWithTableDrivenReference(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOfN(rapid.Byte(), 0, 1024).Draw(t, "data")
		assert.Equal(t, referenceCRC8(data), crc.CRC8(data))
	})
}

func TestCRC8ChangesOnSingleByteFlip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "data")
		var idx = rapid.IntRange(0, len(data)-1).Draw(t, "idx")
		var flip = rapid.IntRange(1, 255).Draw(t, "flip")

		var original = crc.CRC8(data)

		var mutated = append([]byte(nil), data...)
		mutated[idx] ^= byte(flip)

		assert.NotEqual(t, original, crc.CRC8(mutated))
	})
}

func TestCRC32KnownVector(t *testing.T) {
	// "123456789" is the standard CRC-32/ISO-HDLC check string.
	assert.Equal(t, uint32(0xCBF43926), crc.CRC32([]byte("123456789")))
}
