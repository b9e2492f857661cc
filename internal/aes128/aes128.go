// Package aes128 implements the AES-128 block cipher by the letter —
// key schedule, SubBytes/ShiftRows/MixColumns/AddRoundKey — rather
// than wrapping a library cipher. The bootloader's image-integrity
// engine needs exactly this primitive (see CBCMAC in cbcmac.go); it is
// a spec-mandated component of the bootloader core, not an ambient
// concern, so it is implemented directly rather than reused from
// crypto/aes. No constant-time or hardware-accelerated variant is
// required or attempted.
package aes128

// BlockSize is the AES block size in bytes, and also the size of the
// firmware-info header and of the signature block.
const BlockSize = 16

const numRounds = 10
const numRoundKeys = numRounds + 1

// sbox and invSBox are the standard AES S-box and its inverse.
var sbox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

var invSBox [256]byte

var rcon = [11]byte{0x00, 0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0x1b, 0x36}

func init() {
	for i, v := range sbox {
		invSBox[v] = byte(i)
	}
}

// gfMul multiplies two bytes in GF(2^8) modulo the AES reduction
// polynomial x^8 + x^4 + x^3 + x + 1 (0x11B, represented here as the
// low byte 0x1B since the top bit is implicit in the overflow check).
func gfMul(a, b byte) byte {
	var result byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			result ^= a
		}
		var carry = a & 0x80
		a <<= 1
		if carry != 0 {
			a ^= 0x1B
		}
		b >>= 1
	}
	return result
}

// KeySchedule holds the 11 round keys derived from a 16-byte AES-128
// key, each a 4x4 byte block in column-major layout flattened to 16
// bytes.
type KeySchedule struct {
	roundKeys [numRoundKeys][BlockSize]byte
}

// ExpandKey runs the AES-128 key schedule over a 16-byte key.
func ExpandKey(key [BlockSize]byte) *KeySchedule {
	var ks KeySchedule

	// w holds the key schedule as 4-byte words; the first 4 words are
	// the key itself.
	var w [4 * numRoundKeys][4]byte
	for i := 0; i < 4; i++ {
		copy(w[i][:], key[i*4:i*4+4])
	}

	for i := 4; i < 4*numRoundKeys; i++ {
		var temp = w[i-1]
		if i%4 == 0 {
			// RotWord
			temp = [4]byte{temp[1], temp[2], temp[3], temp[0]}
			// SubWord
			for j := range temp {
				temp[j] = sbox[temp[j]]
			}
			temp[0] ^= rcon[i/4]
		}
		for j := range temp {
			w[i][j] = w[i-4][j] ^ temp[j]
		}
	}

	for r := 0; r < numRoundKeys; r++ {
		for c := 0; c < 4; c++ {
			copy(ks.roundKeys[r][c*4:c*4+4], w[r*4+c][:])
		}
	}

	return &ks
}

func addRoundKey(state *[BlockSize]byte, roundKey [BlockSize]byte) {
	for i := range state {
		state[i] ^= roundKey[i]
	}
}

func subBytes(state *[BlockSize]byte, box [256]byte) {
	for i := range state {
		state[i] = box[state[i]]
	}
}

// shiftRows operates on the column-major 4x4 state: byte index i is
// row i%4, column i/4. Row r is cyclically shifted left by r bytes.
func shiftRows(state *[BlockSize]byte) {
	var rows [4][4]byte
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			rows[r][c] = state[c*4+r]
		}
	}
	for r := 1; r < 4; r++ {
		var shifted [4]byte
		for c := 0; c < 4; c++ {
			shifted[c] = rows[r][(c+r)%4]
		}
		rows[r] = shifted
	}
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			state[c*4+r] = rows[r][c]
		}
	}
}

func invShiftRows(state *[BlockSize]byte) {
	var rows [4][4]byte
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			rows[r][c] = state[c*4+r]
		}
	}
	for r := 1; r < 4; r++ {
		var shifted [4]byte
		for c := 0; c < 4; c++ {
			shifted[(c+r)%4] = rows[r][c]
		}
		rows[r] = shifted
	}
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			state[c*4+r] = rows[r][c]
		}
	}
}

func mixColumns(state *[BlockSize]byte) {
	for c := 0; c < 4; c++ {
		var a0, a1, a2, a3 = state[c*4], state[c*4+1], state[c*4+2], state[c*4+3]
		state[c*4+0] = gfMul(a0, 2) ^ gfMul(a1, 3) ^ a2 ^ a3
		state[c*4+1] = a0 ^ gfMul(a1, 2) ^ gfMul(a2, 3) ^ a3
		state[c*4+2] = a0 ^ a1 ^ gfMul(a2, 2) ^ gfMul(a3, 3)
		state[c*4+3] = gfMul(a0, 3) ^ a1 ^ a2 ^ gfMul(a3, 2)
	}
}

func invMixColumns(state *[BlockSize]byte) {
	for c := 0; c < 4; c++ {
		var a0, a1, a2, a3 = state[c*4], state[c*4+1], state[c*4+2], state[c*4+3]
		state[c*4+0] = gfMul(a0, 14) ^ gfMul(a1, 11) ^ gfMul(a2, 13) ^ gfMul(a3, 9)
		state[c*4+1] = gfMul(a0, 9) ^ gfMul(a1, 14) ^ gfMul(a2, 11) ^ gfMul(a3, 13)
		state[c*4+2] = gfMul(a0, 13) ^ gfMul(a1, 9) ^ gfMul(a2, 14) ^ gfMul(a3, 11)
		state[c*4+3] = gfMul(a0, 11) ^ gfMul(a1, 13) ^ gfMul(a2, 9) ^ gfMul(a3, 14)
	}
}

// Encrypt applies initial AddRoundKey, nine rounds of
// {SubBytes, ShiftRows, MixColumns, AddRoundKey}, then a final round
// without MixColumns.
func (ks *KeySchedule) Encrypt(block [BlockSize]byte) [BlockSize]byte {
	var state = block
	addRoundKey(&state, ks.roundKeys[0])

	for round := 1; round < numRounds; round++ {
		subBytes(&state, sbox)
		shiftRows(&state)
		mixColumns(&state)
		addRoundKey(&state, ks.roundKeys[round])
	}

	subBytes(&state, sbox)
	shiftRows(&state)
	addRoundKey(&state, ks.roundKeys[numRounds])

	return state
}

// Decrypt is the inverse of Encrypt.
func (ks *KeySchedule) Decrypt(block [BlockSize]byte) [BlockSize]byte {
	var state = block
	addRoundKey(&state, ks.roundKeys[numRounds])

	for round := numRounds - 1; round >= 1; round-- {
		invShiftRows(&state)
		subBytes(&state, invSBox)
		addRoundKey(&state, ks.roundKeys[round])
		invMixColumns(&state)
	}

	invShiftRows(&state)
	subBytes(&state, invSBox)
	addRoundKey(&state, ks.roundKeys[0])

	return state
}
