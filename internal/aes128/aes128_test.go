package aes128_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
)

func mustBlock(t testing.TB, s string) [aes128.BlockSize]byte {
	t.Helper()
	var raw, err = hex.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, raw, aes128.BlockSize)
	var b [aes128.BlockSize]byte
	copy(b[:], raw)
	return b
}

// FIPS-197 Appendix B worked example.
func TestEncryptFIPS197AppendixB(t *testing.T) {
	var key = mustBlock(t, "2b7e151628aed2a6abf7158809cf4f3c")
	var plaintext = mustBlock(t, "3243f6a8885a308d313198a2e0370734")
	var wantCipher = mustBlock(t, "3925841d02dc09fbdc118597196a0b32")

	var ks = aes128.ExpandKey(key)
	require.Equal(t, wantCipher, ks.Encrypt(plaintext))
}

// FIPS-197 Appendix C.1 single-block AES-128 test vector.
func TestEncryptFIPS197AppendixC(t *testing.T) {
	var key = mustBlock(t, "000102030405060708090a0b0c0d0e0f")
	var pt = mustBlock(t, "00112233445566778899aabbccddeeff")
	var wantCipher = mustBlock(t, "69c4e0d86a7b0430d8cdb78070b4c55a")

	var ks = aes128.ExpandKey(key)
	require.Equal(t, wantCipher, ks.Encrypt(pt))
}

func TestDecryptIsInverseOfEncrypt(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var keyBytes = rapid.SliceOfN(rapid.Byte(), aes128.BlockSize, aes128.BlockSize).Draw(t, "key")
		var blockBytes = rapid.SliceOfN(rapid.Byte(), aes128.BlockSize, aes128.BlockSize).Draw(t, "block")

		var key, block [aes128.BlockSize]byte
		copy(key[:], keyBytes)
		copy(block[:], blockBytes)

		var ks = aes128.ExpandKey(key)
		var cipher = ks.Encrypt(block)
		require.Equal(t, block, ks.Decrypt(cipher))
	})
}
