package image_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/image"
)

func buildSignedImage(ks *aes128.KeySchedule, vectorTableSize int, deviceID uint32, appData []byte) image.Image {
	var header = image.Header{
		Sentinel: image.HeaderSentinel,
		DeviceID: deviceID,
		Version:  1,
		Length:   uint32(image.HeaderSize + image.SignatureSize + len(appData)),
	}
	var sig = aes128.CBCMAC(ks, header.Encode(), appData)
	return image.Image{
		VectorTable: make([]byte, vectorTableSize),
		Header:      header,
		Signature:   sig,
		AppData:     appData,
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var h = image.Header{
			Sentinel: rapid.Uint32().Draw(t, "sentinel"),
			DeviceID: rapid.Uint32().Draw(t, "deviceID"),
			Version:  rapid.Uint32().Draw(t, "version"),
			Length:   rapid.Uint32().Draw(t, "length"),
		}
		assert.Equal(t, h, image.DecodeHeader(h.Encode()))
	})
}

func TestParseRoundTripsWhatBytesProduced(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("0123456789abcdef"))
	var ks = aes128.ExpandKey(key)

	var img = buildSignedImage(ks, 192, 7, []byte("hello firmware appdata!"))
	var region = img.Bytes()

	var parsed, err = image.Parse(region, 192)
	require.NoError(t, err)
	assert.Equal(t, img.Header, parsed.Header)
	assert.Equal(t, img.Signature, parsed.Signature)
	assert.Equal(t, img.AppData, parsed.AppData)
}

func TestVerifyAcceptsCorrectlySignedImage(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("fedcba9876543210"))
	var ks = aes128.ExpandKey(key)

	var img = buildSignedImage(ks, 192, 42, []byte("application payload bytes"))
	assert.True(t, img.Verify(ks, 42))
}

func TestVerifyRejectsWrongDeviceID(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("fedcba9876543210"))
	var ks = aes128.ExpandKey(key)

	var img = buildSignedImage(ks, 192, 42, []byte("application payload bytes"))
	assert.False(t, img.Verify(ks, 43))
}

func TestVerifyRejectsBadSentinel(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("fedcba9876543210"))
	var ks = aes128.ExpandKey(key)

	var img = buildSignedImage(ks, 192, 42, []byte("application payload bytes"))
	img.Header.Sentinel = 0x12345678
	assert.False(t, img.Verify(ks, 42))
}

func TestVerifyRejectsTamperedAppData(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("fedcba9876543210"))
	var ks = aes128.ExpandKey(key)

	var img = buildSignedImage(ks, 192, 42, []byte("application payload bytes"))
	img.AppData[0] ^= 0xFF
	assert.False(t, img.Verify(ks, 42))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("fedcba9876543210"))
	var ks = aes128.ExpandKey(key)

	var otherKey [16]byte
	copy(otherKey[:], []byte("0000000000000000"))
	var otherKS = aes128.ExpandKey(otherKey)

	var img = buildSignedImage(ks, 192, 42, []byte("application payload bytes"))
	assert.False(t, img.Verify(otherKS, 42))
}

func TestParseRejectsRegionTooShortForHeaderAndSignature(t *testing.T) {
	var region = make([]byte, 10)
	var _, err = image.Parse(region, 16)
	assert.Error(t, err)
}
