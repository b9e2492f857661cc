package fwpack_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/fwpack"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/image"
)

func TestPackUnpackRoundTripVerifies(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("packtestkey12345"))

	var buf bytes.Buffer
	var appData = []byte("this is a little application image payload")
	require.NoError(t, fwpack.Pack(&buf, 7, key, appData,
		fwpack.WithVectorTableSize(16),
		fwpack.WithVersion(3),
	))

	var img, err = fwpack.Unpack(&buf, 16)
	require.NoError(t, err)

	assert.Equal(t, uint32(image.HeaderSentinel), img.Header.Sentinel)
	assert.Equal(t, uint32(7), img.Header.DeviceID)
	assert.Equal(t, uint32(3), img.Header.Version)
	assert.Equal(t, appData, img.AppData)

	var ks = aes128.ExpandKey(key)
	assert.True(t, img.Verify(ks, 7))
}

func TestPackDefaultsToNoVectorTable(t *testing.T) {
	var key [16]byte
	var buf bytes.Buffer
	require.NoError(t, fwpack.Pack(&buf, 1, key, nil))

	var img, err = fwpack.Unpack(&buf, 0)
	require.NoError(t, err)
	assert.Empty(t, img.VectorTable)
}
