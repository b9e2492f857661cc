package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/transport"
)

func TestSupportedBauds(t *testing.T) {
	assert.Contains(t, transport.SupportedBauds, 9600)
	assert.Contains(t, transport.SupportedBauds, 115200)
	assert.NotContains(t, transport.SupportedBauds, 31250)
}

func TestPTYPairRoundTripsBytesAndExposesHostName(t *testing.T) {
	var host, device, err = transport.NewPTYPair()
	require.NoError(t, err)
	defer func() { _ = host.Close() }()
	defer func() { _ = device.Close() }()

	named, ok := host.(interface{ Name() string })
	require.True(t, ok, "host end must expose its device path")
	assert.NotEmpty(t, named.Name())

	var want = []byte("sync")
	var n, writeErr = device.Write(want)
	require.NoError(t, writeErr)
	require.Equal(t, len(want), n)

	var buf = make([]byte, len(want))
	n, readErr := host.Read(buf)
	require.NoError(t, readErr)
	assert.Equal(t, want, buf[:n])
}
