package ringbuf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/ringbuf"
)

func TestByteRingRejectsNonPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() { ringbuf.NewByteRing(0) })
	assert.Panics(t, func() { ringbuf.NewByteRing(3) })
	assert.Panics(t, func() { ringbuf.NewByteRing(100) })
}

func TestByteRingEmptyReadFails(t *testing.T) {
	var r = ringbuf.NewByteRing(8)
	require.True(t, r.Empty())

	var _, ok = r.Read()
	assert.False(t, ok)
}

func TestByteRingFullAfterCapacityMinusOneWrites(t *testing.T) {
	const capacity = 8
	var r = ringbuf.NewByteRing(capacity)

	for i := 0; i < capacity-1; i++ {
		require.True(t, r.Write(byte(i)), "write %d should succeed", i)
	}
	assert.False(t, r.Write(0xFF), "ring should be full after capacity-1 writes")
}

func TestByteRingFIFOOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const capacity = 16
		var r = ringbuf.NewByteRing(capacity)

		var data = rapid.SliceOfN(rapid.Byte(), 0, capacity-1).Draw(t, "data")
		for _, b := range data {
			require.True(t, r.Write(b))
		}

		for _, want := range data {
			var got, ok = r.Read()
			require.True(t, ok)
			assert.Equal(t, want, got)
		}

		assert.True(t, r.Empty())
	})
}

func TestByteRingDropsNewestWhenFull(t *testing.T) {
	const capacity = 4
	var r = ringbuf.NewByteRing(capacity)

	for i := 0; i < capacity-1; i++ {
		require.True(t, r.Write(byte(i)))
	}
	assert.False(t, r.Write(0xAA))

	// Draining shows the dropped byte (0xAA) never made it in.
	for i := 0; i < capacity-1; i++ {
		var got, ok = r.Read()
		require.True(t, ok)
		assert.Equal(t, byte(i), got)
	}
}

func TestPacketRingFIFOAndCapacity(t *testing.T) {
	const capacity = 8
	var r = ringbuf.NewPacketRing[int](capacity)

	assert.True(t, r.Empty())
	for i := 0; i < capacity-1; i++ {
		require.True(t, r.Write(i))
	}
	assert.True(t, r.Full())
	assert.False(t, r.Write(999))

	for i := 0; i < capacity-1; i++ {
		var got, ok = r.Read()
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
	assert.True(t, r.Empty())
}
