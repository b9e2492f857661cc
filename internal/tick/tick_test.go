package tick_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/tick"
)

func TestSimpleTimerOneShotLatches(t *testing.T) {
	var src = tick.NewSource()
	var timer tick.SimpleTimer
	timer.Setup(src, 100, false)

	assert.False(t, timer.HasElapsed())

	src.Advance(100)
	assert.True(t, timer.HasElapsed())

	// Further time passing doesn't un-latch it.
	src.Advance(1000)
	assert.True(t, timer.HasElapsed())
}

func TestSimpleTimerOneShotResetRearms(t *testing.T) {
	var src = tick.NewSource()
	var timer tick.SimpleTimer
	timer.Setup(src, 50, false)

	src.Advance(50)
	require.True(t, timer.HasElapsed())

	timer.Reset()
	assert.False(t, timer.HasElapsed())

	src.Advance(50)
	assert.True(t, timer.HasElapsed())
}

func TestSimpleTimerAutoResetTicksAtWaitTimeSpacing(t *testing.T) {
	var src = tick.NewSource()
	var timer tick.SimpleTimer
	timer.Setup(src, 10, true)

	src.Advance(10)
	assert.True(t, timer.HasElapsed())
	assert.False(t, timer.HasElapsed(), "should not re-elapse until another 10ms pass")

	src.Advance(9)
	assert.False(t, timer.HasElapsed())

	src.Advance(1)
	assert.True(t, timer.HasElapsed())
}

func TestSourceAdvanceIsMonotonic(t *testing.T) {
	var src = tick.NewSource()
	var start = src.Now()
	src.Advance(5)
	assert.Equal(t, start+5, src.Now())
}
