package flash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/flash"
)

func TestNewSimFlashIsErased(t *testing.T) {
	var f = flash.NewSimFlash(256, 64)
	for i, b := range f.Bytes() {
		require.Equal(t, byte(0xFF), b, "byte %d not erased", i)
	}
}

func TestNewSimFlashRejectsMisalignedSectorSize(t *testing.T) {
	assert.Panics(t, func() { flash.NewSimFlash(100, 64) })
	assert.Panics(t, func() { flash.NewSimFlash(128, 0) })
}

func TestProgramWritesBytes(t *testing.T) {
	var f = flash.NewSimFlash(256, 64)
	require.NoError(t, f.Program(64, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, f.Bytes()[64:68])
}

func TestProgramRejectsOverflow(t *testing.T) {
	var f = flash.NewSimFlash(64, 64)
	var err = f.Program(60, []byte{1, 2, 3, 4, 5})
	assert.Error(t, err)
}

func TestProgramRejectsOutOfRangeAddress(t *testing.T) {
	var f = flash.NewSimFlash(64, 64)
	var err = f.Program(1000, []byte{1})
	assert.Error(t, err)
}

func TestEraseResetsProgrammedBytes(t *testing.T) {
	var f = flash.NewSimFlash(128, 64)
	require.NoError(t, f.Program(0, []byte{1, 2, 3}))
	require.NoError(t, f.Erase())
	for i, b := range f.Bytes() {
		require.Equal(t, byte(0xFF), b, "byte %d not erased after Erase", i)
	}
}

func TestProgramThenEraseThenProgramRoundTrip(t *testing.T) {
	var f = flash.NewSimFlash(128, 32)
	require.NoError(t, f.Program(32, []byte{0xAA, 0xBB}))
	require.NoError(t, f.Erase())
	require.NoError(t, f.Program(96, []byte{0xCC, 0xDD}))
	assert.Equal(t, []byte{0xCC, 0xDD}, f.Bytes()[96:98])
	assert.Equal(t, byte(0xFF), f.Bytes()[32])
}
