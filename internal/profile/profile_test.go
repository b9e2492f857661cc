package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/profile"
)

func TestLoadParsesProfile(t *testing.T) {
	var dir = t.TempDir()
	var path = filepath.Join(dir, "widget.yaml")
	var contents = "device_id: 7\n" +
		"aes_key: \"000102030405060708090a0b0c0d0e0f\"\n" +
		"vector_table_size: 256\n" +
		"max_fw_length: 65536\n" +
		"application_base: 4096\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	var p, err = profile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), p.DeviceID)
	assert.Equal(t, 256, p.VectorTableSize)
	assert.Equal(t, uint32(65536), p.MaxFwLength)
	assert.Equal(t, uint32(4096), p.ApplicationBase)

	var key, keyErr = p.Key()
	require.NoError(t, keyErr)
	assert.Equal(t, byte(0x0f), key[15])
}

func TestKeyRejectsWrongLength(t *testing.T) {
	var p = profile.Profile{AESKeyHex: "00112233445566778899aabbccddeeff00"}
	var _, err = p.Key()
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	var _, err = profile.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
