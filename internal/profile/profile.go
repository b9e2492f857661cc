// Package profile loads the per-device YAML settings the host-side
// updater needs to pack and verify a firmware image (device id, MAC
// key, vector table size, region capacity), the same role
// tocalls.yaml plays for deviceid.go's destination-address lookup:
// data that used to be a compiled-in table, now an external file the
// tool reads with gopkg.in/yaml.v3 instead.
package profile

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
)

// Profile is one device's update parameters.
type Profile struct {
	DeviceID        uint32 `yaml:"device_id"`
	AESKeyHex       string `yaml:"aes_key"`
	VectorTableSize int    `yaml:"vector_table_size"`
	MaxFwLength     uint32 `yaml:"max_fw_length"`
	ApplicationBase uint32 `yaml:"application_base"`
}

// Key decodes AESKeyHex into the fixed-size key aes128.ExpandKey
// expects.
func (p Profile) Key() ([aes128.BlockSize]byte, error) {
	var key [aes128.BlockSize]byte
	var raw, err = hex.DecodeString(p.AESKeyHex)
	if err != nil {
		return key, fmt.Errorf("profile: decoding aes_key: %w", err)
	}
	if len(raw) != aes128.BlockSize {
		return key, fmt.Errorf("profile: aes_key must be %d bytes (got %d)", aes128.BlockSize, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Load reads and parses a device profile from path.
func Load(path string) (Profile, error) {
	var data, err = os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: reading %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile: parsing %s: %w", path, err)
	}
	return p, nil
}
