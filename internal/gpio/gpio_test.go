package gpio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/gpio"
)

func TestNoopBankIsInertAndSatisfiesBank(t *testing.T) {
	var b gpio.Bank = gpio.NoopBank{}
	assert.NoError(t, b.Set("status", true))
	assert.NoError(t, b.Teardown())
}

func TestNewCdevBankFailsWithoutAChip(t *testing.T) {
	var _, err = gpio.NewCdevBank("/dev/gpiochip-does-not-exist", map[string]int{"status": 0})
	assert.Error(t, err)
}
