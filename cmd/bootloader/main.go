// Command bootloader runs the update handshake device-side: it owns
// the serial peripheral, the GPIO bank, the simulated flash region,
// and the millisecond tick source, and drives a bootloader.Machine
// through Sync -> ... -> Done exactly once before exiting, the way
// the reference firmware's bootloader_main runs once per power-on
// rather than looping indefinitely.
//
// Real target hardware is an ARM Cortex-M4 this repository does not
// cross-compile for; this binary simulates the device side on the
// host, against either a real serial port or one end of a PTY pair,
// so the handshake and flash.SimFlash-backed verification can be
// exercised without hardware (see DESIGN.md).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/aes128"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/bootloader"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/dwlog"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/flash"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/gpio"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/packet"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/profile"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/ringbuf"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/tick"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/transport"
)

// byteSinkAdapter lets any transport.Serial satisfy link.ByteSink,
// which sends one byte at a time, matching the reference's blocking
// per-byte UART transmit.
type byteSinkAdapter struct {
	s transport.Serial
}

func (a byteSinkAdapter) WriteByte(b byte) error {
	var _, err = a.s.Write([]byte{b})
	return err
}

func main() {
	var serialPort = pflag.StringP("serial-port", "s", "", "Serial device to open (e.g. /dev/ttyUSB0). If empty, a PTY pair is created and the host end's path is printed.")
	var baud = pflag.IntP("baud", "b", 115200, "Serial baud rate.")
	var deviceID = pflag.Uint32P("device-id", "d", 1, "Device identifier checked during DEVICE_ID_RES and against the flashed image header.")
	var maxFwLength = pflag.Uint32P("max-fw-length", "m", 64*1024, "Application region capacity, in bytes.")
	var applicationBase = pflag.Uint32P("application-base", "a", 0, "Offset of the application region within the flash address space.")
	var vectorTableSize = pflag.IntP("vector-table-size", "v", 256, "Size, in bytes, of the interrupt vector table preceding the firmware-info header.")
	var sectorSize = pflag.Uint32P("sector-size", "S", 4096, "Simulated flash erase sector size, in bytes.")
	var timeoutMS = pflag.Uint64P("timeout-ms", "t", 5000, "Per-step protocol timeout, in milliseconds.")
	var aesKeyHex = pflag.StringP("aes-key", "k", "", "32 hex characters: the 128-bit CBC-MAC key. Ignored if --profile is set.")
	var profilePath = pflag.StringP("profile", "p", "", "Device profile YAML file supplying device-id, aes-key, vector-table-size and max-fw-length, overriding their flag defaults — lets a fleet of simulated devices be configured declaratively.")
	var gpioChip = pflag.String("gpio-chip", "", "Linux gpiochip to claim a status line on (e.g. gpiochip0). If empty, no GPIO is touched.")
	var gpioLine = pflag.Int("gpio-status-line", 0, "Offset of the status line on --gpio-chip.")
	var logLevel = pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bootloader --aes-key <hex32> [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	var log = dwlog.New("bootloader", dwlog.ParseLevel(*logLevel))

	if *profilePath != "" {
		var prof, err = profile.Load(*profilePath)
		if err != nil {
			log.Error("loading profile", "err", err)
			os.Exit(1)
		}
		*deviceID = prof.DeviceID
		*vectorTableSize = prof.VectorTableSize
		*maxFwLength = prof.MaxFwLength
		*applicationBase = prof.ApplicationBase
		*aesKeyHex = prof.AESKeyHex
	}

	var aesKey, keyErr = func() ([aes128.BlockSize]byte, error) {
		var p = profile.Profile{AESKeyHex: *aesKeyHex}
		return p.Key()
	}()
	if keyErr != nil {
		log.Error("invalid aes key, want 32 hex characters", "err", keyErr)
		os.Exit(1)
	}

	var bank gpio.Bank = gpio.NoopBank{}
	if *gpioChip != "" {
		var b, err = gpio.NewCdevBank(*gpioChip, map[string]int{"status": *gpioLine})
		if err != nil {
			log.Error("claiming gpio bank", "err", err)
			os.Exit(1)
		}
		bank = b
	}
	defer func() {
		if err := bank.Teardown(); err != nil {
			log.Error("gpio teardown", "err", err)
		}
	}()

	var serial transport.Serial
	if *serialPort == "" {
		var host, device, err = transport.NewPTYPair()
		if err != nil {
			log.Error("opening pty pair", "err", err)
			os.Exit(1)
		}
		if named, ok := host.(interface{ Name() string }); ok {
			log.Info("opened simulated device over a pty pair", "updater_serial_port", named.Name())
		}
		serial = device
	} else {
		var s, err = transport.NewRealSerial(*serialPort, *baud)
		if err != nil {
			log.Error("opening serial port", "port", *serialPort, "err", err)
			os.Exit(1)
		}
		serial = s
	}
	defer func() { _ = serial.Close() }()

	var ticker = tick.NewSource()
	go ticker.Run()
	defer ticker.Stop()

	var inbound = ringbuf.NewByteRing(1024)
	go func() {
		var buf [256]byte
		for {
			var n, err = serial.Read(buf[:])
			for i := 0; i < n; i++ {
				if !inbound.Write(buf[i]) {
					log.Warn("inbound byte ring full, dropping byte")
				}
			}
			if err != nil {
				return
			}
		}
	}()

	var packets = ringbuf.NewPacketRing[packet.Packet](32)

	var fl = flash.NewSimFlash(*maxFwLength, *sectorSize)

	var cfg = bootloader.Config{
		DeviceID:         *deviceID,
		MaxFwLength:      *maxFwLength,
		ApplicationBase:  *applicationBase,
		VectorTableSize:  *vectorTableSize,
		DefaultTimeoutMS: *timeoutMS,
		AESKey:           aesKey,
	}
	var m = bootloader.NewMachine(cfg, inbound, byteSinkAdapter{s: serial}, packets, fl, ticker)
	m.OnTransition = func(from, to bootloader.State) {
		log.Info("state transition", "from", from.String(), "to", to.String())
	}

	log.Info("awaiting sync", "device_id", *deviceID, "max_fw_length", *maxFwLength)
	var lastState = m.State()
	for m.State() != bootloader.Done {
		if err := m.Run(); err != nil {
			log.Error("handshake failed", "err", err)
			os.Exit(1)
		}
		if m.State() == lastState {
			// Run made no progress this lap: nothing was available
			// to act on yet. A real device's main loop would spin
			// on this directly; a host process sleeps briefly
			// instead of pegging a CPU core.
			time.Sleep(time.Millisecond)
		}
		lastState = m.State()
	}

	if m.BytesWritten() == 0 {
		log.Error("handshake ended without receiving firmware")
		os.Exit(1)
	}

	var ok, img, err = m.Verify()
	if err != nil {
		log.Error("post-update verification", "err", err)
		os.Exit(1)
	}
	if !ok {
		log.Error("image failed integrity verification, refusing to launch", "header_device_id", img.Header.DeviceID, "header_version", img.Header.Version)
		os.Exit(1)
	}

	log.Info("image verified, launching application", "version", img.Header.Version, "bytes_written", m.BytesWritten())
}
