// Command fwupdate is the host-side counterpart to cmd/bootloader
// (spec.md §6's "host-side updater tool" external collaborator): it
// packs a signed firmware image from a raw application blob, and
// flashes a packed image to a device over a real or simulated serial
// link by driving the wire handshake (internal/updater).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/dwlog"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/fwpack"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/profile"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/ringbuf"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/transport"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/updater"
)

type byteSinkAdapter struct {
	s transport.Serial
}

func (a byteSinkAdapter) WriteByte(b byte) error {
	var _, err = a.s.Write([]byte{b})
	return err
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fwupdate <pack|flash> [options]\n\n")
	fmt.Fprintf(os.Stderr, "  fwupdate pack  --profile device.yaml --app app.bin --out image.bin [--version n]\n")
	fmt.Fprintf(os.Stderr, "  fwupdate flash --profile device.yaml --image image.bin --serial-port /dev/ttyUSB0\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var log = dwlog.New("fwupdate", dwlog.ParseLevel("info"))

	switch os.Args[1] {
	case "pack":
		runPack(log, os.Args[2:])
	case "flash":
		runFlash(log, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "fwupdate: unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func runPack(log *dwlog.Logger, args []string) {
	var flags = pflag.NewFlagSet("pack", pflag.ExitOnError)
	var profilePath = flags.StringP("profile", "p", "", "Device profile YAML file (device_id, aes_key, vector_table_size, max_fw_length). Required.")
	var appPath = flags.StringP("app", "a", "", "Raw application binary to sign and pack. Required.")
	var outPath = flags.StringP("out", "o", "", "Output path for the packed image. Required.")
	var version = flags.Uint32P("version", "v", 1, "Firmware version recorded in the header.")
	var withVectorTable = flags.Bool("with-vector-table", false, "Prepend profile's vector_table_size zero bytes (for flashing a full on-chip image rather than just the OTA payload).")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fwupdate pack [options]\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		log.Error("parsing flags", "err", err)
		os.Exit(1)
	}

	if *profilePath == "" || *appPath == "" || *outPath == "" {
		flags.Usage()
		os.Exit(1)
	}

	var prof, err = profile.Load(*profilePath)
	if err != nil {
		log.Error("loading profile", "err", err)
		os.Exit(1)
	}
	var key, keyErr = prof.Key()
	if keyErr != nil {
		log.Error("profile key", "err", keyErr)
		os.Exit(1)
	}

	var appData []byte
	appData, err = os.ReadFile(*appPath)
	if err != nil {
		log.Error("reading application binary", "path", *appPath, "err", err)
		os.Exit(1)
	}

	var opts = []fwpack.Option{fwpack.WithVersion(*version)}
	if *withVectorTable {
		opts = append(opts, fwpack.WithVectorTableSize(prof.VectorTableSize))
	}

	var out *os.File
	out, err = os.Create(*outPath)
	if err != nil {
		log.Error("creating output file", "path", *outPath, "err", err)
		os.Exit(1)
	}
	defer func() { _ = out.Close() }()

	if err := fwpack.Pack(out, prof.DeviceID, key, appData, opts...); err != nil {
		log.Error("packing image", "err", err)
		os.Exit(1)
	}

	log.Info("packed image", "app_bytes", len(appData), "device_id", prof.DeviceID, "version", *version, "out", *outPath)
}

func runFlash(log *dwlog.Logger, args []string) {
	var flags = pflag.NewFlagSet("flash", pflag.ExitOnError)
	var profilePath = flags.StringP("profile", "p", "", "Device profile YAML file. Required.")
	var imagePath = flags.StringP("image", "i", "", "Packed image to send (as produced by 'fwupdate pack' without --with-vector-table). Required.")
	var serialPort = flags.StringP("serial-port", "s", "", "Serial device to open (e.g. /dev/ttyUSB0). Required.")
	var baud = flags.IntP("baud", "b", 115200, "Serial baud rate.")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fwupdate flash [options]\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		log.Error("parsing flags", "err", err)
		os.Exit(1)
	}

	if *profilePath == "" || *imagePath == "" || *serialPort == "" {
		flags.Usage()
		os.Exit(1)
	}

	var prof, err = profile.Load(*profilePath)
	if err != nil {
		log.Error("loading profile", "err", err)
		os.Exit(1)
	}

	var fwImage []byte
	fwImage, err = os.ReadFile(*imagePath)
	if err != nil {
		log.Error("reading image", "path", *imagePath, "err", err)
		os.Exit(1)
	}

	var serial transport.Serial
	serial, err = transport.NewRealSerial(*serialPort, *baud)
	if err != nil {
		log.Error("opening serial port", "port", *serialPort, "err", err)
		os.Exit(1)
	}
	defer func() { _ = serial.Close() }()

	var inbound = ringbuf.NewByteRing(1024)
	go func() {
		var buf [256]byte
		for {
			var n, readErr = serial.Read(buf[:])
			for i := 0; i < n; i++ {
				if !inbound.Write(buf[i]) {
					log.Warn("inbound byte ring full, dropping byte")
				}
			}
			if readErr != nil {
				return
			}
		}
	}()

	log.Info("starting update", "device_id", prof.DeviceID, "bytes", len(fwImage), "port", *serialPort)

	var opts = updater.DefaultOptions()
	err = updater.Flash(inbound, byteSinkAdapter{s: serial}, uint8(prof.DeviceID), fwImage, opts, func(sent, total int) {
		log.Info("progress", "sent", sent, "total", total)
	})
	if err != nil {
		log.Error("update failed", "err", err)
		os.Exit(1)
	}

	log.Info("update successful")
}
