// Package updater plays the host side of the wire protocol
// bootloader.Machine drives from the device side: it is the part of
// `cmd/fwupdate flash` that walks the same
// Sync -> ... -> ReceiveFirmware handshake, in the host's role,
// against a real or simulated serial link. It polls for each expected
// response with a bounded-attempt loop (a short sleep between checks,
// give up after a bounded number of attempts) rather than blocking
// reads, since transport.Serial has no built-in read deadline.
package updater

import (
	"fmt"
	"time"

	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/link"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/packet"
	"github.com/barakbarlevi/baremetal-CortexM4-AES-CBC-encryptor/internal/ringbuf"
)

// Options tunes how long Flash waits for each expected response
// before giving up.
type Options struct {
	// PollInterval is the delay between successive checks for a
	// response.
	PollInterval time.Duration
	// MaxPolls is the number of checks attempted before a step times
	// out. PollInterval*MaxPolls should comfortably exceed the
	// device's own per-step timeout (spec default 5s) so the device
	// NACKs before the host gives up, rather than the reverse.
	MaxPolls int
}

// DefaultOptions matches the device's 5-second per-step timeout with
// headroom.
func DefaultOptions() Options {
	return Options{PollInterval: 20 * time.Millisecond, MaxPolls: 400}
}

// Progress, if set, is called after each data chunk is acknowledged,
// reporting bytes sent so far out of total.
type Progress func(sent, total int)

// Flash drives the full update handshake over in/out, sending
// fwImage (the header+signature+app bytes produced by fwpack.Pack,
// excluding any vector table — see bootloader.Machine.Verify) and
// answering DEVICE_ID_REQ with deviceID. It returns once the
// device has replied UPDATE_SUCCESSFUL; it does not itself verify the
// flashed image; that is the device's job post-handshake.
func Flash(in link.ByteSource, out link.ByteSink, deviceID uint8, fwImage []byte, opts Options, onProgress Progress) error {
	var packets = ringbuf.NewPacketRing[packet.Packet](32)
	var lk = link.New(in, out, packets)

	for _, b := range packet.SyncPrefix {
		if err := out.WriteByte(b); err != nil {
			return fmt.Errorf("updater: sending sync prefix: %w", err)
		}
	}

	if err := expect(lk, packets, opts, packet.SyncObserved); err != nil {
		return fmt.Errorf("updater: waiting for sync: %w", err)
	}

	if err := lk.Send(packet.Single(packet.FWUpdateReq)); err != nil {
		return fmt.Errorf("updater: sending update request: %w", err)
	}
	if err := expect(lk, packets, opts, packet.FWUpdateRes); err != nil {
		return fmt.Errorf("updater: waiting for update response: %w", err)
	}

	if err := expect(lk, packets, opts, packet.DeviceIDReq); err != nil {
		return fmt.Errorf("updater: waiting for device id request: %w", err)
	}
	if err := lk.Send(packet.DeviceIDResPacket(deviceID)); err != nil {
		return fmt.Errorf("updater: sending device id: %w", err)
	}

	if err := expect(lk, packets, opts, packet.FWLengthReq); err != nil {
		return fmt.Errorf("updater: waiting for length request: %w", err)
	}
	if err := lk.Send(packet.FWLengthResPacket(uint32(len(fwImage)))); err != nil {
		return fmt.Errorf("updater: sending length: %w", err)
	}
	if err := expect(lk, packets, opts, packet.ReadyForData); err != nil {
		return fmt.Errorf("updater: waiting for erase to complete: %w", err)
	}

	var sent = 0
	for sent < len(fwImage) {
		var end = sent + packet.DataLength
		if end > len(fwImage) {
			end = len(fwImage)
		}
		if err := lk.Send(packet.DataPacket(fwImage[sent:end])); err != nil {
			return fmt.Errorf("updater: sending data at offset %d: %w", sent, err)
		}
		sent = end

		var p, err = await(lk, packets, opts)
		if err != nil {
			return fmt.Errorf("updater: waiting for ack at offset %d: %w", sent, err)
		}
		if onProgress != nil {
			onProgress(sent, len(fwImage))
		}
		switch {
		case packet.IsSingle(p, packet.UpdateSuccessful):
			if sent != len(fwImage) {
				return fmt.Errorf("updater: device reported success after %d of %d bytes", sent, len(fwImage))
			}
			return nil
		case packet.IsSingle(p, packet.NACK):
			return fmt.Errorf("updater: device rejected the transfer at offset %d", sent)
		case packet.IsSingle(p, packet.ReadyForData):
			// continue
		default:
			return fmt.Errorf("updater: unexpected response at offset %d", sent)
		}
	}

	return fmt.Errorf("updater: sent entire image but device never confirmed success")
}

// await polls until a packet is available, pumping the link's inbound
// parser between checks.
func await(lk *link.Link, packets *ringbuf.PacketRing[packet.Packet], opts Options) (packet.Packet, error) {
	for i := 0; i < opts.MaxPolls; i++ {
		if err := lk.Pump(); err != nil {
			return packet.Packet{}, err
		}
		if p, ok := packets.Read(); ok {
			return p, nil
		}
		time.Sleep(opts.PollInterval)
	}
	return packet.Packet{}, fmt.Errorf("timed out after %d polls", opts.MaxPolls)
}

// expect polls until a packet arrives and requires it to be the
// single-byte control packet of the given kind, treating a NACK
// (signaling the device aborted the handshake) as a distinct,
// more specific error.
func expect(lk *link.Link, packets *ringbuf.PacketRing[packet.Packet], opts Options, kind packet.Kind) error {
	var p, err = await(lk, packets, opts)
	if err != nil {
		return err
	}
	if packet.IsSingle(p, packet.NACK) {
		return fmt.Errorf("device sent NACK, aborting handshake")
	}
	if !packet.IsSingle(p, kind) {
		return fmt.Errorf("expected control packet %#x, got length=%d data[0]=%#x", kind, p.Length, p.Data[0])
	}
	return nil
}
