// Package transport hides operating-system differences behind one
// Serial interface, the way the reference firmware's host-side
// updater's serial_port.go hid them behind *term.Term. Two
// implementations are provided: a real serial port (github.com/pkg/term)
// for talking to actual hardware, and a PTY pair (github.com/creack/pty)
// for exercising the host/device handshake entirely in-process.
package transport

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

// Serial is a full-duplex byte stream with the host/device baud rates
// this protocol runs at, abstracting over a real UART and a simulated
// one equally.
type Serial interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// SupportedBauds lists the speeds serial_port_open in the reference
// would accept without falling back to a default.
var SupportedBauds = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

func isSupportedBaud(baud int) bool {
	for _, b := range SupportedBauds {
		if b == baud {
			return true
		}
	}
	return false
}

// realSerial wraps *term.Term to satisfy Serial.
type realSerial struct {
	t *term.Term
}

// NewRealSerial opens devicename (e.g. "/dev/ttyUSB0") in raw mode at
// baud, falling back to 4800 for an unsupported speed exactly as the
// reference does, rather than erroring.
func NewRealSerial(devicename string, baud int) (Serial, error) {
	var t, err = term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("transport: opening serial port %s: %w", devicename, err)
	}

	switch {
	case baud == 0:
		// leave it alone
	case isSupportedBaud(baud):
		if err := t.SetSpeed(baud); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("transport: setting speed %d on %s: %w", baud, devicename, err)
		}
	default:
		if err := t.SetSpeed(4800); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("transport: setting fallback speed on %s: %w", devicename, err)
		}
	}

	return &realSerial{t: t}, nil
}

func (r *realSerial) Read(p []byte) (int, error)  { return r.t.Read(p) }
func (r *realSerial) Write(p []byte) (int, error) { return r.t.Write(p) }
func (r *realSerial) Close() error                { return r.t.Close() }

// ptySerial wraps one end of a PTY pair.
type ptySerial struct {
	f *os.File
}

// NewPTYPair opens a fresh PTY pair and returns both ends as Serial
// values: pass one to a simulated device process and the other to a
// simulated host updater, so the wire protocol can be exercised over a
// real byte stream without real hardware.
func NewPTYPair() (host Serial, device Serial, err error) {
	var pm, ps, openErr = pty.Open()
	if openErr != nil {
		return nil, nil, fmt.Errorf("transport: opening pty pair: %w", openErr)
	}
	return &ptySerial{f: pm}, &ptySerial{f: ps}, nil
}

func (p *ptySerial) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *ptySerial) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *ptySerial) Close() error                { return p.f.Close() }

// Name returns the pty end's device path (e.g. "/dev/pts/4"), so a
// caller that only got back a Serial value can still tell another
// process which path to open. Only *ptySerial implements this; a real
// serial port's path is already known to its caller.
func (p *ptySerial) Name() string { return p.f.Name() }
