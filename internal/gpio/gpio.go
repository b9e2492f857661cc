// Package gpio models the bootloader's GPIO teardown step (spec
// §4.7: "tear down the serial peripheral and GPIOs, reverse order of
// setup") as a small Bank interface, backed on Linux hosts by
// github.com/warthog618/go-gpiocdev against a real gpiochip, or by a
// no-op bank when there's no hardware to tear down (tests, PTY-based
// host/device simulation).
package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Bank is a set of GPIO lines the bootloader claimed at startup (for
// example, a status LED or a "boot request" pin) and must release, in
// reverse acquisition order, before handing control to the
// application or resetting.
type Bank interface {
	// Set drives line to the given logical level.
	Set(line string, high bool) error
	// Teardown releases every claimed line, in reverse order.
	Teardown() error
}

// cdevBank claims lines on a single Linux gpiochip.
type cdevBank struct {
	chip  string
	lines map[string]*gpiocdev.Line
	order []string
}

// NewCdevBank requests one output line per name in lineOffsets
// (a name -> chip offset map) on chip (e.g. "gpiochip0"), each driven
// low initially, mirroring the reference's GPIO init ordering.
func NewCdevBank(chip string, lineOffsets map[string]int) (Bank, error) {
	var b = &cdevBank{chip: chip, lines: make(map[string]*gpiocdev.Line, len(lineOffsets))}
	for name, offset := range lineOffsets {
		var l, err = gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
		if err != nil {
			_ = b.Teardown()
			return nil, fmt.Errorf("gpio: requesting line %q (%s:%d): %w", name, chip, offset, err)
		}
		b.lines[name] = l
		b.order = append(b.order, name)
	}
	return b, nil
}

func (b *cdevBank) Set(line string, high bool) error {
	var l, ok = b.lines[line]
	if !ok {
		return fmt.Errorf("gpio: unknown line %q", line)
	}
	var value = 0
	if high {
		value = 1
	}
	return l.SetValue(value)
}

// Teardown releases lines in reverse of the order they were acquired,
// matching the reference's "reverse order of setup" teardown rule.
func (b *cdevBank) Teardown() error {
	var firstErr error
	for i := len(b.order) - 1; i >= 0; i-- {
		var name = b.order[i]
		var l = b.lines[name]
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("gpio: releasing line %q: %w", name, err)
		}
		delete(b.lines, name)
	}
	b.order = nil
	return firstErr
}

// NoopBank is a Bank with nothing to tear down, used by tests and by
// cmd/bootloader when no --gpio-chip is given.
type NoopBank struct{}

func (NoopBank) Set(string, bool) error { return nil }
func (NoopBank) Teardown() error        { return nil }
