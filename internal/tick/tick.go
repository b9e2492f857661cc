// Package tick provides the device's monotonic millisecond counter and
// the per-step timeout timer built on top of it.
package tick

import (
	"sync/atomic"
	"time"
)

/*------------------------------------------------------------------
 *
 * Purpose:	A periodic interrupt increments a 64-bit tick counter
 *		once per millisecond; the main loop reads it to drive
 *		simple_timer. On real hardware this counter lives on a
 *		32-bit core and needs either brief interrupt masking or
 *		a double-read-and-compare to avoid tearing. This rewrite
 *		runs the "interrupt" as its own goroutine and stores the
 *		counter in a sync/atomic.Uint64, which gives the same
 *		guarantee (single-word atomic read/write) without the
 *		masking dance.
 *
 *------------------------------------------------------------------*/

// Source is a free-running millisecond counter, normally driven by a
// background goroutine standing in for a periodic hardware timer
// interrupt.
type Source struct {
	ms     atomic.Uint64
	stopCh chan struct{}
}

// NewSource creates a tick source. Call Run in its own goroutine to
// start advancing it; Now is safe to call at any time, before or
// after Run starts.
func NewSource() *Source {
	return &Source{stopCh: make(chan struct{})}
}

// Run increments the counter once per millisecond until Stop is
// called. It is the goroutine-based stand-in for a periodic timer
// interrupt handler; it never touches anything but its own counter.
func (s *Source) Run() {
	var t = time.NewTicker(time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.ms.Add(1)
		case <-s.stopCh:
			return
		}
	}
}

// Stop halts the background Run goroutine, if one is running.
func (s *Source) Stop() {
	close(s.stopCh)
}

// Now returns the current millisecond count.
func (s *Source) Now() uint64 {
	return s.ms.Load()
}

// Advance is a test-only escape hatch for driving the counter directly
// without a real goroutine and a millisecond's real-time wait per
// unit, used by bootloader state-machine tests that need to assert
// exact timeout behavior without sleeping.
func (s *Source) Advance(deltaMS uint64) {
	s.ms.Add(deltaMS)
}

/*------------------------------------------------------------------
 *
 * Purpose:	A one-shot or auto-resetting timer built on a Source.
 *
 *------------------------------------------------------------------*/

// SimpleTimer mirrors the reference firmware's simple_timer_t: a wait
// interval, a target tick, an auto-reset flag, and a latched elapsed
// flag for the non-auto-reset case.
type SimpleTimer struct {
	src        *Source
	waitTime   uint64
	targetTime uint64
	autoReset  bool
	hasElapsed bool
}

// Setup arms the timer to elapse waitTime milliseconds from now.
func (t *SimpleTimer) Setup(src *Source, waitTime uint64, autoReset bool) {
	t.src = src
	t.waitTime = waitTime
	t.autoReset = autoReset
	t.hasElapsed = false
	t.targetTime = src.Now() + waitTime
}

// HasElapsed reports whether the timer's target has been reached.
// When autoReset is set, a true result also re-arms the timer for
// another waitTime from its previous target, so consecutive elapsed
// queries tick at waitTime spacing rather than drifting from "now".
// When autoReset is not set, the elapsed state latches: once true,
// it stays true until Reset.
func (t *SimpleTimer) HasElapsed() bool {
	if t.hasElapsed {
		return true
	}

	var elapsed = t.src.Now() >= t.targetTime
	if !elapsed {
		return false
	}

	if t.autoReset {
		t.targetTime += t.waitTime
		return true
	}

	t.hasElapsed = true
	return true
}

// Reset re-arms the timer for waitTime milliseconds from now and
// clears any latched elapsed state.
func (t *SimpleTimer) Reset() {
	t.hasElapsed = false
	t.targetTime = t.src.Now() + t.waitTime
}
