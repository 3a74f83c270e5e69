// Package clock provides the controller's millisecond counter.
//
// The counter mirrors a microcontroller tick: it starts at zero (or a chosen
// offset) and wraps at 2^32, roughly every 49.7 days.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Millis is a wrapping millisecond counter over a clock.Clock.
type Millis struct {
	clk    clock.Clock
	start  time.Time
	offset uint32
}

// New returns a counter reading zero now on the real clock.
func New() *Millis {
	return NewWithOffset(clock.New(), 0)
}

// NewWithOffset returns a counter over clk that currently reads offset.
// A large offset brings the wrap point close, which is how rollover is
// exercised on real hardware without waiting seven weeks.
func NewWithOffset(clk clock.Clock, offset uint32) *Millis {
	return &Millis{
		clk:    clk,
		start:  clk.Now(),
		offset: offset,
	}
}

// Millis returns the milliseconds since start plus offset, modulo 2^32.
func (m *Millis) Millis() uint32 {
	elapsed := m.clk.Since(m.start).Milliseconds()
	return m.offset + uint32(elapsed)
}
