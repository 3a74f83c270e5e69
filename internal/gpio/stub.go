//go:build !linux

package gpio

import "errors"

// ErrUnsupported is returned by the hardware constructors off Linux.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Relay is not available on non-Linux platforms.
type Relay struct{}

// NewRelay returns ErrUnsupported on non-Linux platforms.
func NewRelay(OutputSpec) (*Relay, error) {
	return nil, ErrUnsupported
}

func (r *Relay) SetEnergized(bool) {}
func (r *Relay) Energized() bool   { return false }
func (r *Relay) Name() string      { return "" }
func (r *Relay) Close() error      { return nil }

// Buzzer is not available on non-Linux platforms.
type Buzzer struct{}

// NewBuzzer returns ErrUnsupported on non-Linux platforms.
func NewBuzzer(BuzzerSpec) (*Buzzer, error) {
	return nil, ErrUnsupported
}

func (b *Buzzer) Pulse()       {}
func (b *Buzzer) Close() error { return nil }
