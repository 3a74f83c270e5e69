package gpio

import (
	"errors"
	"sync"
)

// FakeRelay is a test double that records every drive.
type FakeRelay struct {
	name string

	mu sync.Mutex
	// Calls contains every SetEnergized argument in order.
	Calls []bool
	// Closed tracks if Close was called
	Closed bool
	// CloseError, if set, will be returned by Close()
	CloseError error
}

// NewFakeRelay creates a FakeRelay with the given name.
func NewFakeRelay(name string) *FakeRelay {
	return &FakeRelay{name: name}
}

// SetEnergized records on.
func (f *FakeRelay) SetEnergized(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, on)
}

// Energized returns the last recorded state, or false before any drive.
func (f *FakeRelay) Energized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return false
	}
	return f.Calls[len(f.Calls)-1]
}

// History returns a copy of the recorded drives.
func (f *FakeRelay) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Calls...)
}

// Name returns the relay name.
func (f *FakeRelay) Name() string {
	return f.name
}

// Close marks the relay as closed.
func (f *FakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return f.CloseError
}

// FakeBuzzer counts pulses.
type FakeBuzzer struct {
	mu     sync.Mutex
	pulses int
	Closed bool
}

// Pulse records one pulse.
func (f *FakeBuzzer) Pulse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses++
}

// Pulses returns the number of pulses so far.
func (f *FakeBuzzer) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulses
}

// Close marks the buzzer as closed.
func (f *FakeBuzzer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// ErrSimulated is a canned failure for fakes.
var ErrSimulated = errors.New("simulated gpio failure")
