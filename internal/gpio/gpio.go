// Package gpio drives relay and buzzer output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Consumer labels the lines this process requests.
const Consumer = "feedback-controller"

// Output is a named relay line. It satisfies logic.OutputDevice.
type Output interface {
	// SetEnergized drives the line. Failures are logged and the last
	// good state is kept.
	SetEnergized(on bool)
	Name() string

	// Close de-energizes and releases the line.
	Close() error
}

// Signaler is a buzzer line. It satisfies logic.AlarmSignaler.
type Signaler interface {
	// Pulse sounds the buzzer once.
	Pulse()

	// Close silences and releases the line.
	Close() error
}

// OutputSpec describes one relay line.
type OutputSpec struct {
	Name      string
	Chip      string
	Line      int
	ActiveLow bool
}

// BuzzerSpec describes the buzzer line.
type BuzzerSpec struct {
	Chip  string
	Line  int
	Pulse time.Duration
}
