// Package logic contains the pure decision logic of the hysteresis controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via the Clock interface.
package logic

import (
	"errors"
	"time"
)

var (
	// ErrNoInputs is returned when statistics or a poll are requested before any input is defined.
	ErrNoInputs = errors.New("no inputs configured")
	// ErrOffsetCount is returned when calibration offsets do not line up with the sensors.
	ErrOffsetCount = errors.New("calibration offset count does not match sensor count")
)

// Sensor is a source of raw readings.
type Sensor interface {
	// Read returns the current raw value. It is expected to be quick and
	// never fail; implementations return their last good value on error.
	Read() float64
	Name() string
}

// OutputDevice is a named binary actuator (relay, contactor, valve).
// The controller only commands it and never owns its lifetime.
type OutputDevice interface {
	SetEnergized(on bool)
	Name() string
}

// AlarmSignaler emits one discrete audible pulse per call.
type AlarmSignaler interface {
	Pulse()
}

// Clock is a millisecond counter that wraps at 2^32.
type Clock interface {
	Millis() uint32
}

// LogSink receives line oriented diagnostic output.
type LogSink interface {
	Printf(format string, args ...any)
}

// Config holds the flags fixed at construction.
type Config struct {
	// InverselyProportional flips the polarity of every decision rule
	// (cooling instead of heating semantics).
	InverselyProportional bool
	// PWMOutput records the intent to drive outputs with PWM. Only the intent is tracked.
	PWMOutput bool
	// ControlPeriod is the cadence the host is expected to call Poll at.
	ControlPeriod time.Duration
}

// Stats are the aggregate statistics over the latest readings.
type Stats struct {
	Min float64
	Avg float64
	Max float64
}

// InputReading is the latest calibrated value of one input.
type InputReading struct {
	Name          string
	ParameterCode byte
	Value         float64
}

// EventType represents a controller transition worth publishing.
type EventType string

const (
	EventOutputOn        EventType = "OUTPUT_ON"
	EventOutputOff       EventType = "OUTPUT_OFF"
	EventAlarmRegistered EventType = "ALARM_REGISTERED"
	EventAlarmCleared    EventType = "ALARM_CLEARED"
)

// Event is a transition observed during a poll.
type Event struct {
	Type   EventType
	Millis uint32
	// State is the control state after the poll that produced the event.
	State bool
	Stats Stats
}

// Settings is a copy of the decision relevant configuration.
type Settings struct {
	Setpoint              float64
	Hysteresis            float64
	UpperBound            Bound
	LowerBound            Bound
	AlarmLow              Bound
	AlarmHigh             Bound
	GracePeriod           time.Duration
	InverselyProportional bool
	PWMOutput             bool
	ControlPeriod         time.Duration
}

type discardSink struct{}

func (discardSink) Printf(string, ...any) {}
