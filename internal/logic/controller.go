package logic

import (
	"strconv"
	"strings"
	"time"
)

// Controller drives a set of outputs from a set of inputs using a dead band
// around a setpoint, hard control bounds, and a debounced alarm.
//
// A Controller is not safe for concurrent use. The host calls Poll at
// ControlPeriod cadence from a single goroutine.
type Controller struct {
	cfg Config

	inputs         []SensorInput
	outputs        []OutputDevice
	latestReadings []float64

	setpoint   float64
	hysteresis float64
	upperBound Bound
	lowerBound Bound

	alarmHigh   Bound
	alarmLow    Bound
	gracePeriod time.Duration

	currentState bool
	alarmActive  bool
	// alarmSince is only meaningful while alarmActive is true.
	alarmSince uint32

	buzzer AlarmSignaler
	clock  Clock
	log    LogSink

	events []Event
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the millisecond clock used for alarm timing.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

// WithLogSink sets the diagnostic line sink.
func WithLogSink(s LogSink) Option {
	return func(ctrl *Controller) {
		ctrl.log = s
	}
}

// WithBuzzer sets the alarm signaler.
func WithBuzzer(b AlarmSignaler) Option {
	return func(ctrl *Controller) {
		ctrl.buzzer = b
	}
}

// New creates a controller with the given fixed flags.
// Without WithClock the alarm timer reads a clock that never advances.
func New(cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:   cfg,
		clock: frozenClock{},
		log:   discardSink{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type frozenClock struct{}

func (frozenClock) Millis() uint32 { return 0 }

// SetBuzzer replaces the alarm signaler. Nil disables audible alarms.
func (c *Controller) SetBuzzer(b AlarmSignaler) {
	c.buzzer = b
}

// SetUpperBound sets the upper control bound and polls.
// The bound is stored even if the poll fails.
func (c *Controller) SetUpperBound(v float64) error {
	c.upperBound = NewBound(v)
	return c.Poll()
}

// SetLowerBound sets the lower control bound and polls.
func (c *Controller) SetLowerBound(v float64) error {
	c.lowerBound = NewBound(v)
	return c.Poll()
}

// ClearUpperBound unsets the upper control bound and polls.
func (c *Controller) ClearUpperBound() error {
	c.upperBound = Bound{}
	return c.Poll()
}

// ClearLowerBound unsets the lower control bound and polls.
func (c *Controller) ClearLowerBound() error {
	c.lowerBound = Bound{}
	return c.Poll()
}

// SetSetpoint sets the setpoint and polls.
func (c *Controller) SetSetpoint(v float64) error {
	c.setpoint = v
	return c.Poll()
}

// SetHysteresis sets the dead band half width and polls.
// Negative values are accepted as given.
func (c *Controller) SetHysteresis(v float64) error {
	c.hysteresis = v
	return c.Poll()
}

// SetAlarm arms both alarm thresholds. It does not poll and does not touch
// the control bounds.
func (c *Controller) SetAlarm(low, high float64, gracePeriod time.Duration) {
	c.alarmLow = NewBound(low)
	c.alarmHigh = NewBound(high)
	c.gracePeriod = gracePeriod
}

// RemoveAlarm disarms both alarm thresholds. An episode already in progress
// is cleared by the next poll.
func (c *Controller) RemoveAlarm() {
	c.alarmLow = Bound{}
	c.alarmHigh = Bound{}
	c.gracePeriod = 0
}

// DefineInputs replaces the whole input set. All sensors share parameterCode.
// offsets may be nil; otherwise it must have one entry per sensor.
func (c *Controller) DefineInputs(sensors []Sensor, offsets []float64, parameterCode byte) error {
	if offsets != nil && len(offsets) != len(sensors) {
		return ErrOffsetCount
	}

	inputs := make([]SensorInput, len(sensors))
	for i, s := range sensors {
		var offset float64
		if offsets != nil {
			offset = offsets[i]
		}
		inputs[i] = NewSensorInput(s, offset, parameterCode)
	}

	c.inputs = inputs
	c.latestReadings = make([]float64, len(inputs))
	return nil
}

// DefineOutputs replaces the whole output set and drives every new device to
// the current control state.
func (c *Controller) DefineOutputs(devices []OutputDevice) {
	c.outputs = append([]OutputDevice(nil), devices...)
	for _, d := range c.outputs {
		d.SetEnergized(c.currentState)
	}
}

// Poll reads every input, decides and applies the control state, and
// updates the alarm.
func (c *Controller) Poll() error {
	if len(c.inputs) == 0 {
		return ErrNoInputs
	}

	outOfBounds := false
	for i, in := range c.inputs {
		v := in.Get()
		c.latestReadings[i] = v
		if c.alarmLow.Below(v) || c.alarmHigh.Above(v) {
			outOfBounds = true
		}

		verdict := "No alarm"
		if outOfBounds {
			verdict = "Tentative alarm state"
		}
		c.log.Printf("%s: %c: %.2f    %s", in.Name(), in.ParameterCode(), v, verdict)
	}

	stats, err := c.Stats()
	if err != nil {
		return err
	}

	c.controlOutputs(stats)
	c.updateAlarm(outOfBounds, stats)
	return nil
}

// decide returns the next control state for the given statistics.
// Upper bound wins over lower bound when both fire.
func (c *Controller) decide(s Stats) bool {
	on := !c.cfg.InverselyProportional
	off := c.cfg.InverselyProportional

	state := c.currentState
	if s.Avg < c.setpoint-c.hysteresis {
		state = on
	} else if s.Avg > c.setpoint+c.hysteresis {
		state = off
	}

	if c.lowerBound.Below(s.Min) {
		c.log.Printf("lower bound %s violated: min %.2f", c.lowerBound, s.Min)
		state = on
	}
	if c.upperBound.Above(s.Max) {
		c.log.Printf("upper bound %s violated: max %.2f", c.upperBound, s.Max)
		state = off
	}
	return state
}

func (c *Controller) controlOutputs(s Stats) {
	state := c.decide(s)

	if state != c.currentState {
		label := "OFF"
		typ := EventOutputOff
		if state {
			label = "ON"
			typ = EventOutputOn
		}
		for _, d := range c.outputs {
			c.log.Printf("%s: %s", d.Name(), label)
		}
		c.events = append(c.events, Event{Type: typ, Millis: c.clock.Millis(), State: state, Stats: s})
	}

	c.currentState = state
	for _, d := range c.outputs {
		d.SetEnergized(state)
	}
}

// DiagnoseInputs reads every input once, refreshes the cache and logs one
// line of values. It does not decide, drive outputs or touch the alarm.
func (c *Controller) DiagnoseInputs() ([]InputReading, error) {
	if len(c.inputs) == 0 {
		return nil, ErrNoInputs
	}

	values := make([]string, len(c.inputs))
	for i, in := range c.inputs {
		c.latestReadings[i] = in.Get()
		values[i] = strconv.FormatFloat(c.latestReadings[i], 'f', 2, 64)
	}
	c.log.Printf("%s", strings.Join(values, " "))
	return c.Readings(), nil
}

// DiagnoseOutputs drives every output to on once. The control state is not
// changed; the next Poll restores the outputs.
func (c *Controller) DiagnoseOutputs(on bool) {
	for _, d := range c.outputs {
		d.SetEnergized(on)
	}
}

// TakeEvents returns and clears the events queued since the last call.
func (c *Controller) TakeEvents() []Event {
	ev := c.events
	c.events = nil
	return ev
}

// State returns the current control state.
func (c *Controller) State() bool {
	return c.currentState
}

// Readings returns a copy of the latest readings with their input names.
func (c *Controller) Readings() []InputReading {
	out := make([]InputReading, len(c.inputs))
	for i, in := range c.inputs {
		out[i] = InputReading{
			Name:          in.Name(),
			ParameterCode: in.ParameterCode(),
			Value:         c.latestReadings[i],
		}
	}
	return out
}

// Outputs returns the names of the current output devices.
func (c *Controller) Outputs() []string {
	names := make([]string, len(c.outputs))
	for i, d := range c.outputs {
		names[i] = d.Name()
	}
	return names
}

// Settings returns the current configuration.
func (c *Controller) Settings() Settings {
	return Settings{
		Setpoint:              c.setpoint,
		Hysteresis:            c.hysteresis,
		UpperBound:            c.upperBound,
		LowerBound:            c.lowerBound,
		AlarmLow:              c.alarmLow,
		AlarmHigh:             c.alarmHigh,
		GracePeriod:           c.gracePeriod,
		InverselyProportional: c.cfg.InverselyProportional,
		PWMOutput:             c.cfg.PWMOutput,
		ControlPeriod:         c.cfg.ControlPeriod,
	}
}
