package logic

import "fmt"

// scriptedSensor returns its values in order, repeating the last one.
type scriptedSensor struct {
	name   string
	values []float64
	index  int
}

func newScriptedSensor(name string, values ...float64) *scriptedSensor {
	return &scriptedSensor{name: name, values: values}
}

func (s *scriptedSensor) Read() float64 {
	v := s.values[s.index]
	if s.index < len(s.values)-1 {
		s.index++
	}
	return v
}

func (s *scriptedSensor) Name() string { return s.name }

// recordingOutput keeps every SetEnergized call.
type recordingOutput struct {
	name  string
	calls []bool
}

func (o *recordingOutput) SetEnergized(on bool) { o.calls = append(o.calls, on) }
func (o *recordingOutput) Name() string         { return o.name }

func (o *recordingOutput) last() bool {
	return o.calls[len(o.calls)-1]
}

type countingBuzzer struct {
	pulses int
}

func (b *countingBuzzer) Pulse() { b.pulses++ }

// manualClock is set by the test.
type manualClock struct {
	ms uint32
}

func (c *manualClock) Millis() uint32 { return c.ms }

type lineSink struct {
	lines []string
}

func (s *lineSink) Printf(format string, args ...any) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

// setupController builds a controller with one scripted sensor and one output.
func setupController(inverse bool, values ...float64) (*Controller, *scriptedSensor, *recordingOutput) {
	c := New(Config{InverselyProportional: inverse})
	s := newScriptedSensor("tank", values...)
	out := &recordingOutput{name: "relay"}
	if err := c.DefineInputs([]Sensor{s}, nil, 'T'); err != nil {
		panic(err)
	}
	c.DefineOutputs([]OutputDevice{out})
	return c, s, out
}

// valueSensor returns whatever the test last stored in v.
type valueSensor struct {
	name  string
	v     float64
	reads int
}

func (s *valueSensor) Read() float64 {
	s.reads++
	return s.v
}

func (s *valueSensor) Name() string { return s.name }
