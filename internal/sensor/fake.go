package sensor

import "sync"

// Fake is a test double that returns scripted readings.
// Each call to Read consumes the next value; once exhausted the last value
// is returned repeatedly.
type Fake struct {
	name string

	mu     sync.Mutex
	values []float64
	index  int
	reads  int
}

// NewFake creates a Fake with the given readings.
func NewFake(name string, values ...float64) *Fake {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Fake{name: name, values: values}
}

// Read returns the next scripted value.
func (f *Fake) Read() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := f.values[f.index]
	if f.index < len(f.values)-1 {
		f.index++
	}
	f.reads++
	return v
}

// Name returns the sensor name.
func (f *Fake) Name() string {
	return f.name
}

// Set replaces the script with a single repeating value.
func (f *Fake) Set(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = []float64{v}
	f.index = 0
}

// Reads returns how many times Read was called.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
