//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/sweeney/feedback-controller/internal/logger"
)

// Relay drives one output line on a GPIO chip.
type Relay struct {
	name string
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu        sync.Mutex
	energized bool
}

// NewRelay requests spec.Line as an output, initially de-energized.
func NewRelay(spec OutputSpec) (*Relay, error) {
	chip, err := gpiocdev.NewChip(spec.Chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", spec.Chip, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if spec.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(spec.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request %s line %d: %w", spec.Name, spec.Line, err)
	}

	return &Relay{name: spec.Name, chip: chip, line: line}, nil
}

// SetEnergized drives the line to the logical state on.
func (r *Relay) SetEnergized(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := 0
	if on {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		logger.Named("gpio").Warnf("set %s to %d: %v", r.name, v, err)
		return
	}
	r.energized = on
}

// Energized returns the last state successfully driven.
func (r *Relay) Energized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.energized
}

// Name returns the relay name.
func (r *Relay) Name() string {
	return r.name
}

// Close de-energizes the relay and returns the line to input with pull-down
// (matching Pi boot defaults) before releasing it.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.line != nil {
		err = multierr.Append(err, wrap("de-energize "+r.name, r.line.SetValue(0)))
		err = multierr.Append(err, wrap("reconfigure "+r.name, r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown)))
		err = multierr.Append(err, wrap("close "+r.name, r.line.Close()))
	}
	if r.chip != nil {
		err = multierr.Append(err, wrap("close chip", r.chip.Close()))
	}
	r.energized = false
	return err
}

// Buzzer sounds a piezo on one output line.
type Buzzer struct {
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	pulse *pulser
	mu    sync.Mutex
}

// NewBuzzer requests spec.Line as an output, initially silent.
func NewBuzzer(spec BuzzerSpec) (*Buzzer, error) {
	chip, err := gpiocdev.NewChip(spec.Chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", spec.Chip, err)
	}

	line, err := chip.RequestLine(spec.Line, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request buzzer line %d: %w", spec.Line, err)
	}

	return &Buzzer{chip: chip, line: line, pulse: newPulser(line.SetValue, spec.Pulse)}, nil
}

// Pulse raises the line and returns. A timer drops it after the
// configured pulse length.
func (b *Buzzer) Pulse() {
	b.pulse.pulse()
}

// Close silences the buzzer and releases the line.
func (b *Buzzer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.pulse != nil {
		b.pulse.stop()
	}
	if b.line != nil {
		err = multierr.Append(err, wrap("silence buzzer", b.line.SetValue(0)))
		err = multierr.Append(err, wrap("reconfigure buzzer", b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown)))
		err = multierr.Append(err, wrap("close buzzer", b.line.Close()))
	}
	if b.chip != nil {
		err = multierr.Append(err, wrap("close chip", b.chip.Close()))
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
