package gpio

import (
	"sync"
	"time"

	"github.com/sweeney/feedback-controller/internal/logger"
)

// stopper is the part of *time.Timer a pulser needs.
type stopper interface {
	Stop() bool
}

// pulser raises a line and schedules its release on a timer, so the caller
// never waits out the pulse. A pulse while the line is still high restarts
// the release timer.
type pulser struct {
	set       func(value int) error
	length    time.Duration
	afterFunc func(d time.Duration, f func()) stopper

	mu     sync.Mutex
	timer  stopper
	gen    uint64
	closed bool
}

func newPulser(set func(value int) error, length time.Duration) *pulser {
	return &pulser{
		set:    set,
		length: length,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

func (p *pulser) pulse() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	if err := p.set(1); err != nil {
		logger.Named("gpio").Warnf("buzzer on: %v", err)
	}
	gen := p.gen
	p.timer = p.afterFunc(p.length, func() { p.release(gen) })
}

// release drops the line unless a later pulse or stop superseded gen.
func (p *pulser) release(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || gen != p.gen {
		return
	}
	p.timer = nil
	if err := p.set(0); err != nil {
		logger.Named("gpio").Warnf("buzzer off: %v", err)
	}
}

// stop cancels a pending release and ignores later pulses. Silencing the
// line is left to the caller.
func (p *pulser) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
