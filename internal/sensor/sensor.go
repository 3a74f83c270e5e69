// Package sensor provides concrete input sensors for the controller.
// The real implementation reads DS18B20 sensors through the Linux 1-Wire
// sysfs interface. The fake implementation allows testing without hardware.
package sensor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sweeney/feedback-controller/internal/logger"
)

var (
	// ErrCRC is returned when the bus reports a failed checksum.
	ErrCRC = errors.New("w1: crc check failed")
	// ErrMalformed is returned when w1_slave has no temperature field.
	ErrMalformed = errors.New("w1: malformed w1_slave contents")
)

// W1 reads a DS18B20 temperature sensor via /sys/bus/w1/devices/<id>/w1_slave.
type W1 struct {
	name     string
	path     string
	readFile func(string) ([]byte, error)
	now      func() time.Time

	mu      sync.Mutex
	last    float64
	updated time.Time
	errs    int
}

// NewW1 creates a sensor for the w1_slave file at path. The sensor is read
// once; a sensor that cannot produce a first reading is an error.
func NewW1(name, path string) (*W1, error) {
	return newW1(name, path, os.ReadFile, time.Now)
}

func newW1(name, path string, readFile func(string) ([]byte, error), now func() time.Time) (*W1, error) {
	s := &W1{name: name, path: filepath.Clean(path), readFile: readFile, now: now}

	v, err := s.Sample()
	if err != nil {
		return nil, fmt.Errorf("first reading of %s: %w", name, err)
	}
	s.last = v
	s.updated = now()
	return s, nil
}

// Read returns the temperature in degrees Celsius. On failure the error is
// logged and the last good value is returned.
func (s *W1) Read() float64 {
	v, err := s.Sample()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.errs++
		logger.Named("sensor").Warnf("%s: %v (keeping %.2f)", s.name, err, s.last)
		return s.last
	}
	s.last = v
	s.updated = s.now()
	return v
}

// Sample reads the sensor once and reports failures.
func (s *W1) Sample() (float64, error) {
	data, err := s.readFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	return ParseW1Slave(data)
}

// Name returns the sensor name.
func (s *W1) Name() string {
	return s.name
}

// Errors returns how many reads have failed.
func (s *W1) Errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

// LastUpdate returns when the last good reading was taken.
func (s *W1) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// ParseW1Slave decodes the two line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseW1Slave(data []byte) (float64, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) < 2 {
		return 0, ErrMalformed
	}
	if !bytes.HasSuffix(bytes.TrimSpace(lines[0]), []byte("YES")) {
		return 0, ErrCRC
	}

	i := bytes.LastIndex(lines[1], []byte("t="))
	if i < 0 {
		return 0, ErrMalformed
	}

	milli, err := strconv.ParseInt(string(bytes.TrimSpace(lines[1][i+2:])), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return float64(milli) / 1000, nil
}
