package mqtt

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/feedback-controller/internal/logger"
)

// TopicSensor is a sensor fed by numeric payloads on a subscribed topic.
// Read returns the latest value received; until the first message it
// returns the configured initial value.
type TopicSensor struct {
	name  string
	topic string

	mu       sync.RWMutex
	value    float64
	received time.Time
	errs     int
	now      func() time.Time
}

// NewTopicSensor subscribes to topic on sub. initial stands in for the
// reading until the first valid message arrives.
func NewTopicSensor(name, topic string, initial float64, sub Subscriber) (*TopicSensor, error) {
	s := &TopicSensor{name: name, topic: topic, value: initial, now: time.Now}
	if err := sub.Subscribe(topic, s.handle); err != nil {
		return nil, err
	}
	return s, nil
}

// Read returns the latest received value.
func (s *TopicSensor) Read() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Name returns the sensor name.
func (s *TopicSensor) Name() string {
	return s.name
}

// LastUpdate returns when the last valid payload arrived, zero if never.
func (s *TopicSensor) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}

// Errors returns how many payloads were rejected.
func (s *TopicSensor) Errors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errs
}

// handle accepts a bare number ("21.5"). Anything else is logged and the
// previous value kept.
func (s *TopicSensor) handle(payload []byte) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.errs++
		logger.Named("mqtt").Warnf("sensor %s: bad payload on %s: %q", s.name, s.topic, payload)
		return
	}
	s.value = v
	s.received = s.now()
}
