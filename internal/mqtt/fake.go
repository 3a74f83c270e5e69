package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/feedback-controller/internal/logic"
)

// PublishedEvent is a controller event recorded by FakePublisher.
type PublishedEvent struct {
	At    time.Time
	Event logic.Event
}

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all controller events that were published.
	Events []PublishedEvent

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	subs map[string]func([]byte)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{subs: make(map[string]func([]byte))}
}

// Publish records the controller event.
func (f *FakePublisher) Publish(at time.Time, event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(at, event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, PublishedEvent{At: at, Event: event})
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Subscribe records handle so Deliver can feed it.
func (f *FakePublisher) Subscribe(topic string, handle func(payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handle
	return nil
}

// Deliver hands payload to the handler subscribed to topic.
// It reports false if nothing is subscribed.
func (f *FakePublisher) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.subs[topic]
	f.mu.Unlock()

	if ok {
		h(payload)
	}
	return ok
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SetConnected changes the value IsConnected reports.
func (f *FakePublisher) SetConnected(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = up
}

// EventTypes returns the types of the recorded controller events in order.
func (f *FakePublisher) EventTypes() []logic.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()

	types := make([]logic.EventType, len(f.Events))
	for i, e := range f.Events {
		types[i] = e.Event.Type
	}
	return types
}

// SystemEventNames returns the names of the recorded system events in order.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
