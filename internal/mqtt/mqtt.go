// Package mqtt provides MQTT publishing and subscription with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/feedback-controller/internal/logic"
)

// Topic suffixes under the configured prefix.
const (
	suffixEvents = "/events"
	suffixSystem = "/system"
)

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Topics are the topics a controller publishes to.
type Topics struct {
	// Events carries output transitions and alarm episodes.
	Events string
	// System carries lifecycle events and the retained last will.
	System string
}

// NewTopics derives the topic set from prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Events: prefix + suffixEvents,
		System: prefix + suffixSystem,
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event observed at the given wall time.
	// Returns error if publishing fails (should not crash the process).
	Publish(at time.Time, event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers payloads published on a topic.
type Subscriber interface {
	// Subscribe registers handle for topic. The subscription survives
	// reconnects.
	Subscribe(topic string, handle func(payload []byte)) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message for a controller event.
type Payload struct {
	Controller ControllerPayload `json:"controller"`
}

// ControllerPayload contains the controller event details.
type ControllerPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	State     string  `json:"state"`
	Millis    uint32  `json:"millis"`
	Min       float64 `json:"min"`
	Avg       float64 `json:"avg"`
	Max       float64 `json:"max"`
}

// StateLabel renders a control state the way payloads and logs show it.
func StateLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(at time.Time, event logic.Event) ([]byte, error) {
	payload := Payload{
		Controller: ControllerPayload{
			Timestamp: at.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     StateLabel(event.State),
			Millis:    event.Millis,
			Min:       event.Stats.Min,
			Avg:       event.Stats.Avg,
			Max:       event.Stats.Max,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message for simple system events (LWT,
// RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the retained last will published by the broker when the
// connection drops without a clean disconnect.
func WillPayload() []byte {
	payload, _ := FormatSystemPayload(SystemEvent{Event: EventOffline, Reason: "connection lost"})
	return payload
}
