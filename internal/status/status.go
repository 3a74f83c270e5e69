// Package status provides a thread-safe status tracker for the controller daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/feedback-controller/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	ControlPeriodMs int64
	HeartbeatMs     int64
	Broker          string
	TopicPrefix     string
	HTTPAddr        string
	Outputs         []string
}

// Counts are the transitions seen since startup.
type Counts struct {
	OutputOn        int
	OutputOff       int
	AlarmRegistered int
	AlarmCleared    int
	PollErrors      int
}

// Record counts one controller event.
func (c *Counts) Record(e logic.Event) {
	switch e.Type {
	case logic.EventOutputOn:
		c.OutputOn++
	case logic.EventOutputOff:
		c.OutputOff++
	case logic.EventAlarmRegistered:
		c.AlarmRegistered++
	case logic.EventAlarmCleared:
		c.AlarmCleared++
	}
}

// SensorHealth reports how readings are arriving from one sensor.
type SensorHealth struct {
	Name string
	// Errors counts failed reads or rejected payloads.
	Errors int
	// LastUpdate is the time of the last good reading, zero if never.
	LastUpdate time.Time
}

// Controller is the controller state after a successful poll.
type Controller struct {
	State       bool
	AlarmActive bool
	AlarmSince  uint32
	Readings    []logic.InputReading
	Stats       logic.Stats
	Settings    logic.Settings
	Sensors     []SensorHealth
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Controller Controller
	// Polled is false until the first successful poll.
	Polled        bool
	LastPoll      time.Time
	LastError     string
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu            sync.RWMutex
	snap          Snapshot
	lastHeartbeat time.Time
	now           func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	cfg.Outputs = append([]string(nil), cfg.Outputs...)
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		lastHeartbeat: startTime,
		now:           time.Now,
	}
}

// Update records the controller state after a successful poll at.
// Called by the daemon on every tick.
func (t *Tracker) Update(c Controller, at time.Time) {
	c.Readings = append([]logic.InputReading(nil), c.Readings...)
	c.Sensors = append([]SensorHealth(nil), c.Sensors...)

	t.mu.Lock()
	t.snap.Controller = c
	t.snap.Polled = true
	t.snap.LastPoll = at
	t.snap.LastError = ""
	t.mu.Unlock()
}

// RecordEvent counts a controller event.
func (t *Tracker) RecordEvent(e logic.Event) {
	t.mu.Lock()
	t.snap.Counts.Record(e)
	t.mu.Unlock()
}

// RecordPollError keeps the last poll failure for display.
func (t *Tracker) RecordPollError(err error) {
	t.mu.Lock()
	t.snap.Counts.PollErrors++
	t.snap.LastError = err.Error()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// HeartbeatDue reports whether interval has passed since the last heartbeat
// (or startup) and, if so, restarts the interval at now. A zero interval
// disables heartbeats.
func (t *Tracker) HeartbeatDue(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastHeartbeat) < interval {
		return false
	}
	t.lastHeartbeat = now
	return true
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	s.Controller.Readings = append([]logic.InputReading(nil), s.Controller.Readings...)
	s.Controller.Sensors = append([]SensorHealth(nil), s.Controller.Sensors...)
	s.Now = t.now()
	return s
}
