package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/feedback-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	State         string        `json:"state"`
	Readings      []ReadingJSON `json:"readings"`
	Sensors       []SensorJSON  `json:"sensors,omitempty"`
	Stats         *StatsJSON    `json:"stats,omitempty"`
	Alarm         AlarmJSON     `json:"alarm"`
	Control       ControlJSON   `json:"control"`
	LastPoll      string        `json:"last_poll,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ReadingJSON is one input reading.
type ReadingJSON struct {
	Name      string  `json:"name"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
}

// SensorJSON shows whether a sensor is still delivering. AgeSeconds is
// omitted until the first good reading.
type SensorJSON struct {
	Name       string `json:"name"`
	Errors     int    `json:"errors"`
	LastUpdate string `json:"last_update,omitempty"`
	AgeSeconds *int64 `json:"age_seconds,omitempty"`
}

// StatsJSON is the aggregate over the latest readings.
type StatsJSON struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	Max float64 `json:"max"`
}

// AlarmJSON reports the alarm configuration and state.
type AlarmJSON struct {
	Active      bool     `json:"active"`
	SinceMillis *uint32  `json:"since_millis,omitempty"`
	Low         *float64 `json:"low,omitempty"`
	High        *float64 `json:"high,omitempty"`
	GraceMs     int64    `json:"grace_ms"`
}

// ControlJSON reports the decision settings.
type ControlJSON struct {
	Setpoint              float64  `json:"setpoint"`
	Hysteresis            float64  `json:"hysteresis"`
	UpperBound            *float64 `json:"upper_bound,omitempty"`
	LowerBound            *float64 `json:"lower_bound,omitempty"`
	InverselyProportional bool     `json:"inversely_proportional"`
	PWMOutput             bool     `json:"pwm_output"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	OutputOn        int `json:"output_on"`
	OutputOff       int `json:"output_off"`
	AlarmRegistered int `json:"alarm_registered"`
	AlarmCleared    int `json:"alarm_cleared"`
	PollErrors      int `json:"poll_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ControlPeriodMs int64    `json:"control_period_ms"`
	HeartbeatMs     int64    `json:"heartbeat_ms"`
	Broker          string   `json:"broker,omitempty"`
	TopicPrefix     string   `json:"topic_prefix,omitempty"`
	HTTPAddr        string   `json:"http_addr"`
	Outputs         []string `json:"outputs"`
}

// StateLabel is ON or OFF once the controller has polled, UNKNOWN before.
func (s Snapshot) StateLabel() string {
	switch {
	case !s.Polled:
		return "UNKNOWN"
	case s.Controller.State:
		return "ON"
	default:
		return "OFF"
	}
}

func boundPtr(b logic.Bound) *float64 {
	if !b.IsSet {
		return nil
	}
	v := b.Value
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Controller
	set := c.Settings

	readings := make([]ReadingJSON, len(c.Readings))
	for i, r := range c.Readings {
		readings[i] = ReadingJSON{Name: r.Name, Parameter: string(r.ParameterCode), Value: r.Value}
	}

	inner := StatusInner{
		State:    snap.StateLabel(),
		Readings: readings,
		Alarm: AlarmJSON{
			Active:  c.AlarmActive,
			Low:     boundPtr(set.AlarmLow),
			High:    boundPtr(set.AlarmHigh),
			GraceMs: set.GracePeriod.Milliseconds(),
		},
		Control: ControlJSON{
			Setpoint:              set.Setpoint,
			Hysteresis:            set.Hysteresis,
			UpperBound:            boundPtr(set.UpperBound),
			LowerBound:            boundPtr(set.LowerBound),
			InverselyProportional: set.InverselyProportional,
			PWMOutput:             set.PWMOutput,
		},
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			OutputOn:        snap.Counts.OutputOn,
			OutputOff:       snap.Counts.OutputOff,
			AlarmRegistered: snap.Counts.AlarmRegistered,
			AlarmCleared:    snap.Counts.AlarmCleared,
			PollErrors:      snap.Counts.PollErrors,
		},
		Config: ConfigJSON{
			ControlPeriodMs: snap.Config.ControlPeriodMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			TopicPrefix:     snap.Config.TopicPrefix,
			HTTPAddr:        snap.Config.HTTPAddr,
			Outputs:         append([]string{}, snap.Config.Outputs...),
		},
	}

	if snap.Polled {
		inner.Stats = &StatsJSON{Min: c.Stats.Min, Avg: c.Stats.Avg, Max: c.Stats.Max}
		inner.LastPoll = snap.LastPoll.UTC().Format(time.RFC3339)
	}
	if c.AlarmActive {
		since := c.AlarmSince
		inner.Alarm.SinceMillis = &since
	}

	for _, h := range c.Sensors {
		sj := SensorJSON{Name: h.Name, Errors: h.Errors}
		if !h.LastUpdate.IsZero() {
			age := int64(snap.Now.Sub(h.LastUpdate).Truncate(time.Second).Seconds())
			sj.LastUpdate = h.LastUpdate.UTC().Format(time.RFC3339)
			sj.AgeSeconds = &age
		}
		inner.Sensors = append(inner.Sensors, sj)
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
