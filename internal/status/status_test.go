package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/feedback-controller/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedTracker(cfg Config, now time.Time) *Tracker {
	tr := NewTracker(start, cfg)
	tr.now = func() time.Time { return now }
	return tr
}

func sampleController() Controller {
	return Controller{
		State:       true,
		AlarmActive: true,
		AlarmSince:  61000,
		Readings: []logic.InputReading{
			{Name: "top", ParameterCode: 'T', Value: 57.5},
			{Name: "bottom", ParameterCode: 'T', Value: 56.5},
		},
		Stats: logic.Stats{Min: 56.5, Avg: 57, Max: 57.5},
		Settings: logic.Settings{
			Setpoint:    60,
			Hysteresis:  2,
			UpperBound:  logic.NewBound(80),
			AlarmLow:    logic.NewBound(2),
			AlarmHigh:   logic.NewBound(90),
			GracePeriod: 30 * time.Second,
		},
	}
}

func TestNewTracker(t *testing.T) {
	t.Parallel()

	outputs := []string{"burner"}
	tr := NewTracker(start, Config{ControlPeriodMs: 2000, HTTPAddr: ":8080", Outputs: outputs})
	outputs[0] = "changed"

	snap := tr.Snapshot()
	require.True(t, snap.StartTime.Equal(start))
	require.Equal(t, int64(2000), snap.Config.ControlPeriodMs)
	require.Equal(t, []string{"burner"}, snap.Config.Outputs, "config slice is copied")
	require.False(t, snap.Polled)
	require.False(t, snap.MQTTConnected)
	require.Equal(t, "UNKNOWN", snap.StateLabel())
}

func TestUpdateAndSnapshot(t *testing.T) {
	t.Parallel()

	tr := NewTracker(start, Config{})
	c := sampleController()
	at := start.Add(time.Minute)
	tr.RecordPollError(errors.New("no inputs configured"))
	tr.Update(c, at)

	c.Readings[0].Value = -1
	snap := tr.Snapshot()
	require.True(t, snap.Polled)
	require.Equal(t, at, snap.LastPoll)
	require.Empty(t, snap.LastError, "a good poll clears the last error")
	require.Equal(t, 1, snap.Counts.PollErrors)
	require.Equal(t, 57.5, snap.Controller.Readings[0].Value, "tracker keeps its own copy")
	require.Equal(t, "ON", snap.StateLabel())

	snap.Controller.Readings[1].Value = -1
	require.Equal(t, 56.5, tr.Snapshot().Controller.Readings[1].Value, "snapshot is a copy")
}

func TestRecordEvent(t *testing.T) {
	t.Parallel()

	tr := NewTracker(start, Config{})
	for _, typ := range []logic.EventType{
		logic.EventOutputOn, logic.EventOutputOff, logic.EventOutputOn,
		logic.EventAlarmRegistered, logic.EventAlarmCleared,
	} {
		tr.RecordEvent(logic.Event{Type: typ})
	}

	require.Equal(t, Counts{OutputOn: 2, OutputOff: 1, AlarmRegistered: 1, AlarmCleared: 1}, tr.Snapshot().Counts)
}

func TestRecordPollError(t *testing.T) {
	t.Parallel()

	tr := NewTracker(start, Config{})
	tr.RecordPollError(logic.ErrNoInputs)

	snap := tr.Snapshot()
	require.Equal(t, logic.ErrNoInputs.Error(), snap.LastError)
	require.Equal(t, 1, snap.Counts.PollErrors)
	require.False(t, snap.Polled)
}

func TestHeartbeatDue(t *testing.T) {
	t.Parallel()

	tr := NewTracker(start, Config{})
	require.False(t, tr.HeartbeatDue(start.Add(time.Hour), 0), "disabled")
	require.False(t, tr.HeartbeatDue(start.Add(14*time.Minute), 15*time.Minute))
	require.True(t, tr.HeartbeatDue(start.Add(15*time.Minute), 15*time.Minute))
	require.False(t, tr.HeartbeatDue(start.Add(16*time.Minute), 15*time.Minute), "interval restarts")
	require.True(t, tr.HeartbeatDue(start.Add(31*time.Minute), 15*time.Minute))
}

func TestSetMQTTConnectedAndNetwork(t *testing.T) {
	t.Parallel()

	tr := NewTracker(start, Config{})
	tr.SetMQTTConnected(true)
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.100", Status: "connected"})

	snap := tr.Snapshot()
	require.True(t, snap.MQTTConnected)
	require.NotNil(t, snap.Network)
	require.Equal(t, "192.168.1.100", snap.Network.IP)
}

func TestUptime(t *testing.T) {
	t.Parallel()

	tr := fixedTracker(Config{}, start.Add(90*time.Second))
	require.Equal(t, 90*time.Second, tr.Snapshot().Uptime())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	tr := NewTracker(start, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Update(sampleController(), start)
				tr.RecordEvent(logic.Event{Type: logic.EventOutputOn})
				tr.SetMQTTConnected(j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1000, tr.Snapshot().Counts.OutputOn)
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()

	tr := fixedTracker(Config{
		ControlPeriodMs: 2000,
		HeartbeatMs:     900000,
		Broker:          "tcp://192.168.1.200:1883",
		TopicPrefix:     "energy/boiler",
		HTTPAddr:        ":8080",
		Outputs:         []string{"burner", "pump"},
	}, start.Add(2*time.Minute))
	tr.Update(sampleController(), start.Add(time.Minute))
	tr.SetMQTTConnected(true)

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(tr.Snapshot()), &sj))

	s := sj.Status
	require.Empty(t, s.Event)
	require.Equal(t, "ON", s.State)
	require.Len(t, s.Readings, 2)
	require.Equal(t, ReadingJSON{Name: "top", Parameter: "T", Value: 57.5}, s.Readings[0])
	require.Equal(t, &StatsJSON{Min: 56.5, Avg: 57, Max: 57.5}, s.Stats)
	require.True(t, s.Alarm.Active)
	require.Equal(t, uint32(61000), *s.Alarm.SinceMillis)
	require.Equal(t, 90.0, *s.Alarm.High)
	require.Equal(t, int64(30000), s.Alarm.GraceMs)
	require.Equal(t, 80.0, *s.Control.UpperBound)
	require.Nil(t, s.Control.LowerBound, "unset bound is omitted")
	require.Equal(t, "2026-01-01T00:01:00Z", s.LastPoll)
	require.Equal(t, int64(120), s.UptimeSeconds)
	require.Equal(t, "2026-01-01T00:00:00Z", s.StartTime)
	require.True(t, s.MQTT.Connected)
	require.Equal(t, []string{"burner", "pump"}, s.Config.Outputs)
	require.Nil(t, s.Network)
}

func TestFormatJSONBeforeFirstPoll(t *testing.T) {
	t.Parallel()

	tr := fixedTracker(Config{}, start)
	data := FormatJSON(tr.Snapshot())

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	s := raw["status"]
	require.Equal(t, "UNKNOWN", s["state"])
	require.NotContains(t, s, "stats")
	require.NotContains(t, s, "last_poll")
	require.Equal(t, []any{}, s["readings"])
}

func TestFormatStatusEvent(t *testing.T) {
	t.Parallel()

	tr := fixedTracker(Config{}, start)
	tr.SetNetwork(&NetworkInfo{Type: "wifi", SSID: "plant"})

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &sj))
	require.Equal(t, "SHUTDOWN", sj.Status.Event)
	require.Equal(t, "SIGTERM", sj.Status.Reason)
	require.Equal(t, "plant", sj.Status.Network.SSID)
}

func TestFormatJSONSensorHealth(t *testing.T) {
	t.Parallel()

	tr := fixedTracker(Config{}, start.Add(2*time.Minute))
	c := sampleController()
	c.Sensors = []SensorHealth{
		{Name: "top", Errors: 3, LastUpdate: start.Add(90 * time.Second)},
		{Name: "return"},
	}
	tr.Update(c, start.Add(time.Minute))

	c.Sensors[0].Errors = 99
	require.Equal(t, 3, tr.Snapshot().Controller.Sensors[0].Errors, "tracker keeps its own copy")

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(tr.Snapshot()), &sj))

	sensors := sj.Status.Sensors
	require.Len(t, sensors, 2)
	require.Equal(t, "top", sensors[0].Name)
	require.Equal(t, 3, sensors[0].Errors)
	require.Equal(t, "2026-01-01T00:01:30Z", sensors[0].LastUpdate)
	require.Equal(t, int64(30), *sensors[0].AgeSeconds)
	require.Equal(t, SensorJSON{Name: "return"}, sensors[1], "a silent sensor has no age")
}
