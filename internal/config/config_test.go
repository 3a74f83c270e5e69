package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
setpoint: 21
hysteresis: 0.5
inputs:
  sensors:
    - name: room
      kind: w1
      path: /sys/bus/w1/devices/28-1/w1_slave
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadExample(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join("..", "..", "feedback-controller.example.yaml"))
	require.NoError(t, err)

	require.Equal(t, 2*time.Second, cfg.Controller.ControlPeriod)
	require.InDelta(t, 60, cfg.Setpoint, 1e-9)
	require.InDelta(t, 2, cfg.Hysteresis, 1e-9)
	require.NotNil(t, cfg.UpperBound)
	require.InDelta(t, 80, *cfg.UpperBound, 1e-9)
	require.NotNil(t, cfg.Alarm)
	require.Equal(t, 30*time.Second, cfg.Alarm.GracePeriod)
	require.Equal(t, byte('T'), cfg.ParameterCode())
	require.Len(t, cfg.Inputs.Sensors, 3)
	require.InDelta(t, -0.5, cfg.Inputs.Sensors[1].CalibrationOffset, 1e-9)
	require.Equal(t, KindMQTT, cfg.Inputs.Sensors[2].Kind)
	require.NotNil(t, cfg.Inputs.Sensors[2].Initial)
	require.InDelta(t, 55, *cfg.Inputs.Sensors[2].Initial, 1e-9)
	require.Len(t, cfg.Outputs, 2)
	require.Equal(t, DefaultGPIOChip, cfg.Outputs[1].Chip)
	require.True(t, cfg.Outputs[1].ActiveLow)
	require.Equal(t, DefaultGPIOChip, cfg.Buzzer.Chip)
	require.Equal(t, "energy/boiler", cfg.MQTT.TopicPrefix)
	require.Equal(t, 15*time.Minute, cfg.Heartbeat)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, DefaultControlPeriod, cfg.Controller.ControlPeriod)
	require.Equal(t, DefaultParameterCode, cfg.Inputs.ParameterCode)
	require.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	require.Equal(t, DefaultHeartbeat, cfg.Heartbeat)
	require.Equal(t, "info", cfg.LogLevel)
	require.Nil(t, cfg.UpperBound)
	require.Nil(t, cfg.LowerBound)
	require.Nil(t, cfg.Alarm)
	require.Nil(t, cfg.MQTT)
	require.True(t, cfg.HTTPEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "setpoint: [1, 2"))
	require.ErrorContains(t, err, "unmarshal config")
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Inputs: InputsConfig{Sensors: []SensorConfig{{Name: "a", Kind: KindW1, Path: "/x"}}},
		}
	}
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no sensors", func(c *Config) { c.Inputs.Sensors = nil }, ErrNoSensors},
		{"long parameter code", func(c *Config) { c.Inputs.ParameterCode = "TH" }, ErrParameterCode},
		{"unknown kind", func(c *Config) { c.Inputs.Sensors[0].Kind = "dht" }, ErrSensorKind},
		{"no sensor name", func(c *Config) { c.Inputs.Sensors[0].Name = "" }, ErrSensorName},
		{"no w1 path", func(c *Config) { c.Inputs.Sensors[0].Path = "" }, ErrSensorSource},
		{"mqtt without section", func(c *Config) {
			c.Inputs.Sensors[0] = SensorConfig{Name: "a", Kind: KindMQTT, Topic: "t", Initial: f(20)}
		}, ErrMQTTRequired},
		{"mqtt without topic", func(c *Config) {
			c.MQTT = &MQTTConfig{Broker: "tcp://b:1883"}
			c.Inputs.Sensors[0] = SensorConfig{Name: "a", Kind: KindMQTT, Initial: f(20)}
		}, ErrSensorSource},
		{"mqtt without initial value", func(c *Config) {
			c.MQTT = &MQTTConfig{Broker: "tcp://b:1883"}
			c.Inputs.Sensors[0] = SensorConfig{Name: "a", Kind: KindMQTT, Topic: "t"}
		}, ErrSensorInitial},
		{"no output name", func(c *Config) { c.Outputs = []OutputConfig{{Line: 4}} }, ErrOutputName},
		{"negative hysteresis", func(c *Config) { c.Hysteresis = -1 }, ErrNegativeHysteresis},
		{"crossed bounds", func(c *Config) { c.LowerBound, c.UpperBound = f(50), f(40) }, ErrBoundRange},
		{"crossed alarm", func(c *Config) { c.Alarm = &AlarmConfig{Low: 30, High: 10} }, ErrAlarmRange},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			tt.mutate(cfg)
			require.ErrorIs(t, Validate(cfg), tt.want)
		})
	}

	require.Error(t, Validate(nil))
}

func TestValidateAcceptsEqualThresholds(t *testing.T) {
	t.Parallel()

	v := 40.0
	cfg := &Config{
		LowerBound: &v,
		UpperBound: &v,
		Alarm:      &AlarmConfig{Low: 10, High: 10},
		Inputs:     InputsConfig{Sensors: []SensorConfig{{Name: "a", Kind: KindW1, Path: "/x"}}},
	}
	require.NoError(t, Validate(cfg))
}

func TestValidateMQTTDefaults(t *testing.T) {
	t.Parallel()

	initial := 20.0
	cfg := &Config{
		MQTT:   &MQTTConfig{Broker: "tcp://b:1883"},
		Buzzer: &BuzzerConfig{Line: 5},
		Inputs: InputsConfig{Sensors: []SensorConfig{{Name: "a", Kind: KindMQTT, Topic: "t", Initial: &initial}}},
	}
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultClientID, cfg.MQTT.ClientID)
	require.Equal(t, DefaultTopicPrefix, cfg.MQTT.TopicPrefix)
	require.Equal(t, DefaultBufferSize, cfg.MQTT.BufferSize)
	require.Equal(t, DefaultBuzzerPulse, cfg.Buzzer.Pulse)
	require.Equal(t, DefaultGPIOChip, cfg.Buzzer.Chip)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	upper := 25.0
	cfg := &Config{
		Setpoint:   21,
		Hysteresis: 0.5,
		UpperBound: &upper,
		Alarm:      &AlarmConfig{Low: 5, High: 30, GracePeriod: time.Minute},
		Inputs:     InputsConfig{Sensors: []SensorConfig{{Name: "a", Kind: KindW1, Path: "/x"}}},
		HTTPAddr:   "off",
	}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
	require.False(t, loaded.HTTPEnabled())

	require.Error(t, Save(path, nil))
}
