// Package config loads the device configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor kinds.
const (
	KindW1   = "w1"
	KindMQTT = "mqtt"
)

const (
	// DefaultConfigFilename is used when no path is given.
	DefaultConfigFilename = "feedback-controller.yaml"

	DefaultControlPeriod  = 2 * time.Second
	DefaultParameterCode  = "T"
	DefaultGPIOChip       = "gpiochip0"
	DefaultBuzzerPulse    = 100 * time.Millisecond
	DefaultClientID       = "feedback-controller"
	DefaultTopicPrefix    = "feedback-controller"
	DefaultBufferSize     = 100
	DefaultHTTPAddr       = ":8080"
	DefaultHeartbeat      = 15 * time.Minute
	DefaultFilePermission = 0o600
)

var (
	errConfigIsNotSet = errors.New("configuration is not set")

	ErrNoSensors          = errors.New("at least one sensor must be configured")
	ErrParameterCode      = errors.New("parameter code must be a single ASCII character")
	ErrSensorKind         = errors.New("unknown sensor kind")
	ErrSensorName         = errors.New("sensor name must be provided")
	ErrSensorSource       = errors.New("sensor source must be provided")
	ErrSensorInitial      = errors.New("mqtt sensors need an initial value")
	ErrOutputName         = errors.New("output name must be provided")
	ErrNegativeHysteresis = errors.New("hysteresis must not be negative")
	ErrBoundRange         = errors.New("lower bound must not exceed upper bound")
	ErrAlarmRange         = errors.New("alarm low must not exceed alarm high")
	ErrMQTTRequired       = errors.New("mqtt sensors need an mqtt section")
)

// Config is the whole device configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Setpoint   float64          `yaml:"setpoint"`
	Hysteresis float64          `yaml:"hysteresis"`
	// UpperBound and LowerBound are optional hard control limits.
	UpperBound *float64       `yaml:"upper_bound,omitempty"`
	LowerBound *float64       `yaml:"lower_bound,omitempty"`
	Alarm      *AlarmConfig   `yaml:"alarm,omitempty"`
	Inputs     InputsConfig   `yaml:"inputs"`
	Outputs    []OutputConfig `yaml:"outputs,omitempty"`
	Buzzer     *BuzzerConfig  `yaml:"buzzer,omitempty"`
	MQTT       *MQTTConfig    `yaml:"mqtt,omitempty"`
	// HTTPAddr is the status server address; "off" disables it.
	HTTPAddr string `yaml:"http_addr"`
	// Heartbeat is the MQTT heartbeat interval; zero uses the default.
	Heartbeat time.Duration `yaml:"heartbeat"`
	LogLevel  string        `yaml:"log_level"`
}

// ControllerConfig holds the flags fixed when the controller is built.
type ControllerConfig struct {
	InverselyProportional bool          `yaml:"inversely_proportional"`
	PWMOutput             bool          `yaml:"pwm_output"`
	ControlPeriod         time.Duration `yaml:"control_period"`
}

// AlarmConfig arms the audible alarm.
type AlarmConfig struct {
	Low         float64       `yaml:"low"`
	High        float64       `yaml:"high"`
	GracePeriod time.Duration `yaml:"grace_period"`
}

// InputsConfig lists the sensors. They share one parameter code.
type InputsConfig struct {
	ParameterCode string         `yaml:"parameter_code"`
	Sensors       []SensorConfig `yaml:"sensors"`
}

// SensorConfig describes one sensor.
type SensorConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Path is the sysfs w1_slave file for w1 sensors.
	Path string `yaml:"path,omitempty"`
	// Topic is the subscribed topic for mqtt sensors.
	Topic string `yaml:"topic,omitempty"`
	// Initial is the reading an mqtt sensor reports until its first message.
	Initial           *float64 `yaml:"initial,omitempty"`
	CalibrationOffset float64  `yaml:"calibration_offset,omitempty"`
}

// OutputConfig describes one relay on a GPIO line.
type OutputConfig struct {
	Name      string `yaml:"name"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low,omitempty"`
}

// BuzzerConfig describes the buzzer GPIO line.
type BuzzerConfig struct {
	Chip  string        `yaml:"chip"`
	Line  int           `yaml:"line"`
	Pulse time.Duration `yaml:"pulse"`
}

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`
}

// ParameterCode returns the configured parameter code as a byte.
func (c *Config) ParameterCode() byte {
	return c.Inputs.ParameterCode[0]
}

// HTTPEnabled reports whether the status server should run.
func (c *Config) HTTPEnabled() bool {
	return c.HTTPAddr != "off"
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermission); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if len(cfg.Inputs.ParameterCode) != 1 || cfg.Inputs.ParameterCode[0] > 0x7f {
		return fmt.Errorf("%w: %q", ErrParameterCode, cfg.Inputs.ParameterCode)
	}

	if len(cfg.Inputs.Sensors) == 0 {
		return ErrNoSensors
	}

	for i, s := range cfg.Inputs.Sensors {
		if err := validateSensor(cfg, s); err != nil {
			return fmt.Errorf("sensor %d: %w", i, err)
		}
	}

	for i, o := range cfg.Outputs {
		if o.Name == "" {
			return fmt.Errorf("output %d: %w", i, ErrOutputName)
		}
	}

	if cfg.Hysteresis < 0 {
		return ErrNegativeHysteresis
	}

	if cfg.UpperBound != nil && cfg.LowerBound != nil && *cfg.LowerBound > *cfg.UpperBound {
		return ErrBoundRange
	}

	if cfg.Alarm != nil && cfg.Alarm.Low > cfg.Alarm.High {
		return ErrAlarmRange
	}

	return nil
}

func validateSensor(cfg *Config, s SensorConfig) error {
	if s.Name == "" {
		return ErrSensorName
	}

	switch s.Kind {
	case KindW1:
		if s.Path == "" {
			return ErrSensorSource
		}
	case KindMQTT:
		if s.Topic == "" {
			return ErrSensorSource
		}
		if s.Initial == nil {
			return ErrSensorInitial
		}
		if cfg.MQTT == nil {
			return ErrMQTTRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrSensorKind, s.Kind)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Controller.ControlPeriod <= 0 {
		cfg.Controller.ControlPeriod = DefaultControlPeriod
	}

	if cfg.Inputs.ParameterCode == "" {
		cfg.Inputs.ParameterCode = DefaultParameterCode
	}

	for i := range cfg.Outputs {
		if cfg.Outputs[i].Chip == "" {
			cfg.Outputs[i].Chip = DefaultGPIOChip
		}
	}

	if cfg.Buzzer != nil {
		if cfg.Buzzer.Chip == "" {
			cfg.Buzzer.Chip = DefaultGPIOChip
		}
		if cfg.Buzzer.Pulse <= 0 {
			cfg.Buzzer.Pulse = DefaultBuzzerPulse
		}
	}

	if cfg.MQTT != nil {
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = DefaultClientID
		}
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = DefaultTopicPrefix
		}
		if cfg.MQTT.BufferSize <= 0 {
			cfg.MQTT.BufferSize = DefaultBufferSize
		}
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}

	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
