package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/sweeney/feedback-controller/internal/clock"
	"github.com/sweeney/feedback-controller/internal/config"
	"github.com/sweeney/feedback-controller/internal/gpio"
	"github.com/sweeney/feedback-controller/internal/logger"
	"github.com/sweeney/feedback-controller/internal/logic"
	"github.com/sweeney/feedback-controller/internal/mqtt"
	"github.com/sweeney/feedback-controller/internal/sensor"
)

var errNoSubscriber = errors.New("mqtt sensors configured but mqtt is disabled")

// hardware opens devices. Tests swap in fakes.
type hardware struct {
	newRelay  func(gpio.OutputSpec) (gpio.Output, error)
	newBuzzer func(gpio.BuzzerSpec) (gpio.Signaler, error)
	newW1     func(name, path string) (logic.Sensor, error)
	clock     logic.Clock
}

func realHardware() hardware {
	return hardware{
		newRelay: func(spec gpio.OutputSpec) (gpio.Output, error) {
			r, err := gpio.NewRelay(spec)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		newBuzzer: func(spec gpio.BuzzerSpec) (gpio.Signaler, error) {
			b, err := gpio.NewBuzzer(spec)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		newW1: func(name, path string) (logic.Sensor, error) {
			s, err := sensor.NewW1(name, path)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		clock: clock.New(),
	}
}

// rig is a controller wired to its devices.
type rig struct {
	ctrl    *logic.Controller
	sensors []logic.Sensor
	outputs []gpio.Output
	buzzer  gpio.Signaler
}

// Close releases every device the rig opened.
func (r *rig) Close() error {
	var err error
	for _, o := range r.outputs {
		err = multierr.Append(err, o.Close())
	}
	if r.buzzer != nil {
		err = multierr.Append(err, r.buzzer.Close())
	}
	return err
}

// assemble builds a controller from cfg. sub may be nil when MQTT is
// disabled. Settings are applied before the inputs exist so no decision is
// taken on a half-applied configuration.
func assemble(ctx context.Context, cfg *config.Config, hw hardware, sub mqtt.Subscriber) (_ *rig, err error) {
	ctrl := logic.New(
		logic.Config{
			InverselyProportional: cfg.Controller.InverselyProportional,
			PWMOutput:             cfg.Controller.PWMOutput,
			ControlPeriod:         cfg.Controller.ControlPeriod,
		},
		logic.WithClock(hw.clock),
		logic.WithLogSink(logger.Sink(logger.FromContext(ctx).Named("controller"))),
	)
	r := &rig{ctrl: ctrl}
	defer func() {
		if err != nil {
			err = multierr.Append(err, r.Close())
		}
	}()

	if err := applySettings(ctrl, cfg); err != nil {
		return nil, err
	}

	if cfg.Buzzer != nil {
		b, err := hw.newBuzzer(gpio.BuzzerSpec{Chip: cfg.Buzzer.Chip, Line: cfg.Buzzer.Line, Pulse: cfg.Buzzer.Pulse})
		if err != nil {
			return nil, fmt.Errorf("open buzzer: %w", err)
		}
		r.buzzer = b
		ctrl.SetBuzzer(b)
	}

	sensors := make([]logic.Sensor, 0, len(cfg.Inputs.Sensors))
	offsets := make([]float64, 0, len(cfg.Inputs.Sensors))
	for _, sc := range cfg.Inputs.Sensors {
		s, err := openSensor(sc, hw, sub)
		if err != nil {
			return nil, fmt.Errorf("open sensor %s: %w", sc.Name, err)
		}
		sensors = append(sensors, s)
		offsets = append(offsets, sc.CalibrationOffset)
	}
	if err := ctrl.DefineInputs(sensors, offsets, cfg.ParameterCode()); err != nil {
		return nil, err
	}
	r.sensors = sensors

	devices := make([]logic.OutputDevice, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		o, err := hw.newRelay(gpio.OutputSpec{Name: oc.Name, Chip: oc.Chip, Line: oc.Line, ActiveLow: oc.ActiveLow})
		if err != nil {
			return nil, fmt.Errorf("open output %s: %w", oc.Name, err)
		}
		r.outputs = append(r.outputs, o)
		devices = append(devices, o)
	}
	ctrl.DefineOutputs(devices)

	return r, nil
}

func openSensor(sc config.SensorConfig, hw hardware, sub mqtt.Subscriber) (logic.Sensor, error) {
	switch sc.Kind {
	case config.KindW1:
		return hw.newW1(sc.Name, sc.Path)
	case config.KindMQTT:
		if sub == nil {
			return nil, errNoSubscriber
		}
		if sc.Initial == nil {
			return nil, config.ErrSensorInitial
		}
		s, err := mqtt.NewTopicSensor(sc.Name, sc.Topic, *sc.Initial, sub)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrSensorKind, sc.Kind)
	}
}

// applySettings pushes the decision settings into ctrl. Each setter polls;
// with no inputs defined yet that poll reports ErrNoInputs, which is expected.
func applySettings(ctrl *logic.Controller, cfg *config.Config) error {
	setters := []func() error{
		func() error { return ctrl.SetSetpoint(cfg.Setpoint) },
		func() error { return ctrl.SetHysteresis(cfg.Hysteresis) },
	}
	if cfg.UpperBound != nil {
		setters = append(setters, func() error { return ctrl.SetUpperBound(*cfg.UpperBound) })
	}
	if cfg.LowerBound != nil {
		setters = append(setters, func() error { return ctrl.SetLowerBound(*cfg.LowerBound) })
	}

	for _, set := range setters {
		if err := set(); err != nil && !errors.Is(err, logic.ErrNoInputs) {
			return err
		}
	}

	if cfg.Alarm != nil {
		ctrl.SetAlarm(cfg.Alarm.Low, cfg.Alarm.High, cfg.Alarm.GracePeriod)
	}
	return nil
}
