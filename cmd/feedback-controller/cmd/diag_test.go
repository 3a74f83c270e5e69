package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/feedback-controller/internal/config"
	"github.com/sweeney/feedback-controller/internal/logic"
	"github.com/sweeney/feedback-controller/internal/sensor"
)

// readyTicks returns a channel holding n ticks.
func readyTicks(n int) <-chan time.Time {
	ch := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		ch <- time.Time{}
	}
	return ch
}

func TestDiagnoseInputs(t *testing.T) {
	t.Parallel()

	devs := newFakeDevices(sensor.NewFake("flow", 21.5, 22), sensor.NewFake("return", 20))
	r, err := assemble(context.Background(), boilerConfig(t), devs.hardware(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	var out bytes.Buffer
	require.NoError(t, diagnoseInputs(context.Background(), r.ctrl, &out, readyTicks(1), 2))

	require.Equal(t, "flow=21.50T return=21.50T\nflow=22.00T return=21.50T\n", out.String())
	require.Empty(t, r.ctrl.TakeEvents(), "no decision taken")
	for _, relay := range devs.relays {
		require.Equal(t, []bool{false}, relay.History(), "outputs untouched")
	}
}

func TestDiagnoseInputsNoInputs(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := diagnoseInputs(context.Background(), logic.New(logic.Config{}), &out, readyTicks(0), 1)
	require.ErrorIs(t, err, logic.ErrNoInputs)
	require.Empty(t, out.String())
}

func TestDiagnoseOutputsToggles(t *testing.T) {
	t.Parallel()

	devs := newFakeDevices(sensor.NewFake("flow", 50), sensor.NewFake("return", 50))
	r, err := assemble(context.Background(), boilerConfig(t), devs.hardware(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	var out bytes.Buffer
	require.NoError(t, diagnoseOutputs(context.Background(), r.ctrl, &out, readyTicks(2), 3))

	require.Equal(t, "burner,pump on\nburner,pump off\nburner,pump on\n", out.String())
	for _, relay := range devs.relays {
		// Defined, three steps, released on return.
		require.Equal(t, []bool{false, true, false, true, false}, relay.History())
	}
	require.False(t, r.ctrl.State(), "control state unchanged")
	require.Zero(t, devs.sensors["flow"].Reads(), "sensors not read")
}

func TestDiagnoseStopsOnCancel(t *testing.T) {
	t.Parallel()

	devs := newFakeDevices(sensor.NewFake("flow", 50), sensor.NewFake("return", 50))
	r, err := assemble(context.Background(), boilerConfig(t), devs.hardware(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, diagnoseOutputs(ctx, r.ctrl, &out, make(chan time.Time), 0))
	require.Equal(t, "burner,pump on\n", out.String(), "first step runs immediately")
	for _, relay := range devs.relays {
		require.False(t, relay.Energized())
	}
}

func TestUsesMQTTSensors(t *testing.T) {
	t.Parallel()

	cfg := boilerConfig(t)
	require.False(t, usesMQTTSensors(cfg))

	cfg.Inputs.Sensors = append(cfg.Inputs.Sensors, config.SensorConfig{Name: "outdoor", Kind: config.KindMQTT})
	require.True(t, usesMQTTSensors(cfg))
}

func TestFormatReadings(t *testing.T) {
	t.Parallel()

	got := formatReadings([]logic.InputReading{
		{Name: "flow", ParameterCode: 'T', Value: -3.456},
		{Name: "rh", ParameterCode: 'H', Value: 48},
	})
	require.Equal(t, "flow=-3.46T rh=48.00H", got)
}
