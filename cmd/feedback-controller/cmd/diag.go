package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/feedback-controller/internal/config"
	"github.com/sweeney/feedback-controller/internal/logger"
	"github.com/sweeney/feedback-controller/internal/logic"
	"github.com/sweeney/feedback-controller/internal/mqtt"
)

var (
	// diagInterval is the pause between diagnostic steps; zero uses the
	// configured control period.
	diagInterval time.Duration
	// diagCount limits the number of steps; zero runs until interrupted.
	diagCount int

	diagInputCmd = &cobra.Command{
		Use:   "diag-input",
		Short: "Print sensor readings without driving any output.",
		Long: `Reads every configured sensor, applies the calibration offsets and prints
one line of values per step. Outputs, the alarm and MQTT publishing are left
alone.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiag(cmd, diagnoseInputs)
		},
	}

	diagOutputCmd = &cobra.Command{
		Use:   "diag-output",
		Short: "Toggle every output on and off.",
		Long: `Energizes and de-energizes every configured relay on alternate steps so the
wiring can be checked. Sensors are not read and no decision is taken.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiag(cmd, diagnoseOutputs)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	for _, c := range []*cobra.Command{diagInputCmd, diagOutputCmd} {
		c.Flags().DurationVar(&diagInterval, "interval", 0, "pause between steps (default: control period)")
		c.Flags().IntVar(&diagCount, "count", 0, "number of steps, 0 runs until interrupted")
	}
}

type diagFunc func(ctx context.Context, ctrl *logic.Controller, w io.Writer, tick <-chan time.Time, count int) error

func runDiag(cmd *cobra.Command, diag diagFunc) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithName(ctx, cmd.Name())

	// Diagnostics never publish, but MQTT sensors still need a subscriber.
	var sub mqtt.Subscriber
	if usesMQTTSensors(cfg) {
		p, err := openPublisher(cfg)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		sub = p
	}

	r, err := assemble(ctx, cfg, realHardware(), sub)
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warnf(ctx, "release hardware: %v", err)
		}
	}()

	interval := diagInterval
	if interval <= 0 {
		interval = cfg.Controller.ControlPeriod
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	return diag(ctx, r.ctrl, os.Stdout, ticker.C, diagCount)
}

func usesMQTTSensors(cfg *config.Config) bool {
	for _, s := range cfg.Inputs.Sensors {
		if s.Kind == config.KindMQTT {
			return true
		}
	}
	return false
}

// diagnoseInputs prints one line of calibrated readings per step. The first
// step runs immediately.
func diagnoseInputs(ctx context.Context, ctrl *logic.Controller, w io.Writer, tick <-chan time.Time, count int) error {
	return steps(ctx, tick, count, func(int) error {
		readings, err := ctrl.DiagnoseInputs()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, formatReadings(readings))
		return err
	})
}

// diagnoseOutputs energizes every output on even steps and releases them on
// odd steps. Outputs are left de-energized on return.
func diagnoseOutputs(ctx context.Context, ctrl *logic.Controller, w io.Writer, tick <-chan time.Time, count int) error {
	defer ctrl.DiagnoseOutputs(false)

	names := strings.Join(ctrl.Outputs(), ",")
	return steps(ctx, tick, count, func(i int) error {
		on := i%2 == 0
		ctrl.DiagnoseOutputs(on)
		_, err := fmt.Fprintf(w, "%s %s\n", names, onOff(on))
		return err
	})
}

func steps(ctx context.Context, tick <-chan time.Time, count int, step func(i int) error) error {
	for i := 0; count <= 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
		if err := step(i); err != nil {
			return err
		}
	}
	return nil
}

func formatReadings(readings []logic.InputReading) string {
	fields := make([]string, len(readings))
	for i, r := range readings {
		fields[i] = fmt.Sprintf("%s=%s%c", r.Name, strconv.FormatFloat(r.Value, 'f', 2, 64), r.ParameterCode)
	}
	return strings.Join(fields, " ")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
