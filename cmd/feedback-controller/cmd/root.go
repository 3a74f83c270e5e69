// Package cmd implements the feedback-controller command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/feedback-controller/internal/config"
	"github.com/sweeney/feedback-controller/internal/logger"
	"github.com/sweeney/feedback-controller/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// logLevel overrides the configured log level when set.
	logLevel string

	// rootCmd runs the control loop when called without a subcommand.
	rootCmd = &cobra.Command{
		Use:   "feedback-controller",
		Short: "Hysteresis controller for relay outputs.",
		Long: `Reads a set of sensors, averages them and switches every configured relay
on or off around a setpoint with a hysteresis dead band. Hard upper and lower
bounds override the dead band, and an optional alarm pulses a buzzer once the
readings have stayed outside the alarm thresholds for a grace period.

Transitions and lifecycle events are published to MQTT, and the current state
is served over HTTP as HTML, JSON and Prometheus metrics.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runDaemon,
	}
)

// Execute runs the feedback-controller CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(runCmd, diagInputCmd, diagOutputCmd)
}

// loadConfig reads the configuration and applies the effective log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := applyLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyLogLevel(name string) error {
	lvl, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	logger.SetLevel(lvl)
	return nil
}
