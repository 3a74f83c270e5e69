package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/feedback-controller/internal/config"
	"github.com/sweeney/feedback-controller/internal/logger"
	"github.com/sweeney/feedback-controller/internal/logic"
	"github.com/sweeney/feedback-controller/internal/metrics"
	"github.com/sweeney/feedback-controller/internal/mqtt"
	"github.com/sweeney/feedback-controller/internal/status"
	"github.com/sweeney/feedback-controller/internal/web"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop (default).",
	Long: `Polls the controller every control period, drives the relays, sounds the
alarm and publishes transitions until SIGINT or SIGTERM.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDaemon,
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := logger.WithName(cmd.Context(), "daemon")
	start := time.Now()

	var (
		publisher *mqtt.RealPublisher
		sub       mqtt.Subscriber
	)
	if cfg.MQTT != nil {
		publisher, err = openPublisher(cfg)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		sub = publisher
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

	m := metrics.New()
	tracker := status.NewTracker(start, trackerConfig(cfg, r.ctrl))

	if cfg.HTTPEnabled() {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(ctx, "http server error: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Infof(ctx, "http status server listening on %s", cfg.HTTPAddr)
	}

	d := &daemon{
		ctrl:      r.ctrl,
		sensors:   r.sensors,
		tracker:   tracker,
		metrics:   m,
		heartbeat: cfg.Heartbeat,
		now:       time.Now,
		network:   readNetworkInfo,
	}
	if publisher != nil {
		d.publisher = publisher
		d.mqttStatus = publisher
	}

	logger.InfoKV(ctx, "started",
		"inputs", len(cfg.Inputs.Sensors),
		"outputs", len(cfg.Outputs),
		"control_period", cfg.Controller.ControlPeriod,
		"setpoint", cfg.Setpoint,
		"hysteresis", cfg.Hysteresis,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.Controller.ControlPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.run(ctx, ticker.C, sigCh)
}

func openPublisher(cfg *config.Config) (*mqtt.RealPublisher, error) {
	return mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		BufferSize:  cfg.MQTT.BufferSize,
	})
}

func trackerConfig(cfg *config.Config, ctrl *logic.Controller) status.Config {
	sc := status.Config{
		ControlPeriodMs: cfg.Controller.ControlPeriod.Milliseconds(),
		HeartbeatMs:     cfg.Heartbeat.Milliseconds(),
		HTTPAddr:        cfg.HTTPAddr,
		Outputs:         ctrl.Outputs(),
	}
	if cfg.MQTT != nil {
		sc.Broker = cfg.MQTT.Broker
		sc.TopicPrefix = cfg.MQTT.TopicPrefix
	}
	return sc
}

// daemon owns the controller. Every controller call happens on the goroutine
// running run; HTTP readers only see the tracker.
type daemon struct {
	ctrl       *logic.Controller
	sensors    []logic.Sensor
	publisher  mqtt.Publisher        // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	heartbeat  time.Duration
	now        func() time.Time
	network    func() *status.NetworkInfo
}

// sensorStatus is implemented by sensors that track read failures and the
// time of their last good reading.
type sensorStatus interface {
	Errors() int
	LastUpdate() time.Time
}

func sensorHealth(sensors []logic.Sensor) []status.SensorHealth {
	var health []status.SensorHealth
	for _, s := range sensors {
		st, ok := s.(sensorStatus)
		if !ok {
			continue
		}
		health = append(health, status.SensorHealth{
			Name:       s.Name(),
			Errors:     st.Errors(),
			LastUpdate: st.LastUpdate(),
		})
	}
	return health
}

// run publishes STARTUP, polls on every tick and publishes SHUTDOWN when a
// signal arrives or ctx is cancelled.
func (d *daemon) run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	d.refreshConnectivity()
	d.metrics.ObserveSettings(d.ctrl.Settings())
	d.publishSystem(ctx, mqtt.EventStartup, "")

	for {
		select {
		case s := <-sig:
			logger.Infof(ctx, "received %v, shutting down", s)
			d.publishSystem(ctx, mqtt.EventShutdown, signalName(s))
			return nil

		case <-ctx.Done():
			logger.Infof(ctx, "context cancelled, shutting down")
			d.publishSystem(ctx, mqtt.EventShutdown, "CANCELLED")
			return nil

		case <-tick:
			d.step(ctx)
		}
	}
}

// step runs one control period.
func (d *daemon) step(ctx context.Context) {
	t := d.now()

	if err := d.ctrl.Poll(); err != nil {
		logger.Warnf(ctx, "poll: %v", err)
		d.tracker.RecordPollError(err)
		d.metrics.PollFailed()
	} else {
		took := d.now().Sub(t)
		since, active := d.ctrl.AlarmActiveSince()
		stats, _ := d.ctrl.Stats()
		readings := d.ctrl.Readings()
		health := sensorHealth(d.sensors)

		d.tracker.Update(status.Controller{
			State:       d.ctrl.State(),
			AlarmActive: active,
			AlarmSince:  since,
			Readings:    readings,
			Stats:       stats,
			Settings:    d.ctrl.Settings(),
			Sensors:     health,
		}, t)
		d.metrics.ObserveSensors(health, t)
		d.metrics.ObservePoll(readings, stats, d.ctrl.State(), active, took)
	}

	for _, e := range d.ctrl.TakeEvents() {
		logger.InfoKV(ctx, "event",
			"type", e.Type,
			"state", mqtt.StateLabel(e.State),
			"min", e.Stats.Min,
			"avg", e.Stats.Avg,
			"max", e.Stats.Max,
		)
		d.tracker.RecordEvent(e)
		d.metrics.ObserveEvent(e)

		if d.publisher == nil {
			continue
		}
		if err := d.publisher.Publish(t, e); err != nil {
			// Don't stop the loop on publish failure.
			logger.Warnf(ctx, "publish error: %v", err)
			d.metrics.PublishFailed()
		}
	}

	d.refreshConnectivity()

	if d.tracker.HeartbeatDue(t, d.heartbeat) {
		snap := d.tracker.Snapshot()
		logger.Infof(ctx, "heartbeat: uptime=%v state=%s on=%d off=%d alarms=%d",
			snap.Uptime().Truncate(time.Second), snap.StateLabel(),
			snap.Counts.OutputOn, snap.Counts.OutputOff, snap.Counts.AlarmRegistered)
		d.publishSystem(ctx, mqtt.EventHeartbeat, "")
	}
}

func (d *daemon) refreshConnectivity() {
	if d.network != nil {
		if info := d.network(); info != nil {
			d.tracker.SetNetwork(info)
		}
	}
	if d.mqttStatus != nil {
		up := d.mqttStatus.IsConnected()
		d.tracker.SetMQTTConnected(up)
		d.metrics.SetMQTTConnected(up)
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// STARTUP and SHUTDOWN are retained so late subscribers see the last one.
func (d *daemon) publishSystem(ctx context.Context, event, reason string) {
	if d.publisher == nil {
		return
	}

	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warnf(ctx, "failed to publish %s event: %v", event, err)
		return
	}
	logger.Debugf(ctx, "published %s event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
