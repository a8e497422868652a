// Package main implements the robotic test bench backend entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/robotic-testing/rtb/internal/api"
	"github.com/robotic-testing/rtb/internal/audit"
	"github.com/robotic-testing/rtb/internal/config"
	"github.com/robotic-testing/rtb/internal/egress"
	"github.com/robotic-testing/rtb/internal/hub"
	"github.com/robotic-testing/rtb/internal/ingest"
	"github.com/robotic-testing/rtb/internal/metrics"
	"github.com/robotic-testing/rtb/internal/sensor"
	"github.com/robotic-testing/rtb/internal/session"
	"github.com/robotic-testing/rtb/internal/validate"
)

const Version = "1.0.0"

func main() {
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.Kitchen,
	}))
	log.Info("Starting robotic test bench backend", "version", Version)

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded")

	m := metrics.New()

	broadcastHub := hub.NewHub(log, m)
	log.Info("Broadcast hub initialized")

	auditLogger, err := audit.NewLogger(cfg.Audit.Dir, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups)
	if err != nil {
		log.Error("Failed to initialize audit logger", "error", err)
		os.Exit(1)
	}
	log.Info("Audit logger initialized", "path", auditLogger.FilePath())

	store := session.NewStore(cfg.Session.MaxPoints, time.Now)
	validator := validate.NewValidator(validate.Thresholds{
		ForceHigh:   cfg.Validation.ForceHighThreshold,
		Motor:       cfg.Validation.MotorThreshold,
		SpikeDelta:  cfg.Validation.SpikeDelta,
		HistorySize: cfg.Validation.HistorySize,
	})

	coordinator := ingest.NewCoordinator(store, validator, broadcastHub, log,
		ingest.WithQueueSize(cfg.Ingest.QueueSize),
		ingest.WithMetrics(m),
	)
	coordinator.SetAuditLogger(auditLogger)

	sensors := sensor.NewManager(sensor.Rates{
		ForceHz:  cfg.Sensors.ForceHz,
		MotorHz:  cfg.Sensors.MotorHz,
		CameraHz: cfg.Sensors.CameraHz,
	}, coordinator.Ingest, log, sensor.WithStopTimeout(cfg.Sensors.StopTimeout))
	coordinator.SetSensorControl(sensors)
	log.Info("Sensor manager initialized")

	coordinator.Start()
	log.Info("Ingest coordinator started")

	var mqttSink *egress.MQTTSink
	if cfg.MQTT.Broker != "" {
		mqttSink, err = egress.NewMQTTSink(cfg.MQTT)
		if err != nil {
			log.Error("Failed to connect MQTT egress", "broker", cfg.MQTT.Broker, "error", err)
			os.Exit(1)
		}
		broadcastHub.Register(mqttSink)
		log.Info("MQTT egress connected", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
	}

	server := api.NewServer(coordinator, cfg, m, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Info("HTTP server listening", "addr", cfg.Server.Addr)
	log.Info("Health endpoint ready", "url", fmt.Sprintf("http://localhost%s/api/v1/health", cfg.Server.Addr))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		log.Error("Server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sensors.StopAll()
	log.Info("Sensor sources stopped")

	coordinator.Stop()
	log.Info("Ingest coordinator stopped")

	broadcastHub.Stop()
	log.Info("Broadcast hub stopped")

	if mqttSink != nil {
		_ = mqttSink.Close()
	}

	if err := auditLogger.Close(); err != nil {
		log.Error("Error closing audit logger", "error", err)
	}

	if err := server.Stop(ctx); err != nil {
		log.Error("Error stopping HTTP server", "error", err)
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Shutdown complete")
}
