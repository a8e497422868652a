package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load merges Default() + RTB_* env overrides + an optional config.yaml
// in the working directory, then validates the result.
func Load() (*Config, error) {
	return LoadFrom("config.yaml")
}

// LoadFrom is Load with an explicit config file path; a missing file is
// not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyFile overlays settings from a YAML file. Absent keys keep their
// current values.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies RTB_* environment variables. Env wins over
// both defaults and file values.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = GetEnvVar("RTB_SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.ReadTimeout = GetEnvDuration("RTB_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = GetEnvDuration("RTB_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = GetEnvDuration("RTB_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.Sensors.ForceHz = GetEnvFloat("RTB_SENSOR_FORCE_HZ", cfg.Sensors.ForceHz)
	cfg.Sensors.MotorHz = GetEnvFloat("RTB_SENSOR_MOTOR_HZ", cfg.Sensors.MotorHz)
	cfg.Sensors.CameraHz = GetEnvFloat("RTB_SENSOR_CAMERA_HZ", cfg.Sensors.CameraHz)
	cfg.Sensors.StopTimeout = GetEnvDuration("RTB_SENSOR_STOP_TIMEOUT", cfg.Sensors.StopTimeout)

	cfg.Validation.ForceHighThreshold = GetEnvFloat("RTB_VALIDATION_FORCE_HIGH", cfg.Validation.ForceHighThreshold)
	cfg.Validation.MotorThreshold = GetEnvFloat("RTB_VALIDATION_MOTOR", cfg.Validation.MotorThreshold)
	cfg.Validation.SpikeDelta = GetEnvFloat("RTB_VALIDATION_SPIKE_DELTA", cfg.Validation.SpikeDelta)
	cfg.Validation.HistorySize = GetEnvInt("RTB_VALIDATION_HISTORY_SIZE", cfg.Validation.HistorySize)

	cfg.Session.MaxPoints = GetEnvInt("RTB_SESSION_MAX_POINTS", cfg.Session.MaxPoints)
	cfg.Ingest.QueueSize = GetEnvInt("RTB_INGEST_QUEUE_SIZE", cfg.Ingest.QueueSize)
	cfg.Hub.WriteTimeout = GetEnvDuration("RTB_HUB_WRITE_TIMEOUT", cfg.Hub.WriteTimeout)

	cfg.Export.Dir = GetEnvVar("RTB_EXPORT_DIR", cfg.Export.Dir)
	cfg.Audit.Dir = GetEnvVar("RTB_AUDIT_DIR", cfg.Audit.Dir)
	cfg.Audit.MaxSizeMB = GetEnvInt("RTB_AUDIT_MAX_SIZE_MB", cfg.Audit.MaxSizeMB)
	cfg.Audit.MaxBackups = GetEnvInt("RTB_AUDIT_MAX_BACKUPS", cfg.Audit.MaxBackups)

	cfg.Auth.Secret = GetEnvVar("RTB_AUTH_SECRET", cfg.Auth.Secret)

	cfg.MQTT.Broker = GetEnvVar("RTB_MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Topic = GetEnvVar("RTB_MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.MQTT.ClientID = GetEnvVar("RTB_MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.PublishTimeout = GetEnvDuration("RTB_MQTT_PUBLISH_TIMEOUT", cfg.MQTT.PublishTimeout)
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns an environment variable as a duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvFloat returns an environment variable as a float64 with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GetEnvInt returns an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
