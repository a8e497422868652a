// Package config defines the bench configuration: sensor rates,
// validation thresholds, buffer capacities, and transport settings.
// Values merge defaults + RTB_* environment overrides + an optional
// config.yaml.
package config

import "time"

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sensors    SensorsConfig    `yaml:"sensors"`
	Validation ValidationConfig `yaml:"validation"`
	Session    SessionConfig    `yaml:"session"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Hub        HubConfig        `yaml:"hub"`
	Export     ExportConfig     `yaml:"export"`
	Audit      AuditConfig      `yaml:"audit"`
	Auth       AuthConfig       `yaml:"auth"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// SensorsConfig holds the per-kind sample rates and loop shutdown bound.
type SensorsConfig struct {
	ForceHz     float64       `yaml:"forceHz"`
	MotorHz     float64       `yaml:"motorHz"`
	CameraHz    float64       `yaml:"cameraHz"`
	StopTimeout time.Duration `yaml:"stopTimeout"`
}

// ValidationConfig holds the alerting thresholds.
type ValidationConfig struct {
	ForceHighThreshold float64 `yaml:"forceHighThreshold"`
	MotorThreshold     float64 `yaml:"motorThreshold"`
	SpikeDelta         float64 `yaml:"spikeDelta"`
	HistorySize        int     `yaml:"historySize"`
}

// SessionConfig bounds the recording buffer.
type SessionConfig struct {
	MaxPoints int `yaml:"maxPoints"`
}

// IngestConfig sizes the producer handoff queue.
type IngestConfig struct {
	QueueSize int `yaml:"queueSize"`
}

// HubConfig bounds observer delivery.
type HubConfig struct {
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// ExportConfig locates CSV exports.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// AuditConfig locates and bounds the audit trail.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// AuthConfig enables bearer-token protection of control routes when the
// secret is non-empty.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// MQTTConfig enables the alert egress sink when Broker is non-empty.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"clientId"`
	PublishTimeout time.Duration `yaml:"publishTimeout"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Sensors: SensorsConfig{
			ForceHz:     10.0,
			MotorHz:     5.0,
			CameraHz:    1.0,
			StopTimeout: time.Second,
		},
		Validation: ValidationConfig{
			ForceHighThreshold: 80.0,
			MotorThreshold:     55.0,
			SpikeDelta:         50.0,
			HistorySize:        50,
		},
		Session: SessionConfig{
			MaxPoints: 10000,
		},
		Ingest: IngestConfig{
			QueueSize: 256,
		},
		Hub: HubConfig{
			WriteTimeout: 2 * time.Second,
		},
		Export: ExportConfig{
			Dir: "data/exports",
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  50,
			MaxBackups: 5,
		},
		MQTT: MQTTConfig{
			Topic:          "rtb/telemetry",
			ClientID:       "rtb-backend",
			PublishTimeout: 2 * time.Second,
		},
	}
}
