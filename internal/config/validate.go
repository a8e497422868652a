package config

import "fmt"

// Validate checks the configuration for values the pipeline cannot run
// with. It returns the first problem found.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if cfg.Sensors.ForceHz <= 0 || cfg.Sensors.MotorHz <= 0 || cfg.Sensors.CameraHz <= 0 {
		return fmt.Errorf("sensor rates must be positive, got force=%v motor=%v camera=%v",
			cfg.Sensors.ForceHz, cfg.Sensors.MotorHz, cfg.Sensors.CameraHz)
	}
	if cfg.Sensors.StopTimeout <= 0 {
		return fmt.Errorf("sensors.stopTimeout must be positive, got %v", cfg.Sensors.StopTimeout)
	}

	if cfg.Validation.ForceHighThreshold <= 0 {
		return fmt.Errorf("validation.forceHighThreshold must be positive, got %v", cfg.Validation.ForceHighThreshold)
	}
	if cfg.Validation.MotorThreshold <= 0 {
		return fmt.Errorf("validation.motorThreshold must be positive, got %v", cfg.Validation.MotorThreshold)
	}
	if cfg.Validation.SpikeDelta <= 0 {
		return fmt.Errorf("validation.spikeDelta must be positive, got %v", cfg.Validation.SpikeDelta)
	}
	if cfg.Validation.HistorySize <= 0 {
		return fmt.Errorf("validation.historySize must be positive, got %d", cfg.Validation.HistorySize)
	}

	if cfg.Session.MaxPoints <= 0 {
		return fmt.Errorf("session.maxPoints must be positive, got %d", cfg.Session.MaxPoints)
	}
	if cfg.Ingest.QueueSize <= 0 {
		return fmt.Errorf("ingest.queueSize must be positive, got %d", cfg.Ingest.QueueSize)
	}
	if cfg.Hub.WriteTimeout <= 0 {
		return fmt.Errorf("hub.writeTimeout must be positive, got %v", cfg.Hub.WriteTimeout)
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic required when mqtt.broker is set")
		}
		if cfg.MQTT.PublishTimeout <= 0 {
			return fmt.Errorf("mqtt.publishTimeout must be positive, got %v", cfg.MQTT.PublishTimeout)
		}
	}

	return nil
}
