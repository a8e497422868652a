// Package egress bridges the broadcast hub to external brokers. The MQTT
// sink republishes every broadcast frame on a configured topic so
// off-bench consumers can follow live telemetry.
package egress

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/robotic-testing/rtb/internal/config"
)

// MQTTSink implements hub.Sink over a paho MQTT client. Deliver is
// bounded by the configured publish timeout, so a broker outage degrades
// to a dropped sink instead of a stalled broadcast.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

// NewMQTTSink connects to the broker and returns a registered-ready sink.
func NewMQTTSink(cfg config.MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.PublishTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.PublishTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &MQTTSink{
		client:  client,
		topic:   cfg.Topic,
		timeout: cfg.PublishTimeout,
	}, nil
}

// ID identifies the sink in the hub's observer set.
func (s *MQTTSink) ID() string {
	return "mqtt:" + s.topic
}

// Deliver publishes one broadcast frame, bounded by the publish timeout.
func (s *MQTTSink) Deliver(payload []byte) error {
	token := s.client.Publish(s.topic, 0, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish to %s timed out", s.topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
