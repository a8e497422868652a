// Package validate implements the per-kind threshold and trend rules that
// turn suspicious readings into alerts.
package validate

import (
	"fmt"
	"math"
	"sync"

	"github.com/robotic-testing/rtb/internal/sensor"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Alert is the result of a rule firing on a reading. Alerts are never
// mutated after creation.
type Alert struct {
	Kind      sensor.Kind            `json:"sensor_type"`
	Severity  Severity               `json:"status"`
	Message   string                 `json:"message"`
	Timestamp float64                `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
}

// Thresholds holds the configured rule limits.
type Thresholds struct {
	ForceHigh   float64 // newtons; ERROR above, WARNING above 80%
	Motor       float64 // RPM magnitude limit
	SpikeDelta  float64 // newtons of change across the spike window
	HistorySize int     // per-kind trend window, entries
}

type histEntry struct {
	timestamp float64
	value     float64
}

// Validator evaluates one reading at a time against the rules for its
// kind, keeping a bounded per-kind history for trend detection. The
// history is internal and never exposed. Rules never fail toward the
// caller: malformed payloads are defaulted instead of rejected.
type Validator struct {
	cfg Thresholds

	mu      sync.Mutex
	history map[sensor.Kind][]histEntry
}

// NewValidator creates a validator with the supplied thresholds.
func NewValidator(cfg Thresholds) *Validator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	return &Validator{
		cfg: cfg,
		history: map[sensor.Kind][]histEntry{
			sensor.KindForce:  nil,
			sensor.KindMotor:  nil,
			sensor.KindCamera: nil,
		},
	}
}

// Validate inspects a reading and returns at most one alert; the first
// matching rule per kind wins.
func (v *Validator) Validate(r sensor.Reading) *Alert {
	switch r.Kind {
	case sensor.KindForce:
		return v.validateForce(r)
	case sensor.KindMotor:
		return v.validateMotor(r)
	case sensor.KindCamera:
		return v.validateCamera(r)
	}
	return nil
}

func (v *Validator) validateForce(r sensor.Reading) *Alert {
	v.mu.Lock()
	entries := append(v.history[sensor.KindForce], histEntry{timestamp: r.Timestamp, value: r.Value})
	if len(entries) > v.cfg.HistorySize {
		entries = entries[len(entries)-v.cfg.HistorySize:]
	}
	v.history[sensor.KindForce] = entries
	recent := lastValues(entries, 3)
	v.mu.Unlock()

	if r.Value > v.cfg.ForceHigh {
		return &Alert{
			Kind:      sensor.KindForce,
			Severity:  SeverityError,
			Message:   fmt.Sprintf("Critical force level: %vN exceeds %vN", r.Value, v.cfg.ForceHigh),
			Timestamp: r.Timestamp,
			Details: map[string]interface{}{
				"threshold": v.cfg.ForceHigh,
				"actual":    r.Value,
				"severity":  "critical",
			},
		}
	}

	if r.Value > v.cfg.ForceHigh*0.8 {
		return &Alert{
			Kind:      sensor.KindForce,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Force level %vN approaching limit", r.Value),
			Timestamp: r.Timestamp,
			Details: map[string]interface{}{
				"threshold":  v.cfg.ForceHigh,
				"actual":     r.Value,
				"percentage": (r.Value / v.cfg.ForceHigh) * 100,
			},
		}
	}

	// Spike rule: newest vs oldest of the last 3 samples, current included.
	if len(recent) >= 3 && math.Abs(recent[len(recent)-1]-recent[0]) > v.cfg.SpikeDelta {
		return &Alert{
			Kind:      sensor.KindForce,
			Severity:  SeverityWarning,
			Message:   "Force spike detected",
			Timestamp: r.Timestamp,
			Details: map[string]interface{}{
				"recent_values":  recent,
				"spike_detected": true,
			},
		}
	}

	return nil
}

func (v *Validator) validateMotor(r sensor.Reading) *Alert {
	magnitude := math.Abs(r.Value)
	if magnitude <= v.cfg.Motor {
		return nil
	}
	return &Alert{
		Kind:      sensor.KindMotor,
		Severity:  SeverityWarning,
		Message:   fmt.Sprintf("Motor speed %vRPM approaching operational limits", r.Value),
		Timestamp: r.Timestamp,
		Details: map[string]interface{}{
			"threshold": v.cfg.Motor,
			"actual":    r.Value,
			"absolute":  magnitude,
		},
	}
}

func (v *Validator) validateCamera(r sensor.Reading) *Alert {
	// Missing frame fields default to mid-range rather than erroring.
	brightness := 128
	exposure := 1.0
	if r.Frame != nil {
		brightness = r.Frame.Brightness
		exposure = r.Frame.Exposure
	}

	switch {
	case brightness < 30:
		return &Alert{
			Kind:      sensor.KindCamera,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Low lighting detected: brightness %d", brightness),
			Timestamp: r.Timestamp,
			Details: map[string]interface{}{
				"brightness": brightness,
				"exposure":   exposure,
				"issue":      "insufficient_lighting",
			},
		}
	case brightness > 240:
		return &Alert{
			Kind:      sensor.KindCamera,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Overexposed image: brightness %d", brightness),
			Timestamp: r.Timestamp,
			Details: map[string]interface{}{
				"brightness": brightness,
				"exposure":   exposure,
				"issue":      "overexposure",
			},
		}
	}
	return nil
}

// Stats reports how many readings have been retained per kind, for the
// status endpoints.
func (v *Validator) Stats() map[string]interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := 0
	perKind := make(map[string]int, len(v.history))
	for kind, entries := range v.history {
		perKind[string(kind)] = len(entries)
		total += len(entries)
	}
	return map[string]interface{}{
		"total_validations_performed": total,
		"readings_analyzed":           perKind,
		"validation_active":           true,
	}
}

func lastValues(entries []histEntry, n int) []float64 {
	if len(entries) < n {
		n = len(entries)
	}
	out := make([]float64, 0, n)
	for _, e := range entries[len(entries)-n:] {
		out = append(out, e.value)
	}
	return out
}
