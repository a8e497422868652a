// Package session implements the bounded in-memory recording buffer and
// its start/stop/reset lifecycle.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/robotic-testing/rtb/internal/sensor"
	"github.com/robotic-testing/rtb/internal/validate"
)

// Recoverable state errors returned by Start/Stop.
var (
	ErrAlreadyRecording = errors.New("session already recording")
	ErrNotRecording     = errors.New("no active recording session")
)

// Summary is the snapshot returned when a recording session stops.
type Summary struct {
	ReadingCount int     `json:"total_readings"`
	Duration     float64 `json:"session_duration"`
	AlertCount   int     `json:"validation_alerts"`
}

// DataSummary describes the stored data independent of session lifecycle.
type DataSummary struct {
	TotalReadings int            `json:"total_readings"`
	Breakdown     map[string]int `json:"sensor_breakdown"`
	AlertCount    int            `json:"validation_alerts"`
	SpanSeconds   *float64       `json:"session_duration_seconds"`
	Recording     bool           `json:"recording_active"`
}

// ReadingFilter selects a subset of stored readings. Zero fields are
// unbounded; Limit caps the result to the most recent matches.
type ReadingFilter struct {
	Kind      sensor.Kind
	StartTime float64
	EndTime   float64
	Limit     int
}

// Store holds the recorded readings and alerts for the current session.
// Readings are bounded FIFO at maxPoints; alerts accumulate until reset.
// All mutation is mutually exclusive and readers always see a consistent
// copy, never a partially evicted buffer.
type Store struct {
	mu           sync.RWMutex
	maxPoints    int
	clock        sensor.Clock
	recording    bool
	sessionStart float64 // unix seconds; retained after Stop for export math
	readings     []sensor.Reading
	alerts       []validate.Alert
}

// NewStore creates a store bounded at maxPoints readings.
func NewStore(maxPoints int, clock sensor.Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		maxPoints: maxPoints,
		clock:     clock,
	}
}

// Start begins a recording session, clearing any prior buffers. It fails
// with ErrAlreadyRecording, leaving existing buffers untouched, if a
// session is already active.
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		return ErrAlreadyRecording
	}

	s.readings = nil
	s.alerts = nil
	s.sessionStart = sensor.Unix(s.clock())
	s.recording = true
	return nil
}

// Stop ends the active session and returns its summary. The session start
// time is retained so exports can compute session-relative timestamps.
func (s *Store) Stop() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return Summary{}, ErrNotRecording
	}

	s.recording = false
	return Summary{
		ReadingCount: len(s.readings),
		Duration:     sensor.Unix(s.clock()) - s.sessionStart,
		AlertCount:   len(s.alerts),
	}, nil
}

// Reset clears both buffers and forces the store to idle.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = nil
	s.alerts = nil
	s.recording = false
	s.sessionStart = 0
}

// Accept stores a reading when recording; when idle it is a no-op (the
// caller still validates and broadcasts regardless). Overflow evicts the
// oldest reading so the buffer holds exactly maxPoints.
func (s *Store) Accept(r sensor.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return
	}

	s.readings = append(s.readings, r)
	if len(s.readings) > s.maxPoints {
		s.readings = s.readings[1:]
	}
}

// RecordAlert appends an alert regardless of recording state.
func (s *Store) RecordAlert(a validate.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, a)
}

// Recording reports whether a session is active.
func (s *Store) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// SessionStart returns the start timestamp of the current or most recent
// session, or 0 if none has started since the last reset.
func (s *Store) SessionStart() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionStart
}

// Readings returns a copy of the stored readings matching the filter,
// keeping the most recent Limit entries in stored order.
func (s *Store) Readings(f ReadingFilter) []sensor.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]sensor.Reading, 0, len(s.readings))
	for _, r := range s.readings {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.StartTime > 0 && r.Timestamp < f.StartTime {
			continue
		}
		if f.EndTime > 0 && r.Timestamp > f.EndTime {
			continue
		}
		matched = append(matched, r)
	}

	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}

// Latest returns the most recent stored reading per kind; kinds with no
// readings are absent from the map.
func (s *Store) Latest() map[sensor.Kind]sensor.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[sensor.Kind]sensor.Reading)
	for _, r := range s.readings {
		latest[r.Kind] = r
	}
	return latest
}

// Alerts returns a copy of the most recent limit alerts in stored order.
// limit <= 0 returns all of them.
func (s *Store) Alerts(limit int) []validate.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := s.alerts
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[len(alerts)-limit:]
	}
	out := make([]validate.Alert, len(alerts))
	copy(out, alerts)
	return out
}

// Summary describes the stored buffers: totals, per-kind breakdown, and
// the span between first and last reading (nil with fewer than two).
func (s *Store) Summary() DataSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	breakdown := make(map[string]int)
	for _, r := range s.readings {
		breakdown[string(r.Kind)]++
	}

	var span *float64
	if len(s.readings) >= 2 {
		d := s.readings[len(s.readings)-1].Timestamp - s.readings[0].Timestamp
		span = &d
	}

	return DataSummary{
		TotalReadings: len(s.readings),
		Breakdown:     breakdown,
		AlertCount:    len(s.alerts),
		SpanSeconds:   span,
		Recording:     s.recording,
	}
}
