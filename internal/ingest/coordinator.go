// Package ingest wires sensor sources through the session store,
// validator, and broadcast hub: one logical pipeline per reading.
package ingest

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/robotic-testing/rtb/internal/hub"
	"github.com/robotic-testing/rtb/internal/metrics"
	"github.com/robotic-testing/rtb/internal/sensor"
	"github.com/robotic-testing/rtb/internal/session"
	"github.com/robotic-testing/rtb/internal/validate"
)

// AuditLogger records control actions. Satisfied by audit.Logger.
type AuditLogger interface {
	LogAction(action string, params map[string]interface{}, outcome string)
}

// SensorControl is the slice of sensor.Manager the coordinator drives.
type SensorControl interface {
	StartAll()
	StopAll()
	Status() map[sensor.Kind]bool
}

// Overview combines buffer, lifecycle, and observer state for the
// status surfaces.
type Overview struct {
	TotalReadings   int            `json:"total_readings"`
	Breakdown       map[string]int `json:"sensor_breakdown"`
	AlertCount      int            `json:"validation_alerts"`
	DurationSeconds *float64       `json:"session_duration_seconds"`
	Recording       bool           `json:"recording_active"`
	ObserverCount   int            `json:"connected_clients"`
}

// Coordinator owns the single ingest path. Sources hand readings to
// Ingest, which is a bounded non-blocking handoff into the pipeline
// goroutine; producers are never back-pressured by slow observers.
type Coordinator struct {
	store     *session.Store
	validator *validate.Validator
	hub       *hub.Hub
	sensors   SensorControl
	audit     AuditLogger
	metrics   *metrics.Metrics
	log       *slog.Logger
	clock     sensor.Clock

	queue chan sensor.Reading
	quit  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	startedAt time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithQueueSize overrides the ingest queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queue = make(chan sensor.Reading, n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock sensor.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithMetrics attaches pipeline instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(store *session.Store, validator *validate.Validator, h *hub.Hub, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		validator: validator,
		hub:       h,
		log:       log,
		clock:     time.Now,
		queue:     make(chan sensor.Reading, 256),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSensorControl attaches the sensor manager. Set after construction
// because the manager's sources consume this coordinator's Ingest.
func (c *Coordinator) SetSensorControl(sc SensorControl) {
	c.sensors = sc
}

// SetAuditLogger attaches the audit logger.
func (c *Coordinator) SetAuditLogger(a AuditLogger) {
	c.audit = a
}

// Start launches the pipeline goroutine. Idempotent.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run()
	})
}

// Stop terminates the pipeline; queued readings not yet processed are
// discarded. Stopping a coordinator that never started is a no-op.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		if c.started.Load() {
			<-c.done
		}
	})
}

// Ingest hands a reading to the pipeline without blocking. A full queue
// drops the reading; the producer's timing loop is never held.
func (c *Coordinator) Ingest(r sensor.Reading) {
	select {
	case c.queue <- r:
	default:
		c.metrics.ReadingDropped()
		c.log.Debug("ingest queue full, dropping reading", "kind", string(r.Kind))
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	for {
		select {
		case <-c.quit:
			return
		case r := <-c.queue:
			c.process(r)
		}
	}
}

// process applies the per-reading ordering: persist if recording, then
// validate and publish any alert, then publish the raw reading. Observers
// relying on alert-before-data semantics depend on this order.
func (c *Coordinator) process(r sensor.Reading) {
	if err := r.Validate(); err != nil {
		c.log.Warn("discarding malformed reading", "error", err)
		return
	}

	c.store.Accept(r)

	if alert := c.validator.Validate(r); alert != nil {
		c.store.RecordAlert(*alert)
		c.hub.Broadcast("validation", alert)
		c.metrics.AlertRaised(string(alert.Severity))
	}

	c.hub.Broadcast("sensor_data", r)
	c.metrics.ReadingIngested(string(r.Kind))
}

// StartSession begins recording, starts the sensor sources, and returns
// the new session ID. Fails with session.ErrAlreadyRecording without side
// effects if a session is active.
func (c *Coordinator) StartSession() (string, error) {
	if err := c.store.Start(); err != nil {
		c.logAudit("startSession", nil, "INVALID_STATE")
		return "", err
	}

	sessionID := uuid.New().String()
	if c.sensors != nil {
		c.sensors.StartAll()
	}
	c.broadcastSystemStatus()
	c.logAudit("startSession", map[string]interface{}{"sessionId": sessionID}, "SUCCESS")
	return sessionID, nil
}

// StopSession ends recording and stops the sensor sources, returning the
// session summary. Fails with session.ErrNotRecording when idle, without
// touching the sensors: the store transition is the single gate, so
// concurrent stops race on it and only the winner carries side effects.
// Readings still in flight after the stop are harmless; Accept no-ops
// once the store is idle.
func (c *Coordinator) StopSession() (session.Summary, error) {
	summary, err := c.store.Stop()
	if err != nil {
		c.logAudit("stopSession", nil, "INVALID_STATE")
		return session.Summary{}, err
	}

	if c.sensors != nil {
		c.sensors.StopAll()
	}

	c.broadcastSystemStatus()
	c.logAudit("stopSession", map[string]interface{}{
		"readings": summary.ReadingCount,
		"alerts":   summary.AlertCount,
	}, "SUCCESS")
	return summary, nil
}

// ResetSession stops the sources and clears all session data.
func (c *Coordinator) ResetSession() {
	if c.sensors != nil {
		c.sensors.StopAll()
	}
	c.store.Reset()
	c.broadcastSystemStatus()
	c.logAudit("resetSession", nil, "SUCCESS")
}

// Summary returns the combined data and lifecycle overview.
func (c *Coordinator) Summary() Overview {
	ds := c.store.Summary()
	return Overview{
		TotalReadings:   ds.TotalReadings,
		Breakdown:       ds.Breakdown,
		AlertCount:      ds.AlertCount,
		DurationSeconds: ds.SpanSeconds,
		Recording:       ds.Recording,
		ObserverCount:   c.hub.Count(),
	}
}

// RecentReadings returns stored readings matching the filter.
func (c *Coordinator) RecentReadings(f session.ReadingFilter) []sensor.Reading {
	return c.store.Readings(f)
}

// LatestReadings returns the newest stored reading per kind.
func (c *Coordinator) LatestReadings() map[sensor.Kind]sensor.Reading {
	return c.store.Latest()
}

// RecentAlerts returns the most recent limit alerts.
func (c *Coordinator) RecentAlerts(limit int) []validate.Alert {
	return c.store.Alerts(limit)
}

// ValidationStats exposes the validator's history counters.
func (c *Coordinator) ValidationStats() map[string]interface{} {
	return c.validator.Stats()
}

// SensorStatus reports the running flag per source; empty when no sensor
// control is attached.
func (c *Coordinator) SensorStatus() map[sensor.Kind]bool {
	if c.sensors == nil {
		return map[sensor.Kind]bool{}
	}
	return c.sensors.Status()
}

// Recording reports the session store lifecycle state.
func (c *Coordinator) Recording() bool {
	return c.store.Recording()
}

// SessionStart exposes the current session start timestamp for exports.
func (c *Coordinator) SessionStart() float64 {
	return c.store.SessionStart()
}

// RegisterObserver adds a sink to the broadcast hub.
func (c *Coordinator) RegisterObserver(s hub.Sink) {
	c.hub.Register(s)
}

// UnregisterObserver removes a sink by ID; absent IDs are a no-op.
func (c *Coordinator) UnregisterObserver(id string) {
	c.hub.Unregister(id)
}

// ObserverCount returns the number of live observers.
func (c *Coordinator) ObserverCount() int {
	return c.hub.Count()
}

// broadcastSystemStatus publishes the lifecycle snapshot observers use to
// track recording state.
func (c *Coordinator) broadcastSystemStatus() {
	status := c.SensorStatus()
	ds := c.store.Summary()

	c.hub.Broadcast("system_status", map[string]interface{}{
		"force_sensor":          status[sensor.KindForce],
		"motor_controller":      status[sensor.KindMotor],
		"camera":                status[sensor.KindCamera],
		"recording":             ds.Recording,
		"uptime_seconds":        time.Since(c.startedAt).Seconds(),
		"data_points_collected": ds.TotalReadings,
	})
}

func (c *Coordinator) logAudit(action string, params map[string]interface{}, outcome string) {
	if c.audit != nil {
		c.audit.LogAction(action, params, outcome)
	}
}
