package sensor

import (
	"log/slog"
	"time"
)

// Rates holds the per-kind sample rates in Hz.
type Rates struct {
	ForceHz  float64
	MotorHz  float64
	CameraHz float64
}

// Manager owns one Source per sensor kind and provides centralized
// start/stop control over all of them.
type Manager struct {
	sources map[Kind]*Source
	log     *slog.Logger
}

// NewManager creates the standard bench sensor set wired to consume. The
// seed feeds the per-kind generators so simulated runs are reproducible.
func NewManager(rates Rates, consume Consumer, log *slog.Logger, opts ...SourceOption) *Manager {
	seed := time.Now().UnixNano()
	m := &Manager{
		sources: make(map[Kind]*Source),
		log:     log,
	}
	m.sources[KindForce] = NewSource(NewForceGenerator(seed), rates.ForceHz, consume, log, opts...)
	m.sources[KindMotor] = NewSource(NewMotorGenerator(seed+1), rates.MotorHz, consume, log, opts...)
	m.sources[KindCamera] = NewSource(NewCameraGenerator(seed+2), rates.CameraHz, consume, log, opts...)
	return m
}

// StartAll starts every source. Already-running sources are unaffected.
func (m *Manager) StartAll() {
	for _, src := range m.sources {
		src.Start()
	}
	m.log.Info("sensor sources started", "count", len(m.sources))
}

// StopAll stops every source, waiting for each loop to exit.
func (m *Manager) StopAll() {
	for _, src := range m.sources {
		src.Stop()
	}
	m.log.Info("sensor sources stopped")
}

// Status reports the running flag of every source.
func (m *Manager) Status() map[Kind]bool {
	status := make(map[Kind]bool, len(m.sources))
	for kind, src := range m.sources {
		status[kind] = src.Running()
	}
	return status
}

// Source returns the source for a kind, or nil if the kind is unknown.
func (m *Manager) Source(kind Kind) *Source {
	return m.sources[kind]
}
