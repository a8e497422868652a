package api

import (
	"github.com/robotic-testing/rtb/internal/hub"
	"github.com/robotic-testing/rtb/internal/ingest"
	"github.com/robotic-testing/rtb/internal/sensor"
	"github.com/robotic-testing/rtb/internal/session"
	"github.com/robotic-testing/rtb/internal/validate"
)

// Pipeline is the surface of the ingest coordinator the transport layer
// consumes.
type Pipeline interface {
	StartSession() (string, error)
	StopSession() (session.Summary, error)
	ResetSession()

	Summary() ingest.Overview
	RecentReadings(f session.ReadingFilter) []sensor.Reading
	LatestReadings() map[sensor.Kind]sensor.Reading
	RecentAlerts(limit int) []validate.Alert
	ValidationStats() map[string]interface{}
	SensorStatus() map[sensor.Kind]bool
	Recording() bool
	SessionStart() float64

	RegisterObserver(s hub.Sink)
	UnregisterObserver(id string)
	ObserverCount() int
}

// Compile-time assertion that the coordinator satisfies the port.
var _ Pipeline = (*ingest.Coordinator)(nil)
