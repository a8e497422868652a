package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/robotic-testing/rtb/internal/auth"
	"github.com/robotic-testing/rtb/internal/export"
	"github.com/robotic-testing/rtb/internal/sensor"
	"github.com/robotic-testing/rtb/internal/session"
)

// RegisterRoutes registers all v1 endpoints. Control routes require the
// control scope when auth is configured; read routes require read scope.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health and observers are never behind auth.
	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	mux.HandleFunc("/ws/sensor-data", s.handleSensorDataWS)
	mux.Handle("/metrics", s.metrics.Handler())

	read := s.protect(auth.ScopeRead)
	control := s.protect(auth.ScopeControl)

	mux.HandleFunc(apiV1+"/sensors/readings", read(s.handleReadings))
	mux.HandleFunc(apiV1+"/sensors/readings/latest", read(s.handleLatestReadings))
	mux.HandleFunc(apiV1+"/sensors/status", read(s.handleSensorsStatus))
	mux.HandleFunc(apiV1+"/sensors/validation", read(s.handleValidation))

	mux.HandleFunc(apiV1+"/sessions/start", control(s.handleSessionStart))
	mux.HandleFunc(apiV1+"/sessions/stop", control(s.handleSessionStop))
	mux.HandleFunc(apiV1+"/sessions/reset", control(s.handleSessionReset))
	mux.HandleFunc(apiV1+"/sessions/status", read(s.handleSessionStatus))
	mux.HandleFunc(apiV1+"/sessions/summary", read(s.handleSessionSummary))
	mux.HandleFunc(apiV1+"/sessions/export/csv", read(s.handleExportCSV))
}

// protect wraps a handler in auth when a middleware is configured.
func (s *Server) protect(scope string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if s.authMiddleware == nil {
			return next
		}
		return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(scope)(next))
	}
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"services": map[string]bool{
			"ingest":    true,
			"broadcast": true,
		},
	})
}

// handleReadings handles GET /sensors/readings with optional
// sensor_type, start_time, end_time, and limit query filters.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	filter := session.ReadingFilter{Limit: 100}

	if v := r.URL.Query().Get("sensor_type"); v != "" {
		kind := sensor.Kind(v)
		if !kind.Valid() {
			WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "Unknown sensor_type", map[string]string{"sensor_type": v})
			return
		}
		filter.Kind = kind
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "limit must be between 1 and 1000", nil)
			return
		}
		filter.Limit = limit
	}

	var err error
	if filter.StartTime, err = parseTimeParam(r, "start_time"); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "start_time must be a unix timestamp", nil)
		return
	}
	if filter.EndTime, err = parseTimeParam(r, "end_time"); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "end_time must be a unix timestamp", nil)
		return
	}

	WriteSuccess(w, s.pipeline.RecentReadings(filter))
}

// handleLatestReadings handles GET /sensors/readings/latest.
func (s *Server) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	latest := s.pipeline.LatestReadings()
	out := make(map[string]interface{}, len(sensor.Kinds))
	for _, kind := range sensor.Kinds {
		if reading, ok := latest[kind]; ok {
			out[string(kind)] = reading
		} else {
			out[string(kind)] = nil
		}
	}

	WriteSuccess(w, map[string]interface{}{
		"latest_readings": out,
		"total_readings":  s.pipeline.Summary().TotalReadings,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSensorsStatus handles GET /sensors/status.
func (s *Server) handleSensorsStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	active := s.pipeline.SensorStatus()
	cutoff := sensor.Unix(time.Now().Add(-time.Minute))

	sensors := make(map[string]interface{}, len(sensor.Kinds))
	for _, kind := range sensor.Kinds {
		recent := s.pipeline.RecentReadings(session.ReadingFilter{Kind: kind, StartTime: cutoff})
		sensors[string(kind)] = map[string]interface{}{
			"active":              active[kind],
			"readings_per_minute": len(recent),
		}
	}

	overview := s.pipeline.Summary()
	WriteSuccess(w, map[string]interface{}{
		"sensors": sensors,
		"system": map[string]interface{}{
			"recording":         overview.Recording,
			"total_readings":    overview.TotalReadings,
			"connected_clients": overview.ObserverCount,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleValidation handles GET /sensors/validation.
func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 200 {
			WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "limit must be between 1 and 200", nil)
			return
		}
		limit = parsed
	}

	WriteSuccess(w, s.pipeline.RecentAlerts(limit))
}

// handleSessionStart handles POST /sessions/start.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST method is allowed", nil)
		return
	}

	sessionID, err := s.pipeline.StartSession()
	if err != nil {
		writeSessionError(w, err)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"session_id": sessionID,
		"status":     "recording",
		"started_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSessionStop handles POST /sessions/stop.
func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST method is allowed", nil)
		return
	}

	summary, err := s.pipeline.StopSession()
	if err != nil {
		writeSessionError(w, err)
		return
	}

	WriteSuccess(w, summary)
}

// handleSessionReset handles POST /sessions/reset.
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST method is allowed", nil)
		return
	}

	s.pipeline.ResetSession()
	WriteSuccess(w, map[string]interface{}{
		"message":   "Session reset successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSessionStatus handles GET /sessions/status.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	status := s.pipeline.SensorStatus()
	sensorsActive := make(map[string]bool, len(status))
	for kind, running := range status {
		sensorsActive[string(kind)] = running
	}

	WriteSuccess(w, map[string]interface{}{
		"recording":        s.pipeline.Recording(),
		"sensors_active":   sensorsActive,
		"data_summary":     s.pipeline.Summary(),
		"validation_stats": s.pipeline.ValidationStats(),
	})
}

// handleSessionSummary handles GET /sessions/summary.
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	WriteSuccess(w, s.pipeline.Summary())
}

// handleExportCSV handles GET /sessions/export/csv.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed", nil)
		return
	}

	readings := s.pipeline.RecentReadings(session.ReadingFilter{})
	if len(readings) == 0 {
		WriteError(w, http.StatusBadRequest, "NO_DATA", "No data to export", nil)
		return
	}

	path, err := export.WriteCSV(s.exportDir, readings, s.pipeline.SessionStart())
	if err != nil {
		s.log.Error("CSV export failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Export failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

// writeSessionError maps session lifecycle errors to API responses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrAlreadyRecording):
		WriteError(w, http.StatusBadRequest, "INVALID_STATE", "Session already in progress", nil)
	case errors.Is(err, session.ErrNotRecording):
		WriteError(w, http.StatusBadRequest, "INVALID_STATE", "No active session to stop", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
	}
}

func parseTimeParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}
