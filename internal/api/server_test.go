package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotic-testing/rtb/internal/config"
	"github.com/robotic-testing/rtb/internal/hub"
	"github.com/robotic-testing/rtb/internal/ingest"
	"github.com/robotic-testing/rtb/internal/sensor"
	"github.com/robotic-testing/rtb/internal/session"
	"github.com/robotic-testing/rtb/internal/validate"
)

type testBench struct {
	server      *httptest.Server
	coordinator *ingest.Coordinator
	hub         *hub.Hub
}

func newTestBench(t *testing.T, mutateCfg func(*config.Config)) *testBench {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	if mutateCfg != nil {
		mutateCfg(cfg)
	}

	h := hub.NewHub(log, nil)
	store := session.NewStore(cfg.Session.MaxPoints, nil)
	validator := validate.NewValidator(validate.Thresholds{
		ForceHigh:   cfg.Validation.ForceHighThreshold,
		Motor:       cfg.Validation.MotorThreshold,
		SpikeDelta:  cfg.Validation.SpikeDelta,
		HistorySize: cfg.Validation.HistorySize,
	})
	coordinator := ingest.NewCoordinator(store, validator, h, log)
	coordinator.Start()
	t.Cleanup(coordinator.Stop)

	srv := NewServer(coordinator, cfg, nil, log)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testBench{server: ts, coordinator: coordinator, hub: h}
}

func (b *testBench) get(t *testing.T, path string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Get(b.server.URL + path)
	require.NoError(t, err)
	return resp, decodeEnvelope(t, resp)
}

func (b *testBench) post(t *testing.T, path string) (*http.Response, Response) {
	t.Helper()
	resp, err := http.Post(b.server.URL+path, "application/json", nil)
	require.NoError(t, err)
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

// ingestAndWait pushes a reading through the pipeline and waits until it
// is queryable.
func (b *testBench) ingestAndWait(t *testing.T, readings ...sensor.Reading) {
	t.Helper()
	before := len(b.coordinator.RecentReadings(session.ReadingFilter{}))
	for _, r := range readings {
		b.coordinator.Ingest(r)
	}
	deadline := time.After(2 * time.Second)
	for len(b.coordinator.RecentReadings(session.ReadingFilter{})) < before+len(readings) {
		select {
		case <-deadline:
			t.Fatal("readings not processed in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func forceAt(ts, value float64) sensor.Reading {
	return sensor.Reading{Timestamp: ts, Kind: sensor.KindForce, Value: value}
}

func TestHealthEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)

	resp, envelope := bench.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", envelope.Result)
	assert.NotEmpty(t, envelope.CorrelationID)

	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	bench := newTestBench(t, nil)

	resp, envelope := bench.post(t, "/api/v1/sessions/start")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope.Data.(map[string]interface{})
	assert.NotEmpty(t, data["session_id"])
	assert.Equal(t, "recording", data["status"])

	// Starting again is an invalid state transition.
	resp, envelope = bench.post(t, "/api/v1/sessions/start")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", envelope.Result)
	assert.Equal(t, "INVALID_STATE", envelope.Code)

	bench.ingestAndWait(t, forceAt(1, 10), forceAt(2, 20))

	resp, envelope = bench.post(t, "/api/v1/sessions/stop")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(2), summary["total_readings"])

	resp, envelope = bench.post(t, "/api/v1/sessions/stop")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", envelope.Code)
}

func TestSessionEndpointsRejectGet(t *testing.T) {
	bench := newTestBench(t, nil)

	resp, envelope := bench.get(t, "/api/v1/sessions/start")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "METHOD_NOT_ALLOWED", envelope.Code)
}

func TestReadingsEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)
	bench.post(t, "/api/v1/sessions/start")
	bench.ingestAndWait(t,
		forceAt(1, 10),
		sensor.Reading{Timestamp: 2, Kind: sensor.KindMotor, Value: 20},
		forceAt(3, 30),
	)

	resp, envelope := bench.get(t, "/api/v1/sensors/readings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, envelope.Data.([]interface{}), 3)

	_, envelope = bench.get(t, "/api/v1/sensors/readings?sensor_type=force")
	assert.Len(t, envelope.Data.([]interface{}), 2)

	_, envelope = bench.get(t, "/api/v1/sensors/readings?limit=1")
	readings := envelope.Data.([]interface{})
	require.Len(t, readings, 1)
	// Limit keeps the newest readings.
	newest := readings[0].(map[string]interface{})
	assert.Equal(t, float64(3), newest["timestamp"])

	_, envelope = bench.get(t, "/api/v1/sensors/readings?start_time=2&end_time=3")
	assert.Len(t, envelope.Data.([]interface{}), 2)
}

func TestReadingsEndpointRejectsBadParams(t *testing.T) {
	bench := newTestBench(t, nil)

	tests := []struct {
		name  string
		query string
	}{
		{"unknown sensor type", "?sensor_type=pressure"},
		{"limit zero", "?limit=0"},
		{"limit too large", "?limit=1001"},
		{"limit not a number", "?limit=abc"},
		{"bad start time", "?start_time=yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, envelope := bench.get(t, "/api/v1/sensors/readings"+tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_RANGE", envelope.Code)
		})
	}
}

func TestLatestReadingsEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)
	bench.post(t, "/api/v1/sessions/start")
	bench.ingestAndWait(t, forceAt(1, 10), forceAt(2, 42))

	resp, envelope := bench.get(t, "/api/v1/sensors/readings/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := envelope.Data.(map[string]interface{})
	latest := data["latest_readings"].(map[string]interface{})
	force := latest["force"].(map[string]interface{})
	assert.Equal(t, float64(42), force["value"])
	// Kinds without data are present but null.
	assert.Contains(t, latest, "motor")
	assert.Nil(t, latest["motor"])
}

func TestSensorsStatusEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)

	resp, envelope := bench.get(t, "/api/v1/sensors/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := envelope.Data.(map[string]interface{})
	sensors := data["sensors"].(map[string]interface{})
	assert.Contains(t, sensors, "force")
	assert.Contains(t, sensors, "motor")
	assert.Contains(t, sensors, "camera")

	system := data["system"].(map[string]interface{})
	assert.Equal(t, false, system["recording"])
}

func TestValidationEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)
	bench.post(t, "/api/v1/sessions/start")
	// 95N exceeds the 80N threshold and raises an error alert.
	bench.ingestAndWait(t, forceAt(1, 95))

	resp, envelope := bench.get(t, "/api/v1/sensors/validation")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	alerts := envelope.Data.([]interface{})
	require.Len(t, alerts, 1)
	alert := alerts[0].(map[string]interface{})
	assert.Equal(t, "force", alert["sensor_type"])
	assert.Equal(t, "error", alert["status"])
	assert.Contains(t, alert["message"], "Critical force level")

	resp, envelope = bench.get(t, "/api/v1/sensors/validation?limit=500")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_RANGE", envelope.Code)
}

func TestSessionStatusAndSummaryEndpoints(t *testing.T) {
	bench := newTestBench(t, nil)
	bench.post(t, "/api/v1/sessions/start")
	bench.ingestAndWait(t, forceAt(1, 10))

	_, envelope := bench.get(t, "/api/v1/sessions/status")
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, true, data["recording"])
	assert.Contains(t, data, "data_summary")
	assert.Contains(t, data, "validation_stats")

	_, envelope = bench.get(t, "/api/v1/sessions/summary")
	summary := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(1), summary["total_readings"])
	assert.Equal(t, true, summary["recording_active"])
}

func TestResetEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)
	bench.post(t, "/api/v1/sessions/start")
	bench.ingestAndWait(t, forceAt(1, 10))

	resp, _ := bench.post(t, "/api/v1/sessions/reset")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, envelope := bench.get(t, "/api/v1/sessions/summary")
	summary := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(0), summary["total_readings"])
	assert.Equal(t, false, summary["recording_active"])
}

func TestExportCSVEndpoint(t *testing.T) {
	bench := newTestBench(t, nil)

	// No data yet: export refuses.
	resp, envelope := bench.get(t, "/api/v1/sessions/export/csv")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "NO_DATA", envelope.Code)

	bench.post(t, "/api/v1/sessions/start")
	bench.ingestAndWait(t, forceAt(1, 10), forceAt(2, 20))

	resp2, err := http.Get(bench.server.URL + "/api/v1/sessions/export/csv")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "timestamp,sensor_type,value,datetime,session_time")
	assert.Contains(t, string(body), "force")
}

func TestControlRoutesRequireAuthWhenConfigured(t *testing.T) {
	bench := newTestBench(t, func(cfg *config.Config) {
		cfg.Auth.Secret = "bench-secret"
	})

	// No token: control route refused, health stays open.
	resp, err := http.Post(bench.server.URL+"/api/v1/sessions/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = bench.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Read scope alone cannot start a session.
	readToken := signTestToken(t, "bench-secret", []string{"read"})
	assert.Equal(t, http.StatusForbidden, postWithToken(t, bench, "/api/v1/sessions/start", readToken))

	controlToken := signTestToken(t, "bench-secret", []string{"control"})
	assert.Equal(t, http.StatusOK, postWithToken(t, bench, "/api/v1/sessions/start", controlToken))
}

func signTestToken(t *testing.T, secret string, scopes []string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "operator",
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func postWithToken(t *testing.T, bench *testBench, path, token string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, bench.server.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}
