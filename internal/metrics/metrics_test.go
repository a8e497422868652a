package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilReceiverSafe(t *testing.T) {
	var m *Metrics

	// Uninstrumented components pass nil; none of these may panic.
	m.ReadingIngested("force")
	m.ReadingDropped()
	m.AlertRaised("warning")
	m.BroadcastFailed()
	m.SetObservers(3)

	if m.Handler() == nil {
		t.Error("nil metrics Handler() = nil, want fallback handler")
	}
}

func TestScrapeOutput(t *testing.T) {
	m := New()
	m.ReadingIngested("force")
	m.ReadingIngested("force")
	m.ReadingIngested("motor")
	m.AlertRaised("error")
	m.SetObservers(2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`rtb_readings_ingested_total{kind="force"} 2`,
		`rtb_readings_ingested_total{kind="motor"} 1`,
		`rtb_alerts_total{severity="error"} 1`,
		`rtb_observers 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestPrivateRegistry(t *testing.T) {
	// Two instances must not collide on metric registration.
	a := New()
	b := New()
	a.ReadingIngested("force")
	b.ReadingIngested("force")
}
