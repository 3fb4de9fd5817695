package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nlmon/frr-converge/internal/session"
)

type fakeMonitor struct {
	counters  session.Counters
	sessionID int64
	active    bool
}

func (f *fakeMonitor) Counters() session.Counters { return f.counters }
func (f *fakeMonitor) CurrentSessionID() (int64, bool) {
	return f.sessionID, f.active
}

func scrape(t *testing.T, e *Exporter) string {
	t.Helper()
	handler := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestExporter_ReflectsCounters(t *testing.T) {
	mon := &fakeMonitor{counters: session.Counters{TotalRouteEvents: 7, TotalNetemTriggers: 2, TotalRouteTriggers: 3}}
	e := New(mon)

	body := scrape(t, e)
	if !strings.Contains(body, "frr_converge_route_events_total 7") {
		t.Errorf("body missing route_events_total=7:\n%s", body)
	}
	if !strings.Contains(body, "frr_converge_netem_triggers_total 2") {
		t.Errorf("body missing netem_triggers_total=2:\n%s", body)
	}
	if !strings.Contains(body, "frr_converge_route_triggers_total 3") {
		t.Errorf("body missing route_triggers_total=3:\n%s", body)
	}
}

func TestExporter_SessionActiveGauge(t *testing.T) {
	mon := &fakeMonitor{active: false}
	e := New(mon)

	body := scrape(t, e)
	if !strings.Contains(body, "frr_converge_session_active 0") {
		t.Errorf("expected session_active=0 while idle:\n%s", body)
	}

	mon.active = true
	mon.sessionID = 42

	body = scrape(t, e)
	if !strings.Contains(body, "frr_converge_session_active 1") {
		t.Errorf("expected session_active=1 while monitoring:\n%s", body)
	}
	if !strings.Contains(body, "frr_converge_current_session_id 42") {
		t.Errorf("expected current_session_id=42:\n%s", body)
	}
}

func TestExporter_TwoInstancesDoNotCollide(t *testing.T) {
	// Each Exporter owns its own registry, so constructing a second one
	// (as happens across test functions in this package) must not panic
	// with a duplicate-metric registration error.
	New(&fakeMonitor{})
	New(&fakeMonitor{})
}
