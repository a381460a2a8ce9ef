// internal/metrics/metrics_test.go
package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tamzrod/pressure-bridge/internal/acquire"
	"github.com/tamzrod/pressure-bridge/internal/reading"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

type fakeProbe bool

func (p fakeProbe) Connected() bool { return bool(p) }

func TestCollector_Counters(t *testing.T) {
	c := New(nil)

	c.ObserveAcquisition(acquire.ClassOK)
	c.ObserveAcquisition(acquire.ClassOK)
	c.ObserveAcquisition(acquire.ClassIntegrity)
	c.ObserveRequest(3, 0)
	c.ObserveRequest(6, 1)
	c.ObservePublish("mqtt", nil)
	c.ObservePublish("mqtt", errors.New("down"))

	if got := testutil.ToFloat64(c.acquisitions.WithLabelValues(acquire.ClassOK.String())); got != 2 {
		t.Fatalf("ok acquisitions: got=%v want=2", got)
	}
	if got := testutil.ToFloat64(c.acquisitions.WithLabelValues(acquire.ClassIntegrity.String())); got != 1 {
		t.Fatalf("integrity acquisitions: got=%v want=1", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("6", "1")); got != 1 {
		t.Fatalf("refused writes: got=%v want=1", got)
	}
	if got := testutil.ToFloat64(c.publishes.WithLabelValues("mqtt", "error")); got != 1 {
		t.Fatalf("failed publishes: got=%v want=1", got)
	}
}

func TestCollector_ReadingGauges(t *testing.T) {
	st := reading.New()
	c := New(st)

	expected := `
# HELP pressure_bridge_reading_sequence Sequence number of the latest valid sample (0 before the first).
# TYPE pressure_bridge_reading_sequence gauge
pressure_bridge_reading_sequence 0
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "pressure_bridge_reading_sequence"); err != nil {
		t.Fatalf("empty store: %v", err)
	}

	st.Publish(sensor.Sample{})
	st.Publish(sensor.Sample{})

	expected = strings.Replace(expected, "sequence 0", "sequence 2", 1)
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "pressure_bridge_reading_sequence"); err != nil {
		t.Fatalf("after publishes: %v", err)
	}
}

func TestHealth_ReadyRequiresFreshReadingAndBroker(t *testing.T) {
	st := reading.New()
	h := &Health{Source: st, Broker: fakeProbe(true), StaleAfter: time.Minute}
	mux := NewMux(New(st), h)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("empty store ready: got=%d", rec.Code)
	}

	st.Publish(sensor.Sample{PressureRaw: 60})
	if rec := get("/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("fresh reading ready: got=%d", rec.Code)
	}

	h.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	rec := get("/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz code: got=%d", rec.Code)
	}
	var body healthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Seq != 1 {
		t.Fatalf("stale health: %+v", body)
	}
	if rec := get("/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("stale ready: got=%d", rec.Code)
	}
}

func TestHealth_BrokerDown(t *testing.T) {
	st := reading.New()
	h := &Health{Source: st, Broker: fakeProbe(false)}

	st.Publish(sensor.Sample{})
	status, ready := h.status()
	if ready || status.Status != "degraded" {
		t.Fatalf("broker down: ready=%v status=%+v", ready, status)
	}
	if status.BrokerConnected == nil || *status.BrokerConnected {
		t.Fatalf("broker flag: %+v", status.BrokerConnected)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c := New(nil)
	c.ObserveRequest(3, 0)

	rec := httptest.NewRecorder()
	NewMux(c, &Health{Source: reading.New()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics code: got=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pressure_bridge_fieldbus_requests_total{exception="0",function="3"} 1`) {
		t.Fatalf("metrics body missing request counter:\n%s", rec.Body.String())
	}
}
