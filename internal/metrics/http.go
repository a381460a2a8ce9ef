// internal/metrics/http.go
package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/pressure-bridge/internal/reading"
)

// Probe reports whether an external dependency is reachable.
type Probe interface {
	Connected() bool
}

// Health decides liveness and readiness from the store and the broker session.
type Health struct {
	Source     reading.Source
	Broker     Probe         // optional
	StaleAfter time.Duration // 0 disables the freshness requirement

	now func() time.Time
}

type healthStatus struct {
	Status          string  `json:"status"`
	Seq             uint64  `json:"seq"`
	LastSampleAgeS  float64 `json:"last_sample_age_sec"`
	BrokerConnected *bool   `json:"broker_connected,omitempty"`
}

func (h *Health) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *Health) status() (healthStatus, bool) {
	st := healthStatus{LastSampleAgeS: -1}

	fresh := false
	if r, err := h.Source.Latest(); err == nil {
		age := r.Age(h.clock())
		st.Seq = r.Seq
		st.LastSampleAgeS = age.Seconds()
		fresh = h.StaleAfter <= 0 || age <= h.StaleAfter
	}

	broker := true
	if h.Broker != nil {
		broker = h.Broker.Connected()
		st.BrokerConnected = &broker
	}

	switch {
	case fresh && broker:
		st.Status = "ok"
	case fresh || broker:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st, fresh && broker
}

// ServeHealth always answers 200 with a JSON status body.
func (h *Health) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	st, _ := h.status()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// ServeReady answers 200 only when a fresh reading exists and the broker is connected.
func (h *Health) ServeReady(w http.ResponseWriter, _ *http.Request) {
	_, ready := h.status()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{ready})
}

// NewMux wires /metrics, /healthz and /readyz.
func NewMux(c *Collector, h *Health) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", h.ServeHealth)
	mux.HandleFunc("/readyz", h.ServeReady)
	return mux
}
