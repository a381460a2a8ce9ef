// internal/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/pressure-bridge/internal/acquire"
	"github.com/tamzrod/pressure-bridge/internal/reading"
)

const namespace = "pressure_bridge"

// Collector owns the bridge's Prometheus registry.
// It implements acquire.Observer, fieldbus.Observer and telemetry.Observer.
type Collector struct {
	reg *prometheus.Registry

	acquisitions *prometheus.CounterVec
	requests     *prometheus.CounterVec
	publishes    *prometheus.CounterVec
}

// New registers all collectors. src may be nil.
func New(src reading.Source) *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisitions_total",
			Help:      "Acquisition ticks by outcome class.",
		}, []string{"class"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fieldbus_requests_total",
			Help:      "Modbus requests by function code and exception (0 = success).",
		}, []string{"function", "exception"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_publishes_total",
			Help:      "Telemetry publishes by sink and result.",
		}, []string{"sink", "result"}),
	}

	c.reg.MustRegister(c.acquisitions, c.requests, c.publishes)

	if src != nil {
		c.reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reading_sequence",
				Help:      "Sequence number of the latest valid sample (0 before the first).",
			}, func() float64 { return float64(src.Seq()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reading_age_seconds",
				Help:      "Seconds since the latest valid sample, -1 before the first.",
			}, func() float64 {
				r, err := src.Latest()
				if err != nil {
					return -1
				}
				return r.Age(time.Now()).Seconds()
			}),
		)
	}

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) ObserveAcquisition(class acquire.Class) {
	c.acquisitions.WithLabelValues(class.String()).Inc()
}

func (c *Collector) ObserveRequest(fc uint8, exception uint8) {
	c.requests.WithLabelValues(strconv.Itoa(int(fc)), strconv.Itoa(int(exception))).Inc()
}

func (c *Collector) ObservePublish(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.publishes.WithLabelValues(sink, result).Inc()
}
