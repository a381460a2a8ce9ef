// internal/telemetry/influx.go
package telemetry

import (
	"context"
	"errors"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// InfluxConfig selects the history bucket.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Device      string // tag value

	// Scale adds engineering-unit fields; zero value uses the datasheet scale.
	Scale sensor.Scale
}

// Enabled reports whether enough is configured to write history.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Org != "" && c.Bucket != ""
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink records one history point per publish.
type InfluxSink struct {
	w           pointWriter
	closeFn     func()
	measurement string
	device      string
	scale       sensor.Scale
}

// NewInfluxSink opens a blocking write API for the configured bucket.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if !cfg.Enabled() {
		return nil, errors.New("telemetry: influx url, org and bucket required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return newInfluxSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), client.Close, cfg), nil
}

func newInfluxSink(w pointWriter, closeFn func(), cfg InfluxConfig) *InfluxSink {
	m := cfg.Measurement
	if m == "" {
		m = "differential_pressure"
	}
	sc := cfg.Scale
	if sc.Pressure == 0 || sc.Temperature == 0 {
		sc = sensor.DefaultScale()
	}
	return &InfluxSink{w: w, closeFn: closeFn, measurement: m, device: cfg.Device, scale: sc}
}

func (s *InfluxSink) Name() string { return "influx" }

// Publish writes the reading at its acquisition time.
func (s *InfluxSink) Publish(ctx context.Context, m Message) error {
	tags := map[string]string{}
	if s.device != "" {
		tags["device"] = s.device
	}
	raw := sensor.Sample{PressureRaw: m.PressureRaw, TemperatureRaw: m.TemperatureRaw}
	fields := map[string]interface{}{
		"pressure_pa":      s.scale.PressurePa(raw),
		"temperature_c":    s.scale.Celsius(raw),
		"pressure_deci":    int(m.Pressure),
		"temperature_deci": int(m.Temperature),
		"pressure_raw":     int(m.PressureRaw),
		"temperature_raw":  int(m.TemperatureRaw),
		"seq":              m.Seq,
	}
	return s.w.WritePoint(ctx, influxdb2.NewPoint(s.measurement, tags, fields, m.At))
}

func (s *InfluxSink) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
