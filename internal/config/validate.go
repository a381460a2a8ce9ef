// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values mean "use the default" and are accepted here.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	b := &cfg.Bridge

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if b.Log.Level != "" {
		if _, ok := logLevels[strings.ToUpper(b.Log.Level)]; !ok {
			return fmt.Errorf("log.level %q: must be one of DEBUG, INFO, WARN, ERROR", b.Log.Level)
		}
	}

	// ------------------------------------------------------------
	// BUS
	// ------------------------------------------------------------

	if b.Bus.Address > 0x7F {
		return fmt.Errorf("bus.address 0x%X: must be a 7-bit address", b.Bus.Address)
	}
	if b.Bus.TimeoutMs < 0 {
		return fmt.Errorf("bus.timeout_ms must be >= 0")
	}
	if c := b.Bus.StartCommand; c != 0 && !sensor.IsStartCommand(c) {
		return fmt.Errorf("bus.start_command 0x%04X: not a continuous measurement command", c)
	}
	// a failed tick runs a read and a start re-assert, both bounded by the timeout
	if b.Bus.TimeoutMs > 0 && b.Acquisition.IntervalMs > 0 && 2*b.Bus.TimeoutMs >= b.Acquisition.IntervalMs {
		return fmt.Errorf("bus.timeout_ms %d: two transactions must fit in acquisition.interval_ms %d",
			b.Bus.TimeoutMs, b.Acquisition.IntervalMs)
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------

	if b.Sensor.PressureScale < 0 || b.Sensor.TemperatureScale < 0 {
		return fmt.Errorf("sensor scale factors must be >= 0")
	}

	// ------------------------------------------------------------
	// INTERVALS
	// ------------------------------------------------------------

	for name, v := range map[string]int{
		"acquisition.interval_ms":      b.Acquisition.IntervalMs,
		"exposition.interval_ms":       b.Exposition.IntervalMs,
		"telemetry.interval_ms":        b.Telemetry.IntervalMs,
		"telemetry.publish_timeout_ms": b.Telemetry.PublishTimeoutMs,
		"registers.stale_after_ms":     b.Registers.StaleAfterMs,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}

	// ------------------------------------------------------------
	// REGISTER MAP
	// ------------------------------------------------------------

	r := b.Registers
	if r.Count != 0 {
		need := uint16(2)
		if r.StatusBlock {
			need = 5
		}
		if r.Count < need {
			return fmt.Errorf("registers.count %d: need at least %d words", r.Count, need)
		}
		if r.Count > 125 {
			return fmt.Errorf("registers.count %d: exceeds one read request (125)", r.Count)
		}
	}
	if r.PressureDivisor < 0 || r.TemperatureDivisor < 0 {
		return fmt.Errorf("registers divisors must be > 0")
	}

	// ------------------------------------------------------------
	// FIELDBUS
	// ------------------------------------------------------------

	if b.Fieldbus.UnitID > 247 {
		return fmt.Errorf("fieldbus.unit_id %d: must be 1..247", b.Fieldbus.UnitID)
	}

	// ------------------------------------------------------------
	// TELEMETRY
	// ------------------------------------------------------------

	t := b.Telemetry
	// retained values need at-least-once delivery
	if t.QoS != nil && (*t.QoS < 1 || *t.QoS > 2) {
		return fmt.Errorf("telemetry.qos %d: must be 1 or 2", *t.QoS)
	}
	if t.PressureTopic != "" && t.PressureTopic == t.TemperatureTopic {
		return fmt.Errorf("telemetry topics must differ (both %q)", t.PressureTopic)
	}
	for _, topic := range []string{t.PressureTopic, t.TemperatureTopic} {
		if strings.ContainsAny(topic, "+#") {
			return fmt.Errorf("telemetry topic %q: wildcards not allowed", topic)
		}
	}

	in := t.Influx
	if in.URL != "" || in.Org != "" || in.Bucket != "" {
		if in.URL == "" || in.Org == "" || in.Bucket == "" {
			return fmt.Errorf("telemetry.influx: url, org and bucket must be set together")
		}
	}

	return nil
}
