// internal/config/normalize.go
package config

import (
	"log/slog"
	"strings"

	"github.com/tamzrod/pressure-bridge/internal/regmap"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

const (
	DefaultAcquisitionMs    = 50
	DefaultExpositionMs     = 50
	DefaultTelemetryMs      = 2000
	DefaultBusTimeoutMs     = 20
	MinStaleAfterMs         = 1000
	DefaultPublishTimeoutMs = 2000
	DefaultListen           = ":502"
	DefaultUnitID           = 1
	DefaultPressureTopic    = "bridge/pressure"
	DefaultTemperatureTopic = "bridge/temperature"
	DefaultQoS              = 1
)

var logLevels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

// LogLevel maps the configured level, INFO when unset.
func (c LogConfig) LogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToUpper(c.Level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Bridge

	if b.Bus.Address == 0 {
		b.Bus.Address = sensor.Address
	}
	if b.Bus.StartCommand == 0 {
		b.Bus.StartCommand = sensor.CmdContinuousAvg
	}
	if b.Bus.TimeoutMs == 0 {
		b.Bus.TimeoutMs = DefaultBusTimeoutMs
	}

	if b.Sensor.PressureScale == 0 {
		b.Sensor.PressureScale = sensor.DefaultPressureScale
	}
	if b.Sensor.TemperatureScale == 0 {
		b.Sensor.TemperatureScale = sensor.DefaultTemperatureScale
	}

	setDefault(&b.Acquisition.IntervalMs, DefaultAcquisitionMs)
	setDefault(&b.Exposition.IntervalMs, DefaultExpositionMs)
	setDefault(&b.Telemetry.IntervalMs, DefaultTelemetryMs)

	// ------------------------------------------------------------
	// REGISTER MAP
	// ------------------------------------------------------------

	if b.Registers.Count == 0 {
		b.Registers.Count = regmap.DefaultWords
	}
	// Unset divisors yield tenths of a unit for the configured sensor scale.
	if b.Registers.PressureDivisor == 0 {
		b.Registers.PressureDivisor = tenths(b.Sensor.PressureScale)
	}
	if b.Registers.TemperatureDivisor == 0 {
		b.Registers.TemperatureDivisor = tenths(b.Sensor.TemperatureScale)
	}
	if b.Registers.StatusBlock && b.Registers.StaleAfterMs == 0 {
		b.Registers.StaleAfterMs = StaleAfterMs(b.Acquisition.IntervalMs)
	}

	// ------------------------------------------------------------
	// FIELDBUS
	// ------------------------------------------------------------

	if b.Fieldbus.Listen == "" {
		b.Fieldbus.Listen = DefaultListen
	}
	if b.Fieldbus.UnitID == 0 {
		b.Fieldbus.UnitID = DefaultUnitID
	}

	// ------------------------------------------------------------
	// TELEMETRY
	// ------------------------------------------------------------

	t := &b.Telemetry
	if t.PressureTopic == "" {
		t.PressureTopic = DefaultPressureTopic
	}
	if t.TemperatureTopic == "" {
		t.TemperatureTopic = DefaultTemperatureTopic
	}
	if t.QoS == nil {
		q := uint8(DefaultQoS)
		t.QoS = &q
	}
	if t.PublishTimeoutMs == 0 {
		t.PublishTimeoutMs = DefaultPublishTimeoutMs
	}
	if t.PublishUnchanged == nil {
		v := true
		t.PublishUnchanged = &v
	}
}

func tenths(scale float64) int32 {
	d := int32(scale / 10)
	if d < 1 {
		return 1
	}
	return d
}

// StaleAfterMs is three missed acquisition ticks, never under one second.
func StaleAfterMs(acquisitionMs int) int {
	if v := 3 * acquisitionMs; v > MinStaleAfterMs {
		return v
	}
	return MinStaleAfterMs
}

func setDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
