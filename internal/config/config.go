// internal/config/config.go
package config

type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

type BridgeConfig struct {
	Log         LogConfig       `yaml:"log"`
	Bus         BusConfig       `yaml:"bus"`
	Sensor      SensorConfig    `yaml:"sensor"`
	Acquisition TaskConfig      `yaml:"acquisition"`
	Exposition  TaskConfig      `yaml:"exposition"`
	Registers   RegistersConfig `yaml:"registers"`
	Fieldbus    FieldbusConfig  `yaml:"fieldbus"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"` // DEBUG, INFO, WARN, ERROR
}

// ---- BUS ----

type BusConfig struct {
	Device       string `yaml:"device"`        // periph bus name, "" = first bus
	Address      uint16 `yaml:"address"`       // 7-bit
	StartCommand uint16 `yaml:"start_command"` // 0 = continuous averaged
	TimeoutMs    int    `yaml:"timeout_ms"`
}

// ---- SENSOR ----

type SensorConfig struct {
	PressureScale    float64 `yaml:"pressure_scale"`
	TemperatureScale float64 `yaml:"temperature_scale"`
}

// ---- TASKS ----

type TaskConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- REGISTERS ----

type RegistersConfig struct {
	Count              uint16 `yaml:"count"`
	PressureDivisor    int32  `yaml:"pressure_divisor"`
	TemperatureDivisor int32  `yaml:"temperature_divisor"`

	// Status block (optional, opt-in)
	StatusBlock  bool `yaml:"status_block"`
	StaleAfterMs int  `yaml:"stale_after_ms"`
}

// ---- FIELDBUS ----

type FieldbusConfig struct {
	Listen string `yaml:"listen"`
	UnitID uint8  `yaml:"unit_id"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	IntervalMs int `yaml:"interval_ms"`

	Broker   string `yaml:"broker"` // empty disables MQTT
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	PressureTopic    string `yaml:"pressure_topic"`
	TemperatureTopic string `yaml:"temperature_topic"`
	QoS              *uint8 `yaml:"qos"`

	PublishTimeoutMs int   `yaml:"publish_timeout_ms"`
	PublishUnchanged *bool `yaml:"publish_unchanged"`

	Influx InfluxConfig `yaml:"influx"`
}

type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the HTTP surface
}
