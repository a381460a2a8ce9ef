// internal/sensor/scale.go
package sensor

import "errors"

// Scale converts raw counts to engineering units.
type Scale struct {
	Pressure    float64 // counts per Pa
	Temperature float64 // counts per degree Celsius
}

// DefaultScale returns the datasheet scale factors.
func DefaultScale() Scale {
	return Scale{Pressure: DefaultPressureScale, Temperature: DefaultTemperatureScale}
}

// PressurePa returns the differential pressure in Pa.
func (sc Scale) PressurePa(s Sample) float64 {
	return float64(s.PressureRaw) / sc.Pressure
}

// Celsius returns the temperature in degrees Celsius.
func (sc Scale) Celsius(s Sample) float64 {
	return float64(s.TemperatureRaw) / sc.Temperature
}

// RegisterScale maps raw counts onto the fixed-point integers exposed
// externally. Each value is raw / divisor, truncated toward zero.
//
// With the datasheet scales (60, 200) divisors of 6 and 20 yield tenths
// of Pa and tenths of degree Celsius.
type RegisterScale struct {
	PressureDivisor    int32
	TemperatureDivisor int32
}

var errZeroDivisor = errors.New("sensor: register divisor must be non-zero")

// DefaultRegisterScale returns divisors producing tenths of a unit.
func DefaultRegisterScale() RegisterScale {
	return RegisterScale{
		PressureDivisor:    DefaultPressureScale / 10,
		TemperatureDivisor: DefaultTemperatureScale / 10,
	}
}

// Validate rejects zero divisors.
func (rs RegisterScale) Validate() error {
	if rs.PressureDivisor == 0 || rs.TemperatureDivisor == 0 {
		return errZeroDivisor
	}
	return nil
}

// Apply returns the scaled signed values.
// Divisors must be non-zero (see Validate).
func (rs RegisterScale) Apply(s Sample) (pressure, temperature int16) {
	return int16(int32(s.PressureRaw) / rs.PressureDivisor),
		int16(int32(s.TemperatureRaw) / rs.TemperatureDivisor)
}

// Words returns the scaled values as 16-bit register words (two's complement).
func (rs RegisterScale) Words(s Sample) (pressure, temperature uint16) {
	p, t := rs.Apply(s)
	return uint16(p), uint16(t)
}
