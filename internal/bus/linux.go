// internal/bus/linux.go
package bus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenLinux initializes the host drivers and opens an I2C bus by name
// ("" selects the first available bus, "1" selects /dev/i2c-1).
// The returned bus satisfies drivers.I2C and must be closed by the caller.
func OpenLinux(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bus: host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("bus: open %q: %w", name, err)
	}
	return b, nil
}
