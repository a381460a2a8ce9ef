// internal/telemetry/types.go
package telemetry

import (
	"context"
	"time"
)

// Message is one telemetry snapshot handed to every sink.
// Pressure and Temperature are the scaled fixed-point values (tenths of a unit
// with the default scale), the same numbers exposed on the register map.
type Message struct {
	Seq uint64
	At  time.Time

	Pressure    int16
	Temperature int16

	PressureRaw    int16
	TemperatureRaw int16
}

// Sink delivers telemetry to one external system.
type Sink interface {
	Name() string
	Publish(ctx context.Context, m Message) error
	Close() error
}

// Observer receives one outcome per sink publish. Optional.
type Observer interface {
	ObservePublish(sink string, err error)
}
