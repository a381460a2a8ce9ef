// internal/acquire/types.go
package acquire

import (
	"context"
	"errors"

	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// Bus is the transport surface the acquisition task needs.
type Bus interface {
	Command(ctx context.Context, word uint16) error
	Read(ctx context.Context, n int) ([]byte, error)
}

// Writer is the writer-only view of the reading store.
type Writer interface {
	Publish(s sensor.Sample) uint64
}

// Observer receives one outcome per tick. Optional.
type Observer interface {
	ObserveAcquisition(c Class)
}

// Class is the outcome of one acquisition tick.
type Class uint8

const (
	ClassOK Class = iota
	ClassTransport
	ClassIntegrity
)

func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassTransport:
		return "transport"
	case ClassIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Classify maps an error from a bus read or decode onto a Class.
// Anything that is not an integrity failure is treated as transport.
func Classify(err error) Class {
	if err == nil {
		return ClassOK
	}
	if errors.Is(err, sensor.ErrIntegrity) {
		return ClassIntegrity
	}
	return ClassTransport
}

// State is the acquisition state machine position.
type State int32

const (
	StateIdle State = iota
	StateSampling
)

func (s State) String() string {
	if s == StateSampling {
		return "sampling"
	}
	return "idle"
}

// Stats is a point-in-time copy of the acquisition counters.
type Stats struct {
	OK        uint64
	Transport uint64
	Integrity uint64

	// ConsecutiveIntegrity resets on any non-integrity outcome.
	ConsecutiveIntegrity uint32

	LastClass Class
}
