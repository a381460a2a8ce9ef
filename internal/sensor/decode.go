// internal/sensor/decode.go
package sensor

import (
	"errors"
	"fmt"
)

// Frame is one raw measurement read.
// Layout: [p_hi, p_lo, p_crc, t_hi, t_lo, t_crc].
type Frame [FrameLen]byte

// Sample is one validated measurement in raw device counts.
type Sample struct {
	PressureRaw    int16
	TemperatureRaw int16
}

// ErrIntegrity matches every *IntegrityError.
var ErrIntegrity = errors.New("sensor: integrity check failed")

// ErrFrameSize is returned by FrameFrom for reads of the wrong length.
var ErrFrameSize = errors.New("sensor: bad frame size")

// IntegrityError reports a checksum mismatch on one group of a frame.
type IntegrityError struct {
	Group string // "pressure" or "temperature"
	Want  byte   // transmitted checksum
	Got   byte   // computed checksum
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("sensor: %s crc mismatch: transmitted=0x%02X computed=0x%02X", e.Group, e.Want, e.Got)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// FrameFrom copies a bus read into a Frame.
func FrameFrom(b []byte) (Frame, error) {
	var f Frame
	if len(b) != FrameLen {
		return f, fmt.Errorf("%w: got=%d want=%d", ErrFrameSize, len(b), FrameLen)
	}
	copy(f[:], b)
	return f, nil
}

// Decode validates both groups and extracts the raw values.
// All-or-nothing: a mismatch in either group discards both values.
func Decode(f Frame) (Sample, error) {
	if err := checkGroup("pressure", f[0:GroupLen]); err != nil {
		return Sample{}, err
	}
	if err := checkGroup("temperature", f[GroupLen:FrameLen]); err != nil {
		return Sample{}, err
	}

	return Sample{
		PressureRaw:    int16(uint16(f[0])<<8 | uint16(f[1])),
		TemperatureRaw: int16(uint16(f[3])<<8 | uint16(f[4])),
	}, nil
}

// Encode builds a frame with valid checksums for s.
func Encode(s Sample) Frame {
	var f Frame
	putGroup(f[0:GroupLen], uint16(s.PressureRaw))
	putGroup(f[GroupLen:FrameLen], uint16(s.TemperatureRaw))
	return f
}

func checkGroup(name string, g []byte) error {
	got := CRC8(g[0:2])
	if got != g[2] {
		return &IntegrityError{Group: name, Want: g[2], Got: got}
	}
	return nil
}

func putGroup(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
	dst[2] = CRC8(dst[0:2])
}
