// internal/bus/transport.go
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"
)

// Transaction sizes for this device class.
const (
	CommandLen = 2
	FrameLen   = 6
)

var (
	// ErrTimeout is returned when a transaction exceeds the configured bound.
	ErrTimeout = errors.New("bus: transaction timeout")
	// ErrBusy is returned while a previously timed-out transaction is still in flight.
	ErrBusy = errors.New("bus: previous transaction still in flight")
	// ErrSize is returned for writes/reads outside the fixed transaction sizes.
	ErrSize = errors.New("bus: unsupported transaction size")
)

// Error is a bus-level failure (NACK, timeout, arbitration loss).
type Error struct {
	Op   string // "write" or "read"
	Addr uint16
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bus %s addr=0x%02X: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config is minimal transport config.
type Config struct {
	Addr    uint16
	Timeout time.Duration
}

// Transport issues raw transactions to one fixed device address.
// No retries, no payload inspection.
type Transport struct {
	bus     drivers.I2C
	addr    uint16
	timeout time.Duration

	inflight atomic.Bool
	// last is closed when the most recent driver call returns.
	last atomic.Pointer[chan struct{}]
}

// New creates a transport bound to addr on bus.
func New(bus drivers.I2C, cfg Config) (*Transport, error) {
	if bus == nil {
		return nil, errors.New("bus: i2c bus required")
	}
	if cfg.Addr == 0 || cfg.Addr > 0x7F {
		return nil, fmt.Errorf("bus: address 0x%02X is not a 7-bit address", cfg.Addr)
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("bus: timeout must be > 0")
	}
	return &Transport{bus: bus, addr: cfg.Addr, timeout: cfg.Timeout}, nil
}

// Addr returns the device address.
func (t *Transport) Addr() uint16 { return t.addr }

// Write sends one 2-byte command.
func (t *Transport) Write(ctx context.Context, b []byte) error {
	if len(b) != CommandLen {
		return &Error{Op: "write", Addr: t.addr, Err: ErrSize}
	}
	w := make([]byte, len(b))
	copy(w, b)
	return t.tx(ctx, "write", w, nil)
}

// Command sends a 16-bit command word, big-endian.
func (t *Transport) Command(ctx context.Context, word uint16) error {
	return t.Write(ctx, []byte{byte(word >> 8), byte(word)})
}

// Drain waits until no driver call is in flight, so a transaction
// abandoned by timeout or cancellation cannot make the next one fail busy.
// Callers must not start transactions concurrently with Drain.
func (t *Transport) Drain(ctx context.Context) error {
	p := t.last.Load()
	if p == nil {
		return nil
	}
	select {
	case <-*p:
		return nil
	case <-ctx.Done():
		return &Error{Op: "drain", Addr: t.addr, Err: ctx.Err()}
	}
}

// Read reads one n-byte frame.
func (t *Transport) Read(ctx context.Context, n int) ([]byte, error) {
	if n != FrameLen {
		return nil, &Error{Op: "read", Addr: t.addr, Err: ErrSize}
	}
	r := make([]byte, n)
	if err := t.tx(ctx, "read", nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

// tx runs one bus transaction bounded by the transport timeout.
// The driver call cannot be interrupted, so a timed-out call keeps the
// transport marked in flight until it returns; buffers handed to it are
// never returned to callers.
func (t *Transport) tx(ctx context.Context, op string, w, r []byte) error {
	if !t.inflight.CompareAndSwap(false, true) {
		return &Error{Op: op, Addr: t.addr, Err: ErrBusy}
	}

	released := make(chan struct{})
	t.last.Store(&released)

	done := make(chan error, 1)
	go func() {
		err := t.bus.Tx(t.addr, w, r)
		t.inflight.Store(false)
		close(released)
		done <- err
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return &Error{Op: op, Addr: t.addr, Err: err}
		}
		return nil
	case <-timer.C:
		return &Error{Op: op, Addr: t.addr, Err: ErrTimeout}
	case <-ctx.Done():
		return &Error{Op: op, Addr: t.addr, Err: ctx.Err()}
	}
}
