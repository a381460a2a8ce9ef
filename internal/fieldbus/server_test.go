// internal/fieldbus/server_test.go
package fieldbus

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/pressure-bridge/internal/reading"
	"github.com/tamzrod/pressure-bridge/internal/regmap"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls [][2]uint8
}

func (o *recordingObserver) ObserveRequest(fc, ex uint8) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, [2]uint8{fc, ex})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// startServer runs a server over an image populated by one exposition tick.
func startServer(t *testing.T, obs Observer, publish bool) (string, *regmap.Image) {
	t.Helper()

	st := reading.New()
	if publish {
		st.Publish(sensor.Sample{PressureRaw: 400, TemperatureRaw: 512})
	}
	im := regmap.NewImage(regmap.DefaultWords)
	e, err := regmap.NewExposer(regmap.Config{
		Interval: time.Second,
		Scale:    sensor.RegisterScale{PressureDivisor: 60, TemperatureDivisor: 200},
	}, st, im, quietLogger())
	if err != nil {
		t.Fatalf("NewExposer err=%v", err)
	}
	e.ExposeOnce()

	addr := freeAddr(t)
	s, err := New(Config{Listen: addr, UnitID: 1}, im, obs, quietLogger())
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	t.Cleanup(s.Close)
	return addr, im
}

func dial(t *testing.T, addr string, unit byte) modbus.Client {
	t.Helper()
	h := modbus.NewTCPClientHandler(addr)
	h.Timeout = 2 * time.Second
	h.SlaveId = unit
	if err := h.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return modbus.NewClient(h)
}

func words(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out
}

func exceptionCode(t *testing.T, err error) byte {
	t.Helper()
	var me *modbus.ModbusError
	if !errors.As(err, &me) {
		t.Fatalf("expected modbus exception, got %v", err)
	}
	return me.ExceptionCode
}

// ---- tests ----

func TestServer_ReadHoldingRegisters(t *testing.T) {
	obs := &recordingObserver{}
	addr, _ := startServer(t, obs, true)
	c := dial(t, addr, 1)

	b, err := c.ReadHoldingRegisters(0, regmap.DefaultWords)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters err=%v", err)
	}
	got := words(b)
	if got[0] != 6 || got[1] != 2 {
		t.Fatalf("registers: got=%v want [6 2 ...]", got)
	}
	for i := 2; i < len(got); i++ {
		if got[i] != 0 {
			t.Fatalf("reserved register %d not zero: %d", i, got[i])
		}
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.calls) != 1 || obs.calls[0] != [2]uint8{fcReadHoldingRegisters, 0} {
		t.Fatalf("observer calls: %v", obs.calls)
	}
}

func TestServer_ReadInputRegistersSameImage(t *testing.T) {
	addr, _ := startServer(t, nil, true)
	c := dial(t, addr, 1)

	b, err := c.ReadInputRegisters(1, 1)
	if err != nil {
		t.Fatalf("ReadInputRegisters err=%v", err)
	}
	if got := words(b); len(got) != 1 || got[0] != 2 {
		t.Fatalf("temperature register: got=%v want [2]", got)
	}
}

func TestServer_EmptyStoreReadsZeros(t *testing.T) {
	addr, _ := startServer(t, nil, false)
	c := dial(t, addr, 1)

	b, err := c.ReadHoldingRegisters(0, 2)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters err=%v", err)
	}
	if got := words(b); got[0] != 0 || got[1] != 0 {
		t.Fatalf("registers before first sample: got=%v want zeros", got)
	}
}

func TestServer_OutOfRange(t *testing.T) {
	addr, _ := startServer(t, nil, true)
	c := dial(t, addr, 1)

	_, err := c.ReadHoldingRegisters(regmap.DefaultWords-1, 2)
	if code := exceptionCode(t, err); code != modbus.ExceptionCodeIllegalDataAddress {
		t.Fatalf("exception: got=%d want=%d", code, modbus.ExceptionCodeIllegalDataAddress)
	}
}

func TestServer_WritesRefused(t *testing.T) {
	addr, im := startServer(t, nil, true)
	c := dial(t, addr, 1)

	_, err := c.WriteSingleRegister(0, 99)
	if code := exceptionCode(t, err); code != modbus.ExceptionCodeIllegalFunction {
		t.Fatalf("exception: got=%d want=%d", code, modbus.ExceptionCodeIllegalFunction)
	}

	_, err = c.WriteMultipleRegisters(0, 1, []byte{0, 99})
	if code := exceptionCode(t, err); code != modbus.ExceptionCodeIllegalFunction {
		t.Fatalf("exception: got=%d want=%d", code, modbus.ExceptionCodeIllegalFunction)
	}

	if got := im.Snapshot(); got[0] != 6 {
		t.Fatalf("image modified by remote write: %v", got)
	}
}

func TestServer_WrongUnitID(t *testing.T) {
	addr, _ := startServer(t, nil, true)
	c := dial(t, addr, 7)

	_, err := c.ReadHoldingRegisters(0, 2)
	if code := exceptionCode(t, err); code != byte(exTargetNoResponse) {
		t.Fatalf("exception: got=%d want=%d", code, byte(exTargetNoResponse))
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, regmap.NewImage(2), nil, nil); err == nil {
		t.Fatalf("expected listen error")
	}
	if _, err := New(Config{Listen: ":0"}, nil, nil, nil); err == nil {
		t.Fatalf("expected image error")
	}
}
