// internal/regmap/exposer_test.go
package regmap

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/reading"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// ---- fake source ----

type fakeSource struct {
	r   reading.Reading
	err error
}

func (f *fakeSource) Latest() (reading.Reading, error) { return f.r, f.err }
func (f *fakeSource) Seq() uint64                       { return f.r.Seq }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExposer(t *testing.T, cfg Config, src reading.Source, im *Image) *Exposer {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	e, err := NewExposer(cfg, src, im, quietLogger())
	if err != nil {
		t.Fatalf("NewExposer() err=%v", err)
	}
	return e
}

func allZero(words []uint16) bool {
	for _, w := range words {
		if w != 0 {
			return false
		}
	}
	return true
}

// ---- tests ----

func TestExposeOnce_ScenarioScaling(t *testing.T) {
	st := reading.New()
	st.Publish(sensor.Sample{PressureRaw: 400, TemperatureRaw: 512})

	im := NewImage(DefaultWords)
	e := newExposer(t, Config{
		Scale: sensor.RegisterScale{PressureDivisor: 60, TemperatureDivisor: 200},
	}, st, im)

	e.ExposeOnce()

	got := im.Snapshot()
	if got[SlotPressure] != 6 || got[SlotTemperature] != 2 {
		t.Fatalf("registers: got=%v want [6 2 ...]", got)
	}
	if !allZero(got[2:]) {
		t.Fatalf("reserved registers not zero: %v", got)
	}
}

func TestExposeOnce_EmptyStoreLeavesZeros(t *testing.T) {
	im := NewImage(DefaultWords)
	e := newExposer(t, Config{Scale: sensor.DefaultRegisterScale(), StatusBlock: true, StaleAfter: time.Second},
		reading.New(), im)

	e.ExposeOnce()

	if !allZero(im.Snapshot()) {
		t.Fatalf("image not zero before first sample: %v", im.Snapshot())
	}
}

func TestExposeOnce_RetainsPriorValuesOnEmptyRead(t *testing.T) {
	src := &fakeSource{r: reading.Reading{Sample: sensor.Sample{PressureRaw: 60, TemperatureRaw: 200}, Seq: 1}}
	im := NewImage(DefaultWords)
	e := newExposer(t, Config{Scale: sensor.RegisterScale{PressureDivisor: 60, TemperatureDivisor: 200}}, src, im)

	e.ExposeOnce()
	src.err = reading.ErrEmpty
	e.ExposeOnce()

	got := im.Snapshot()
	if got[SlotPressure] != 1 || got[SlotTemperature] != 1 {
		t.Fatalf("registers: got=%v want [1 1 ...]", got)
	}
}

func TestExposeOnce_StatusBlock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{r: reading.Reading{Sample: sensor.Sample{PressureRaw: 600}, Seq: 0x10002, At: base}}
	im := NewImage(DefaultWords)
	e := newExposer(t, Config{
		Scale:       sensor.DefaultRegisterScale(),
		StatusBlock: true,
		StaleAfter:  2 * time.Second,
	}, src, im)

	e.now = func() time.Time { return base.Add(time.Second) }
	e.ExposeOnce()

	got := im.Snapshot()
	if got[SlotHealth] != HealthOK {
		t.Fatalf("health: got=%d want=%d", got[SlotHealth], HealthOK)
	}
	if got[SlotSecondsSinceSample] != 1 {
		t.Fatalf("seconds: got=%d want=1", got[SlotSecondsSinceSample])
	}
	if got[SlotSequence] != 2 {
		t.Fatalf("sequence low word: got=%d want=2", got[SlotSequence])
	}

	e.now = func() time.Time { return base.Add(5 * time.Second) }
	e.ExposeOnce()
	if got := im.Snapshot(); got[SlotHealth] != HealthStale || got[SlotSecondsSinceSample] != 5 {
		t.Fatalf("stale status: got=%v", got)
	}

	e.now = func() time.Time { return base.Add(100 * time.Hour) }
	e.ExposeOnce()
	if got := im.Snapshot(); got[SlotSecondsSinceSample] != MaxSeconds {
		t.Fatalf("seconds must saturate: got=%d", got[SlotSecondsSinceSample])
	}
}

func TestNewExposer_Validation(t *testing.T) {
	st := reading.New()
	cases := []struct {
		name string
		cfg  Config
		im   *Image
	}{
		{"zero interval", Config{Scale: sensor.DefaultRegisterScale()}, NewImage(DefaultWords)},
		{"zero divisor", Config{Interval: time.Second}, NewImage(DefaultWords)},
		{"tiny image", Config{Interval: time.Second, Scale: sensor.DefaultRegisterScale()}, NewImage(1)},
		{"status without room", Config{Interval: time.Second, Scale: sensor.DefaultRegisterScale(), StatusBlock: true, StaleAfter: time.Second}, NewImage(3)},
		{"status without stale", Config{Interval: time.Second, Scale: sensor.DefaultRegisterScale(), StatusBlock: true}, NewImage(DefaultWords)},
	}
	for _, c := range cases {
		if _, err := NewExposer(c.cfg, st, c.im, nil); err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}

func TestImage_ReadRange(t *testing.T) {
	im := NewImage(4)
	im.update(func(w []uint16) { copy(w, []uint16{1, 2, 3, 4}) })

	got, err := im.ReadRange(1, 2)
	if err != nil {
		t.Fatalf("ReadRange err=%v", err)
	}
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("range: got=%v", got)
	}

	if _, err := im.ReadRange(3, 2); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := im.ReadRange(0, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for qty 0, got %v", err)
	}
}

// Pressure and temperature are always published equal, so a range read
// that returns two different words has seen a torn image update.
func TestImage_ConcurrentReadsNeverTorn(t *testing.T) {
	st := reading.New()
	im := NewImage(DefaultWords)
	e := newExposer(t, Config{Scale: sensor.RegisterScale{PressureDivisor: 1, TemperatureDivisor: 1}}, st, im)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	torn := make(chan []uint16, 1)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				w, err := im.ReadRange(SlotPressure, 2)
				if err != nil {
					continue
				}
				if w[0] != w[1] {
					select {
					case torn <- w:
					default:
					}
					return
				}
			}
		}()
	}

	for i := 1; i <= 5000; i++ {
		v := int16(i)
		st.Publish(sensor.Sample{PressureRaw: v, TemperatureRaw: v})
		e.ExposeOnce()
	}
	close(stop)
	wg.Wait()

	select {
	case w := <-torn:
		t.Fatalf("torn register read: %v", w)
	default:
	}
}
