// internal/acquire/acquirer.go
package acquire

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/periodic"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// IntegrityDegradedAfter is the number of consecutive integrity failures
// after which the bus is reported as degraded. Handling is unchanged:
// the last good reading is kept and the next tick proceeds as usual.
const IntegrityDegradedAfter = 3

// Config is the minimal runtime config the acquisition task needs.
type Config struct {
	Interval     time.Duration
	StartCommand uint16
}

// Acquirer is the only writer of the reading store.
type Acquirer struct {
	cfg   Config
	bus   Bus
	store Writer
	obs   Observer
	log   *slog.Logger

	state atomic.Int32

	// started is owned by the task goroutine.
	started bool

	mu    sync.Mutex
	stats Stats
}

// New creates an acquisition task. The start command is sent on the first tick.
func New(cfg Config, bus Bus, store Writer, obs Observer, log *slog.Logger) (*Acquirer, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("acquire: interval must be > 0")
	}
	if bus == nil {
		return nil, errors.New("acquire: bus required")
	}
	if store == nil {
		return nil, errors.New("acquire: store required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Acquirer{
		cfg:   cfg,
		bus:   bus,
		store: store,
		obs:   obs,
		log:   log.With("component", "acquire"),
	}, nil
}

// Run samples once per interval until ctx is done.
func (a *Acquirer) Run(ctx context.Context) {
	periodic.Run(ctx, a.cfg.Interval, func(ctx context.Context) {
		a.PollOnce(ctx)
	})
}

// PollOnce performs exactly one tick.
//
// The first tick only sends the start command. Every later tick reads one
// frame, decodes it and, only if valid, publishes it. A transport failure
// re-asserts the start command before the tick ends, so the next tick reads
// again. Failures never touch the store.
func (a *Acquirer) PollOnce(ctx context.Context) Class {
	a.state.Store(int32(StateSampling))
	defer a.state.Store(int32(StateIdle))

	if !a.started {
		a.started = true
		if err := a.bus.Command(ctx, a.cfg.StartCommand); err != nil {
			a.log.Warn("start command failed", "command", a.cfg.StartCommand, "err", err)
			return a.record(ClassTransport, err)
		}
		a.log.Info("continuous measurement started", "command", a.cfg.StartCommand)
		return ClassOK
	}

	s, err := a.sample(ctx)
	class := Classify(err)
	switch class {
	case ClassOK:
		seq := a.store.Publish(s)
		a.log.Debug("sample published", "seq", seq, "pressure_raw", s.PressureRaw, "temperature_raw", s.TemperatureRaw)
	case ClassTransport:
		a.reassert(ctx)
	}
	return a.record(class, err)
}

// reassert re-sends the start command in case the device reset.
// A failure here is already covered by the tick's transport error.
func (a *Acquirer) reassert(ctx context.Context) {
	if err := a.bus.Command(ctx, a.cfg.StartCommand); err != nil {
		a.log.Debug("start re-assert failed", "command", a.cfg.StartCommand, "err", err)
	}
}

func (a *Acquirer) sample(ctx context.Context) (sensor.Sample, error) {
	raw, err := a.bus.Read(ctx, sensor.FrameLen)
	if err != nil {
		return sensor.Sample{}, err
	}
	f, err := sensor.FrameFrom(raw)
	if err != nil {
		return sensor.Sample{}, err
	}
	return sensor.Decode(f)
}

// record updates counters and logs class transitions only.
func (a *Acquirer) record(class Class, err error) Class {
	a.mu.Lock()
	prev := a.stats.LastClass
	switch class {
	case ClassOK:
		a.stats.OK++
		a.stats.ConsecutiveIntegrity = 0
	case ClassTransport:
		a.stats.Transport++
		a.stats.ConsecutiveIntegrity = 0
	case ClassIntegrity:
		a.stats.Integrity++
		a.stats.ConsecutiveIntegrity++
	}
	a.stats.LastClass = class
	consecutive := a.stats.ConsecutiveIntegrity
	a.mu.Unlock()

	if a.obs != nil {
		a.obs.ObserveAcquisition(class)
	}

	switch {
	case class == ClassOK && prev != ClassOK:
		a.log.Info("acquisition recovered", "previous", prev.String())
	case class != ClassOK && prev != class:
		a.log.Warn("acquisition failing, keeping last good reading", "class", class.String(), "err", err)
	case class == ClassIntegrity && consecutive == IntegrityDegradedAfter:
		a.log.Warn("bus degraded: consecutive integrity failures", "count", consecutive, "err", err)
	case class != ClassOK:
		a.log.Debug("acquisition failed", "class", class.String(), "err", err)
	}

	return class
}

// State returns the current state machine position.
func (a *Acquirer) State() State {
	return State(a.state.Load())
}

// Stats returns a copy of the counters.
func (a *Acquirer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
