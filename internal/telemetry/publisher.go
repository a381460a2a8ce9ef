// internal/telemetry/publisher.go
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tamzrod/pressure-bridge/internal/periodic"
	"github.com/tamzrod/pressure-bridge/internal/reading"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// Config is the minimal runtime config the publisher task needs.
type Config struct {
	Interval time.Duration
	Scale    sensor.RegisterScale

	// PublishTimeout bounds one sink publish.
	PublishTimeout time.Duration

	// PublishUnchanged republishes when the sequence has not advanced.
	PublishUnchanged bool

	// BreakerFailures opens a sink's breaker after this many consecutive failures.
	BreakerFailures uint32
	// BreakerOpen is how long an open breaker skips its sink.
	BreakerOpen time.Duration
}

type boundSink struct {
	sink    Sink
	cb      *gobreaker.CircuitBreaker
	lastSeq uint64
}

// Publisher republishes the latest reading to every sink.
// It only reads the store; it never writes back.
type Publisher struct {
	cfg   Config
	src   reading.Source
	sinks []*boundSink
	obs   Observer
	log   *slog.Logger
}

// NewPublisher creates a publisher task over the given sinks.
func NewPublisher(cfg Config, src reading.Source, sinks []Sink, obs Observer, log *slog.Logger) (*Publisher, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("telemetry: interval must be > 0")
	}
	if cfg.PublishTimeout <= 0 {
		return nil, errors.New("telemetry: publish timeout must be > 0")
	}
	if err := cfg.Scale.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("telemetry: source required")
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telemetry")

	p := &Publisher{cfg: cfg, src: src, obs: obs, log: log}
	for _, s := range sinks {
		p.sinks = append(p.sinks, &boundSink{sink: s, cb: newBreaker(s.Name(), cfg, log)})
	}
	return p, nil
}

func newBreaker(name string, cfg Config, log *slog.Logger) *gobreaker.CircuitBreaker {
	fails := cfg.BreakerFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("sink breaker state changed", "sink", name, "from", from.String(), "to", to.String())
		},
	})
}

// Run publishes once per interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	periodic.Run(ctx, p.cfg.Interval, func(ctx context.Context) {
		p.PublishOnce(ctx)
	})
}

// PublishOnce performs exactly one tick.
// Empty store: nothing is published, no placeholder value is ever sent.
func (p *Publisher) PublishOnce(ctx context.Context) {
	r, err := p.src.Latest()
	if err != nil {
		return
	}

	pv, tv := p.cfg.Scale.Apply(r.Sample)
	m := Message{
		Seq:            r.Seq,
		At:             r.At,
		Pressure:       pv,
		Temperature:    tv,
		PressureRaw:    r.Sample.PressureRaw,
		TemperatureRaw: r.Sample.TemperatureRaw,
	}

	for _, b := range p.sinks {
		if !p.cfg.PublishUnchanged && b.lastSeq == r.Seq {
			continue
		}
		err := p.publish(ctx, b, m)
		if p.obs != nil {
			p.obs.ObservePublish(b.sink.Name(), err)
		}
		if err != nil {
			if !errors.Is(err, gobreaker.ErrOpenState) {
				p.log.Warn("publish failed", "sink", b.sink.Name(), "seq", r.Seq, "err", err)
			}
			continue
		}
		b.lastSeq = r.Seq
	}
}

func (p *Publisher) publish(ctx context.Context, b *boundSink, m Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		pctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
		return nil, b.sink.Publish(pctx, m)
	})
	return err
}

// Close closes every sink.
func (p *Publisher) Close() error {
	var errs []error
	for _, b := range p.sinks {
		if err := b.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
