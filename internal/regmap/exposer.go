// internal/regmap/exposer.go
package regmap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/periodic"
	"github.com/tamzrod/pressure-bridge/internal/reading"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// Config is the minimal runtime config the exposition task needs.
type Config struct {
	Interval time.Duration
	Scale    sensor.RegisterScale

	// StatusBlock enables health/age/sequence words.
	StatusBlock bool
	StaleAfter  time.Duration
}

// Exposer copies the latest reading into the register image.
// It only reads the store; it never writes back.
type Exposer struct {
	cfg   Config
	src   reading.Source
	image *Image
	log   *slog.Logger
	now   func() time.Time

	lastSeq uint64
}

// NewExposer creates an exposition task.
func NewExposer(cfg Config, src reading.Source, image *Image, log *slog.Logger) (*Exposer, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("regmap: interval must be > 0")
	}
	if err := cfg.Scale.Validate(); err != nil {
		return nil, err
	}
	if src == nil || image == nil {
		return nil, errors.New("regmap: source and image required")
	}
	if image.Len() < MinWords {
		return nil, errors.New("regmap: image too small for measurements")
	}
	if cfg.StatusBlock {
		if image.Len() < MinWordsWithStatus {
			return nil, errors.New("regmap: image too small for status block")
		}
		if cfg.StaleAfter <= 0 {
			return nil, errors.New("regmap: stale_after must be > 0 with status block")
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Exposer{
		cfg:   cfg,
		src:   src,
		image: image,
		log:   log.With("component", "regmap"),
		now:   time.Now,
	}, nil
}

// Run updates the image once per interval until ctx is done.
func (e *Exposer) Run(ctx context.Context) {
	periodic.Run(ctx, e.cfg.Interval, func(context.Context) {
		e.ExposeOnce()
	})
}

// ExposeOnce performs exactly one tick.
// Empty store: the image is left at its zero sentinel.
func (e *Exposer) ExposeOnce() {
	r, err := e.src.Latest()
	if err != nil {
		// reading.ErrEmpty is the only error: keep the sentinel.
		return
	}

	p, t := e.cfg.Scale.Words(r.Sample)

	var health, secs uint16
	if e.cfg.StatusBlock {
		health, secs = e.quality(r)
	}

	e.image.update(func(w []uint16) {
		w[SlotPressure] = p
		w[SlotTemperature] = t
		if e.cfg.StatusBlock {
			w[SlotHealth] = health
			w[SlotSecondsSinceSample] = secs
			w[SlotSequence] = uint16(r.Seq)
		}
	})

	if r.Seq != e.lastSeq {
		e.lastSeq = r.Seq
		e.log.Debug("updated registers",
			"seq", r.Seq,
			"pressure", int16(p),
			"temperature", int16(t),
		)
	}
}

func (e *Exposer) quality(r reading.Reading) (health, secs uint16) {
	age := r.Age(e.now())
	if age < 0 {
		age = 0
	}

	health = HealthOK
	if age > e.cfg.StaleAfter {
		health = HealthStale
	}

	s := age / time.Second
	if s > MaxSeconds {
		s = MaxSeconds
	}
	return health, uint16(s)
}
