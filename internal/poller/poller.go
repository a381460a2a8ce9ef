// internal/poller/poller.go
package poller

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/regmap"
)

// Client abstracts the Modbus reads the poller needs.
// Payloads are raw big-endian register bytes, as goburrow returns them.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]byte, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]byte, error)   // FC 4
}

// Factory opens a new client. One attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval    time.Duration
	FC          uint8 // 3 or 4
	Words       uint16
	StatusBlock bool
}

// Poller is a clock-driven reader of the register map.
// On a failed cycle it drops its client; the factory is tried on the next tick.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
}

// New creates a poller with immutable config. factory may be nil.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.FC != 3 && cfg.FC != 4 {
		return nil, fmt.Errorf("poller: unsupported function code %d", cfg.FC)
	}
	need := uint16(regmap.MinWords)
	if cfg.StatusBlock {
		need = regmap.MinWordsWithStatus
	}
	if cfg.Words < need {
		return nil, fmt.Errorf("poller: need at least %d words", need)
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	return &Poller{cfg: cfg, client: client, factory: factory}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce() Snapshot {
	res := Snapshot{At: time.Now()}

	if p.client == nil {
		c, err := p.factory()
		if err != nil {
			res.Err = err
			return res
		}
		p.client = c
	}

	var (
		raw []byte
		err error
	)
	switch p.cfg.FC {
	case 3:
		raw, err = p.client.ReadHoldingRegisters(0, p.cfg.Words)
	case 4:
		raw, err = p.client.ReadInputRegisters(0, p.cfg.Words)
	}
	if err == nil && len(raw) != 2*int(p.cfg.Words) {
		err = fmt.Errorf("poller: got %d bytes, want %d", len(raw), 2*int(p.cfg.Words))
	}
	if err != nil {
		if p.factory != nil {
			p.client = nil
		}
		res.Err = err
		return res
	}

	words := unpackRegisters(raw)
	res.Words = words
	res.Pressure = int16(words[regmap.SlotPressure])
	res.Temperature = int16(words[regmap.SlotTemperature])
	if p.cfg.StatusBlock {
		res.Status = &Status{
			Health:             words[regmap.SlotHealth],
			SecondsSinceSample: words[regmap.SlotSecondsSinceSample],
			Seq:                words[regmap.SlotSequence],
		}
	}
	return res
}

func unpackRegisters(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}
