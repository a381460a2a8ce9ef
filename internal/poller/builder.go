// internal/poller/builder.go
package poller

import (
	"time"

	pmodbus "github.com/tamzrod/pressure-bridge/internal/poller/modbus"
)

// Target describes the bridge endpoint to probe.
type Target struct {
	Endpoint    string
	UnitID      uint8
	Timeout     time.Duration
	Interval    time.Duration
	FC          uint8
	Words       uint16
	StatusBlock bool
}

// Build constructs a Poller and wires Modbus client lifecycle.
// Connection is reused while healthy.
// On transport death, Poller discards the client and uses factory on a future tick.
func Build(t Target) (*Poller, func() error, error) {
	var current *pmodbus.Client

	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		if current != nil {
			_ = current.Close()
		}
		c, err := pmodbus.New(pmodbus.Config{
			Endpoint: t.Endpoint,
			UnitID:   t.UnitID,
			Timeout:  t.Timeout,
		})
		if err != nil {
			current = nil
			return nil, err
		}
		current = c
		return c, nil
	}

	// initial client (fail fast at startup)
	client, err := factory()
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			Interval:    t.Interval,
			FC:          t.FC,
			Words:       t.Words,
			StatusBlock: t.StatusBlock,
		},
		client,
		factory,
	)
	if err != nil {
		_ = current.Close()
		return nil, nil, err
	}

	closer := func() error {
		if current == nil {
			return nil
		}
		return current.Close()
	}
	return p, closer, nil
}
