// internal/poller/types.go
package poller

import "time"

// Status is the decoded optional status block.
type Status struct {
	Health             uint16
	SecondsSinceSample uint16
	Seq                uint16
}

// Snapshot is the result of one poll cycle against the bridge's register map.
type Snapshot struct {
	At time.Time

	// Words is the raw register block, word 0 first.
	Words []uint16

	// Pressure and Temperature are the signed scaled values from words 0 and 1.
	Pressure    int16
	Temperature int16

	// Status is nil unless the status block was requested.
	Status *Status

	Err error // non-nil means the poll cycle failed
}
