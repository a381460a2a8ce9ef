// internal/reading/store.go
package reading

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/sensor"
)

// ErrEmpty is returned by Latest before the first Publish.
var ErrEmpty = errors.New("reading: no sample published yet")

// Reading is one published sample. Immutable once stored.
type Reading struct {
	Sample sensor.Sample
	Seq    uint64    // 1 for the first publish, +1 per publish
	At     time.Time // publish time
}

// Age returns how long ago the reading was published.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.At)
}

// Source is the read-only view handed to readers.
type Source interface {
	Latest() (Reading, error)
	Seq() uint64
}

// Store holds the most recent valid sample.
//
// Single writer: only the acquisition task calls Publish.
// Readers load an immutable *Reading through an atomic pointer, so a reader
// sees either the previous or the next reading in full, never a mix, and
// neither side ever waits on the other.
type Store struct {
	cur atomic.Pointer[Reading]
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// Publish stores s as the latest reading and returns its sequence number.
// Not safe for concurrent writers.
func (st *Store) Publish(s sensor.Sample) uint64 {
	var seq uint64 = 1
	if prev := st.cur.Load(); prev != nil {
		seq = prev.Seq + 1
	}
	st.cur.Store(&Reading{Sample: s, Seq: seq, At: st.now()})
	return seq
}

// Latest returns the most recent reading, or ErrEmpty.
func (st *Store) Latest() (Reading, error) {
	r := st.cur.Load()
	if r == nil {
		return Reading{}, ErrEmpty
	}
	return *r, nil
}

// Seq returns the sequence number of the latest reading (0 when empty).
func (st *Store) Seq() uint64 {
	if r := st.cur.Load(); r != nil {
		return r.Seq
	}
	return 0
}
