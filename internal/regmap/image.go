// internal/regmap/image.go
package regmap

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfRange is returned for reads outside the image.
var ErrOutOfRange = errors.New("regmap: address range outside image")

// Image is the fieldbus-visible register image.
//
// One writer (the exposition task) replaces words under the write lock; any
// number of protocol handlers copy ranges under the read lock. Both critical
// sections are a bounded copy of at most len(words) values.
type Image struct {
	mu    sync.RWMutex
	words []uint16
}

// NewImage creates an image of n zeroed words.
func NewImage(n int) *Image {
	return &Image{words: make([]uint16, n)}
}

// Len returns the number of words.
func (im *Image) Len() int {
	return len(im.words)
}

// Snapshot returns a copy of the whole image.
func (im *Image) Snapshot() []uint16 {
	im.mu.RLock()
	defer im.mu.RUnlock()

	out := make([]uint16, len(im.words))
	copy(out, im.words)
	return out
}

// ReadRange returns a copy of qty words starting at addr.
func (im *Image) ReadRange(addr, qty uint16) ([]uint16, error) {
	start := int(addr)
	end := start + int(qty)
	if qty == 0 || end > len(im.words) {
		return nil, fmt.Errorf("%w: addr=%d qty=%d size=%d", ErrOutOfRange, addr, qty, len(im.words))
	}

	im.mu.RLock()
	defer im.mu.RUnlock()

	out := make([]uint16, qty)
	copy(out, im.words[start:end])
	return out, nil
}

// update runs fn on the live words in a single critical section.
// Only the exposition task calls it.
func (im *Image) update(fn func(words []uint16)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	fn(im.words)
}
