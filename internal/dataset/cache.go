package dataset

import (
	"fmt"
	"sync"
)

// slotCache is a fixed-size, index-keyed cache for decoded examples. A slot
// starts empty and is populated on first access. Concurrent readers share the
// stored value; a duplicate first-write to the same slot is harmless because
// decodes are deterministic and put is last-writer-wins.
type slotCache[T any] struct {
	mu    sync.RWMutex
	slots []*T
}

func newSlotCache[T any](n int) *slotCache[T] {
	return &slotCache[T]{slots: make([]*T, n)}
}

func (c *slotCache[T]) get(idx int) (*T, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx < 0 || idx >= len(c.slots) {
		return nil, false, fmt.Errorf("dataset: cache index %d out of bounds [0, %d)", idx, len(c.slots))
	}

	v := c.slots[idx]

	return v, v != nil, nil
}

func (c *slotCache[T]) put(idx int, v *T) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx < 0 || idx >= len(c.slots) {
		return fmt.Errorf("dataset: cache index %d out of bounds [0, %d)", idx, len(c.slots))
	}

	c.slots[idx] = v

	return nil
}
