// Package buffer implements the fixed-capacity shared byte buffer.
package buffer

import (
	"sync"

	"github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/pkg/buffer"
)

// DefaultCapacity is the storage size used when none is configured.
const DefaultCapacity = 4096

// Ensure implementation satisfies interface at compile time.
var _ buffer.SharedBuffer = (*SharedBuffer)(nil)

// SharedBuffer holds a single fixed-capacity byte region.
// Readers share the lock, writers and Reset hold it exclusively.
// Bytes past length are stale and never returned.
type SharedBuffer struct {
	storage  []byte
	length   int
	counters Counters
	mu       sync.RWMutex
}

// New creates a shared buffer of the given capacity.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *SharedBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SharedBuffer{
		storage: make([]byte, capacity),
	}
}

// Clamp returns min(requested, limit). It is the truncation policy for
// oversized writes and the length policy for reads.
func Clamp(requested, limit int) int {
	if requested > limit {
		return limit
	}
	return requested
}

// Capacity returns the fixed storage size.
func (b *SharedBuffer) Capacity() int {
	return len(b.storage)
}

// Read returns a copy of at most maxLen valid bytes.
func (b *SharedBuffer) Read(maxLen int) ([]byte, error) {
	if maxLen < 0 {
		return nil, errors.InvalidArgument("read", "negative length %d", maxLen)
	}
	if maxLen == 0 {
		return []byte{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]byte, Clamp(maxLen, b.length))
	copy(out, b.storage)
	b.counters.IncReads()
	return out, nil
}

// ReadInto copies at most len(dst) valid bytes into dst.
func (b *SharedBuffer) ReadInto(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := copy(dst, b.storage[:b.length])
	b.counters.IncReads()
	return n, nil
}

// Write replaces the buffer contents with payload. Payloads longer than the
// capacity are truncated silently.
func (b *SharedBuffer) Write(payload []byte) (int, error) {
	if len(payload) == 0 {
		return 0, errors.InvalidArgument("write", "empty payload")
	}
	n := Clamp(len(payload), len(b.storage))

	b.mu.Lock()
	defer b.mu.Unlock()

	copy(b.storage, payload[:n])
	b.length = n
	b.counters.IncWrites()
	return n, nil
}

// Reset zeroes the storage, the length and both counters.
func (b *SharedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.storage)
	b.length = 0
	b.counters.Reset()
}

// Stats returns counters and length observed at one instant.
func (b *SharedBuffer) Stats() buffer.StatsSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return buffer.StatsSnapshot{
		Reads:  b.counters.Reads(),
		Writes: b.counters.Writes(),
		Length: b.length,
	}
}
