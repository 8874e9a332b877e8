// Package buffer defines the interface of the shared byte buffer.
//
// A shared buffer holds a single fixed-capacity byte region guarded by a
// multiple-reader/single-writer lock. Readers may run concurrently, a writer
// runs alone.
package buffer

// StatsSnapshot is a point-in-time copy of the buffer counters and length.
type StatsSnapshot struct {
	Reads  uint64 `json:"reads"`
	Writes uint64 `json:"writes"`
	Length int    `json:"length"`
}

// SharedBuffer is a fixed-capacity byte buffer safe for concurrent use.
// All implementations must be thread-safe.
type SharedBuffer interface {
	// Read returns a copy of at most maxLen valid bytes.
	// A zero maxLen returns an empty result without counting a read.
	Read(maxLen int) ([]byte, error)

	// ReadInto copies at most len(dst) valid bytes into dst and returns the count.
	ReadInto(dst []byte) (int, error)

	// Write replaces the buffer contents with payload, truncated to capacity.
	// Returns the number of bytes stored.
	Write(payload []byte) (int, error)

	// Reset zeroes the storage, the valid length and both counters.
	Reset()

	// Stats returns a consistent snapshot of counters and length.
	Stats() StatsSnapshot

	// Capacity returns the fixed size of the storage.
	Capacity() int
}
