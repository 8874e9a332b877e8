package buffer

import "sync/atomic"

// Counters tracks completed reads and writes.
// Increments are atomic so they stay exact when many readers hold the
// shared lock at once.
type Counters struct {
	reads  atomic.Uint64
	writes atomic.Uint64
}

// IncReads records one completed read.
func (c *Counters) IncReads() {
	c.reads.Add(1)
}

// IncWrites records one completed write.
func (c *Counters) IncWrites() {
	c.writes.Add(1)
}

// Reads returns the current read count.
func (c *Counters) Reads() uint64 {
	return c.reads.Load()
}

// Writes returns the current write count.
func (c *Counters) Writes() uint64 {
	return c.writes.Load()
}

// Reset sets both counters to zero.
func (c *Counters) Reset() {
	c.reads.Store(0)
	c.writes.Store(0)
}
