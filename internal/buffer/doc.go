// Package buffer provides a fixed-capacity byte buffer shared by many goroutines.
//
// # SharedBuffer
//
// SharedBuffer stores the payload of the most recent write:
//
//	buf := buffer.New(4096)
//
//	n, err := buf.Write([]byte("hello")) // n == 5
//	data, err := buf.Read(10)             // data == "hello"
//
// # Truncation
//
// Writes longer than the capacity keep only their first Capacity() bytes and
// report Capacity() as the number of bytes written. No error is returned.
// Clamp is the function applying this policy:
//
//	n := buffer.Clamp(len(payload), buf.Capacity())
//
// # Thread Safety
//
// All operations are safe for concurrent use:
//
//   - Write() and Reset() take the write lock
//   - Read(), ReadInto() and Stats() take the read lock
//   - Read(0) returns immediately without locking and is not counted
//
// The read counter is incremented atomically because any number of readers
// may hold the read lock together.
//
// # Statistics
//
// Stats reads both counters and the valid length under the read lock, so a
// snapshot never mixes the length of one write with the write count of another:
//
//	stats := buf.Stats()
//	fmt.Printf("reads=%d writes=%d length=%d\n",
//	    stats.Reads, stats.Writes, stats.Length)
package buffer
