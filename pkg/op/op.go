// Package op defines the operation descriptor accepted by the dispatcher
// and the fixed layout of the stats record.
package op

import (
	"encoding/binary"
	"fmt"

	"github.com/jittakal/rwbuffer/pkg/buffer"
)

// Code identifies an operation.
type Code int

// Operation codes. The numeric values are part of the call contract.
const (
	Read  Code = 0
	Write Code = 1
	Reset Code = 2
	Stats Code = 3
)

// StatsRecordSize is the encoded size of a stats record: reads, writes and
// length as little-endian 64-bit words.
const StatsRecordSize = 24

// String returns the lowercase operation name.
func (c Code) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	case Reset:
		return "reset"
	case Stats:
		return "stats"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Valid reports whether c is a known operation.
func (c Code) Valid() bool {
	return c >= Read && c <= Stats
}

// Request describes a single call. Buffer may be nil where the operation
// does not need one. Length is the number of bytes of Buffer the operation
// may use.
type Request struct {
	Op     Code
	Buffer []byte
	Length int
}

// NewRead builds a read request copying into dst.
func NewRead(dst []byte, length int) *Request {
	return &Request{Op: Read, Buffer: dst, Length: length}
}

// NewWrite builds a write request for the first length bytes of src.
func NewWrite(src []byte, length int) *Request {
	return &Request{Op: Write, Buffer: src, Length: length}
}

// NewReset builds a reset request.
func NewReset() *Request {
	return &Request{Op: Reset}
}

// NewStats builds a stats request with a freshly allocated record buffer.
func NewStats() *Request {
	return &Request{Op: Stats, Buffer: make([]byte, StatsRecordSize), Length: StatsRecordSize}
}

// EncodeStats writes s into dst using the fixed record layout.
func EncodeStats(dst []byte, s buffer.StatsSnapshot) error {
	if len(dst) < StatsRecordSize {
		return fmt.Errorf("stats record needs %d bytes, got %d", StatsRecordSize, len(dst))
	}
	binary.LittleEndian.PutUint64(dst[0:8], s.Reads)
	binary.LittleEndian.PutUint64(dst[8:16], s.Writes)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(s.Length))
	return nil
}

// DecodeStats reads a stats record from src.
func DecodeStats(src []byte) (buffer.StatsSnapshot, error) {
	if len(src) < StatsRecordSize {
		return buffer.StatsSnapshot{}, fmt.Errorf("stats record needs %d bytes, got %d", StatsRecordSize, len(src))
	}
	return buffer.StatsSnapshot{
		Reads:  binary.LittleEndian.Uint64(src[0:8]),
		Writes: binary.LittleEndian.Uint64(src[8:16]),
		Length: int(binary.LittleEndian.Uint64(src[16:24])),
	}, nil
}
