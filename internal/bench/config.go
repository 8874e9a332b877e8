// Package bench drives concurrent readers and writers against a shared
// buffer service and reports throughput and counter agreement.
package bench

import (
	"io"
	"time"
)

// MaxWorkers bounds readers plus writers for one run.
const MaxWorkers = 4096

const (
	DefaultReaders     = 4
	DefaultWriters     = 2
	DefaultIterations  = 10000
	DefaultPrefix      = "msg"
	DefaultMessageSize = 256
	DefaultReadSize    = 511

	// latency samples kept per operation kind
	latencySamples = 50000
)

// Config describes one run.
type Config struct {
	Readers    int    `json:"readers"`
	Writers    int    `json:"writers"`
	Iterations int    `json:"iterations"`
	Prefix     string `json:"prefix"`
	// Duration switches the run to wall-clock mode: iterations are
	// ignored and workers stop when it elapses.
	Duration time.Duration `json:"duration"`

	MessageSize int `json:"message_size"`
	ReadSize    int `json:"read_size"`
	PadWords    int `json:"pad_words"`

	// Progress receives a progress bar when set.
	Progress io.Writer `json:"-"`
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Readers:     DefaultReaders,
		Writers:     DefaultWriters,
		Iterations:  DefaultIterations,
		Prefix:      DefaultPrefix,
		MessageSize: DefaultMessageSize,
		ReadSize:    DefaultReadSize,
	}
}

// normalize clamps negative counts to zero and fills unset sizes.
func (c Config) normalize() Config {
	c.Readers = max(c.Readers, 0)
	c.Writers = max(c.Writers, 0)
	c.Iterations = max(c.Iterations, 0)
	c.PadWords = max(c.PadWords, 0)
	if c.Duration < 0 {
		c.Duration = 0
	}
	if c.MessageSize <= 0 {
		c.MessageSize = DefaultMessageSize
	}
	if c.ReadSize <= 0 {
		c.ReadSize = DefaultReadSize
	}
	return c
}

func (c Config) timed() bool {
	return c.Duration > 0
}
