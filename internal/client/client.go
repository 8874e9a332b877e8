// Package client provides typed calls against a shared buffer service.
package client

import (
	"context"

	"github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/pkg/buffer"
	"github.com/jittakal/rwbuffer/pkg/op"
)

// Caller carries an operation request to the buffer service.
type Caller interface {
	Call(ctx context.Context, req *op.Request) (int, error)
}

// Client builds operation requests and hands them to a Caller.
// It is stateless and safe for concurrent use when the Caller is.
type Client struct {
	caller Caller
}

// New creates a client on top of caller.
func New(caller Caller) *Client {
	return &Client{caller: caller}
}

// Read copies at most length bytes of the buffer into buf.
func (c *Client) Read(ctx context.Context, buf []byte, length int) (int, error) {
	return c.caller.Call(ctx, op.NewRead(buf, length))
}

// Write stores the first length bytes of buf.
func (c *Client) Write(ctx context.Context, buf []byte, length int) (int, error) {
	return c.caller.Call(ctx, op.NewWrite(buf, length))
}

// Reset clears the buffer and its counters.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.caller.Call(ctx, op.NewReset())
	return err
}

// GetStats fills out with a snapshot of the service counters.
func (c *Client) GetStats(ctx context.Context, out *buffer.StatsSnapshot) error {
	if out == nil {
		return errors.InvalidArgument("stats", "nil destination")
	}

	req := op.NewStats()
	if _, err := c.caller.Call(ctx, req); err != nil {
		return err
	}

	stats, err := op.DecodeStats(req.Buffer)
	if err != nil {
		return errors.BoundaryFault("stats", err)
	}
	*out = stats
	return nil
}
