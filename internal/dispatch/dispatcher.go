// Package dispatch validates operation descriptors and routes them to the
// shared buffer.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	rwerrors "github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/internal/observability"
	"github.com/jittakal/rwbuffer/pkg/buffer"
	"github.com/jittakal/rwbuffer/pkg/op"
)

// Dispatcher routes validated requests to a SharedBuffer.
// It holds no locks of its own.
type Dispatcher struct {
	buf     buffer.SharedBuffer
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates a dispatcher for buf.
func New(buf buffer.SharedBuffer, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	metrics.SetBufferCapacity(buf.Capacity())
	return &Dispatcher{
		buf:     buf,
		logger:  logger,
		metrics: metrics,
	}
}

// Capacity returns the capacity of the underlying buffer.
func (d *Dispatcher) Capacity() int {
	return d.buf.Capacity()
}

// Call dispatches req. It satisfies the client Caller interface.
func (d *Dispatcher) Call(ctx context.Context, req *op.Request) (int, error) {
	return d.Dispatch(ctx, req)
}

// Invoke dispatches req and folds the outcome into a single signed result:
// non-negative byte counts on success, a negative code on failure.
func (d *Dispatcher) Invoke(ctx context.Context, req *op.Request) int64 {
	n, err := d.Dispatch(ctx, req)
	if err != nil {
		return rwerrors.Code(err)
	}
	return int64(n)
}

// Dispatch validates req and runs the matching buffer operation.
// It returns the bytes copied or written; RESET and STATS return 0.
func (d *Dispatcher) Dispatch(ctx context.Context, req *op.Request) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := Validate(req); err != nil {
		name := "unknown"
		if req != nil && req.Op.Valid() {
			name = req.Op.String()
		}
		d.metrics.IncOperations(name, status(err))
		d.logger.Debug("rejected operation", zap.String("operation", name), zap.Error(err))
		return 0, err
	}

	start := time.Now()
	n, err := d.route(req)
	d.metrics.ObserveOperationDuration(req.Op.String(), time.Since(start).Seconds())
	d.metrics.IncOperations(req.Op.String(), status(err))
	return n, err
}

func (d *Dispatcher) route(req *op.Request) (int, error) {
	switch req.Op {
	case op.Read:
		n, err := d.buf.ReadInto(req.Buffer[:req.Length])
		if err != nil {
			return 0, err
		}
		d.metrics.AddBytes("read", n)
		return n, nil

	case op.Write:
		n, err := d.buf.Write(req.Buffer[:req.Length])
		if err != nil {
			return 0, err
		}
		d.metrics.AddBytes("write", n)
		d.metrics.SetBufferLength(n)
		return n, nil

	case op.Reset:
		d.buf.Reset()
		d.metrics.SetBufferLength(0)
		d.metrics.IncResets()
		d.logger.Debug("buffer reset")
		return 0, nil

	case op.Stats:
		if err := op.EncodeStats(req.Buffer, d.buf.Stats()); err != nil {
			return 0, rwerrors.InvalidArgument("stats", "%v", err)
		}
		return 0, nil
	}

	// unreachable after Validate
	return 0, rwerrors.InvalidArgument("dispatch", "unknown operation %d", int(req.Op))
}

// Validate checks req without touching the buffer.
func Validate(req *op.Request) error {
	if req == nil {
		return rwerrors.InvalidArgument("dispatch", "nil request")
	}

	switch req.Op {
	case op.Read:
		if req.Length < 0 {
			return rwerrors.InvalidArgument("read", "negative length %d", req.Length)
		}
		if req.Length > len(req.Buffer) {
			return rwerrors.InvalidArgument("read", "length %d exceeds buffer of %d bytes", req.Length, len(req.Buffer))
		}
	case op.Write:
		if req.Buffer == nil {
			return rwerrors.InvalidArgument("write", "nil buffer")
		}
		if req.Length <= 0 {
			return rwerrors.InvalidArgument("write", "length must be positive, got %d", req.Length)
		}
		if req.Length > len(req.Buffer) {
			return rwerrors.InvalidArgument("write", "length %d exceeds buffer of %d bytes", req.Length, len(req.Buffer))
		}
	case op.Reset:
	case op.Stats:
		if req.Length < op.StatsRecordSize || len(req.Buffer) < op.StatsRecordSize {
			return rwerrors.InvalidArgument("stats", "destination needs %d bytes", op.StatsRecordSize)
		}
	default:
		return rwerrors.InvalidArgument("dispatch", "unknown operation %d", int(req.Op))
	}
	return nil
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, rwerrors.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
