package bench

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jamiealquiza/tachymeter"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/rwbuffer/internal/client"
	"github.com/jittakal/rwbuffer/internal/errors"
)

// Harness runs reader and writer workers through a client.
type Harness struct {
	client *client.Client
	config Config
	logger *zap.Logger
}

// New creates a harness. Negative counts in cfg are treated as zero.
func New(c *client.Client, cfg Config, logger *zap.Logger) *Harness {
	return &Harness{
		client: c,
		config: cfg.normalize(),
		logger: logger,
	}
}

// Config returns the effective configuration.
func (h *Harness) Config() Config {
	return h.config
}

// progress is shared by every worker of a run.
type progress struct {
	reads      atomic.Uint64
	writes     atomic.Uint64
	mismatches atomic.Uint64
	stopped    atomic.Uint64

	readLatency  *tachymeter.Tachymeter
	writeLatency *tachymeter.Tachymeter
	bar          *progressbar.ProgressBar
}

func (p *progress) tick() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Run resets the buffer, runs all workers to completion and collects the
// report. Only a run that cannot be set up returns an error; worker
// failures are logged and counted.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	cfg := h.config

	workers := cfg.Readers + cfg.Writers
	if workers > MaxWorkers {
		return nil, &errors.OperationError{
			Op:     "run",
			Reason: fmt.Sprintf("%d workers exceed the limit of %d", workers, MaxWorkers),
			Err:    errors.ErrAllocationFailure,
		}
	}

	if err := h.client.Reset(ctx); err != nil {
		h.logger.Warn("reset before run failed", zap.Error(err))
	}

	p := &progress{
		readLatency:  tachymeter.New(&tachymeter.Config{Size: latencySamples}),
		writeLatency: tachymeter.New(&tachymeter.Config{Size: latencySamples}),
	}
	if cfg.Progress != nil {
		total := -1
		if !cfg.timed() {
			total = workers * cfg.Iterations
		}
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(cfg.Progress),
			progressbar.OptionSetDescription("operations"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(!cfg.timed()),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	h.logger.Info("starting run",
		zap.Int("readers", cfg.Readers),
		zap.Int("writers", cfg.Writers),
		zap.Int("iterations", cfg.Iterations),
		zap.Duration("duration", cfg.Duration),
		zap.String("prefix", cfg.Prefix),
	)

	var g errgroup.Group
	start := make(chan struct{})
	for w := 0; w < cfg.Writers; w++ {
		w := w
		g.Go(func() error {
			h.writer(runCtx, start, w, p)
			return nil
		})
	}
	for r := 0; r < cfg.Readers; r++ {
		r := r
		g.Go(func() error {
			h.reader(runCtx, start, r, p)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	began := time.Now()
	close(start)

	if cfg.timed() {
		timer := time.NewTimer(cfg.Duration)
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
		}
		stop()
	}
	<-done
	elapsed := time.Since(began)

	if p.bar != nil {
		_ = p.bar.Finish()
	}

	report := &Report{
		RunID:          uuid.New().String(),
		Config:         cfg,
		ObservedReads:  p.reads.Load(),
		ObservedWrites: p.writes.Load(),
		Mismatches:     p.mismatches.Load(),
		StoppedWorkers: p.stopped.Load(),
		Elapsed:        elapsed,
		ReadLatency:    summarize(p.readLatency, elapsed),
		WriteLatency:   summarize(p.writeLatency, elapsed),
	}

	// stats are taken after the run context ends, so use the caller's
	if err := h.client.GetStats(context.WithoutCancel(ctx), &report.Service); err != nil {
		h.logger.Error("failed to read service stats", zap.Error(err))
		report.StatsError = err.Error()
	}

	h.logger.Info("run finished",
		zap.Uint64("reads", report.ObservedReads),
		zap.Uint64("writes", report.ObservedWrites),
		zap.Duration("elapsed", elapsed),
		zap.Bool("consistent", report.Consistent()),
	)

	return report, nil
}

// iterate calls fn until the iteration budget is spent, the run is
// stopped or fn reports failure. Stops take effect between operations.
func (h *Harness) iterate(ctx context.Context, start <-chan struct{}, fn func(i int) bool) {
	select {
	case <-start:
	case <-ctx.Done():
		return
	}

	unbounded := h.config.timed()
	for i := 0; unbounded || i < h.config.Iterations; i++ {
		if ctx.Err() != nil {
			return
		}
		if !fn(i) {
			return
		}
	}
}

func (h *Harness) writer(ctx context.Context, start <-chan struct{}, id int, p *progress) {
	gen := newMessageGenerator(h.config.Prefix, h.config.MessageSize, h.config.PadWords)
	opCtx := context.WithoutCancel(ctx)
	logger := h.logger.With(zap.String("worker", fmt.Sprintf("w%02d", id)))

	h.iterate(ctx, start, func(i int) bool {
		msg := gen.Message(id, i, time.Now())

		began := time.Now()
		_, err := h.client.Write(opCtx, msg, len(msg))
		p.writeLatency.AddTime(time.Since(began))
		if err != nil {
			logger.Error("write failed, stopping writer", zap.Int("iteration", i), zap.Error(err))
			p.stopped.Add(1)
			return false
		}

		p.writes.Add(1)
		p.tick()
		return true
	})
}

func (h *Harness) reader(ctx context.Context, start <-chan struct{}, id int, p *progress) {
	buf := make([]byte, h.config.ReadSize)
	prefix := []byte(h.config.Prefix)
	opCtx := context.WithoutCancel(ctx)
	logger := h.logger.With(zap.String("worker", fmt.Sprintf("r%02d", id)))

	h.iterate(ctx, start, func(i int) bool {
		began := time.Now()
		n, err := h.client.Read(opCtx, buf, len(buf))
		p.readLatency.AddTime(time.Since(began))
		if err != nil {
			logger.Error("read failed, stopping reader", zap.Int("iteration", i), zap.Error(err))
			p.stopped.Add(1)
			return false
		}

		if n > 0 && len(prefix) > 0 && !bytes.HasPrefix(buf[:n], prefix) {
			p.mismatches.Add(1)
			logger.Warn("unexpected payload", zap.Int("iteration", i), zap.ByteString("data", buf[:n]))
		}

		p.reads.Add(1)
		p.tick()
		return true
	})
}
