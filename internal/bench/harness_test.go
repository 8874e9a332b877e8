package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jittakal/rwbuffer/internal/buffer"
	"github.com/jittakal/rwbuffer/internal/client"
	"github.com/jittakal/rwbuffer/internal/dispatch"
	"github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/internal/observability"
	"github.com/jittakal/rwbuffer/pkg/op"
)

func newInProcess(t *testing.T) (*client.Client, *dispatch.Dispatcher) {
	t.Helper()
	d := dispatch.New(buffer.New(buffer.DefaultCapacity), zap.NewNop(), observability.NewMetrics(prometheus.NewRegistry()))
	return client.New(d), d
}

// faultyCaller fails selected operations and can rewrite read payloads.
type faultyCaller struct {
	next      client.Caller
	failOp    op.Code
	fail      bool
	readReply []byte
}

func (f *faultyCaller) Call(ctx context.Context, req *op.Request) (int, error) {
	if f.fail && req.Op == f.failOp {
		return 0, errors.InvalidArgument(req.Op.String(), "injected")
	}
	if f.readReply != nil && req.Op == op.Read {
		n, err := f.next.Call(ctx, req)
		if err != nil {
			return n, err
		}
		return copy(req.Buffer, f.readReply), nil
	}
	return f.next.Call(ctx, req)
}

func TestHarness_FixedIterations(t *testing.T) {
	c, _ := newInProcess(t)
	cfg := DefaultConfig()
	cfg.Readers = 4
	cfg.Writers = 2
	cfg.Iterations = 1000

	report, err := New(c, cfg, zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(2000), report.ObservedWrites)
	assert.Equal(t, uint64(4000), report.ObservedReads)
	assert.Equal(t, uint64(2000), report.Service.Writes)
	assert.Equal(t, uint64(4000), report.Service.Reads)
	assert.True(t, report.Consistent())
	assert.Zero(t, report.Mismatches)
	assert.Zero(t, report.StoppedWorkers)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2000, report.WriteLatency.Samples)
}

func TestHarness_ResetsBeforeRun(t *testing.T) {
	c, _ := newInProcess(t)
	ctx := context.Background()
	_, err := c.Write(ctx, []byte("left over"), 9)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Readers = 1
	cfg.Writers = 1
	cfg.Iterations = 10

	report, err := New(c, cfg, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), report.Service.Writes)
	assert.True(t, report.Consistent())
}

func TestHarness_AllocationFailure(t *testing.T) {
	c, _ := newInProcess(t)
	cfg := DefaultConfig()
	cfg.Readers = MaxWorkers
	cfg.Writers = 1

	report, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, errors.ErrAllocationFailure)
	assert.Equal(t, errors.CodeAllocationFailure, errors.Code(err))
}

func TestHarness_NegativeCountsClamped(t *testing.T) {
	c, _ := newInProcess(t)
	cfg := Config{Readers: -2, Writers: -1, Iterations: -5}

	h := New(c, cfg, zap.NewNop())
	assert.Equal(t, 0, h.Config().Readers)
	assert.Equal(t, 0, h.Config().Writers)
	assert.Equal(t, 0, h.Config().Iterations)
	assert.Equal(t, DefaultMessageSize, h.Config().MessageSize)
	assert.Equal(t, DefaultReadSize, h.Config().ReadSize)

	report, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ObservedReads)
	assert.Zero(t, report.ObservedWrites)
	assert.True(t, report.Consistent())
}

func TestHarness_DurationMode(t *testing.T) {
	c, _ := newInProcess(t)
	cfg := DefaultConfig()
	cfg.Readers = 2
	cfg.Writers = 1
	cfg.Iterations = 1
	cfg.Duration = 50 * time.Millisecond

	report, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	// iterations are ignored in timed runs
	assert.Greater(t, report.ObservedWrites, uint64(1))
	assert.GreaterOrEqual(t, report.Elapsed, cfg.Duration)
	assert.True(t, report.Consistent())
}

func TestHarness_ParentCancellationStopsTimedRun(t *testing.T) {
	c, _ := newInProcess(t)
	cfg := DefaultConfig()
	cfg.Duration = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	report, err := New(c, cfg, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Less(t, report.Elapsed, time.Minute)
	assert.True(t, report.Consistent())
}

func TestHarness_WriterErrorStopsOnlyThatWorker(t *testing.T) {
	_, d := newInProcess(t)
	c := client.New(&faultyCaller{next: d, failOp: op.Write, fail: true})

	cfg := DefaultConfig()
	cfg.Readers = 2
	cfg.Writers = 3
	cfg.Iterations = 100

	report, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), report.StoppedWorkers)
	assert.Zero(t, report.ObservedWrites)
	assert.Equal(t, uint64(200), report.ObservedReads)
	assert.True(t, report.Consistent())
}

func TestHarness_PrefixMismatchIsCounted(t *testing.T) {
	_, d := newInProcess(t)
	c := client.New(&faultyCaller{next: d, readReply: []byte("other payload")})

	cfg := DefaultConfig()
	cfg.Readers = 1
	cfg.Writers = 0
	cfg.Iterations = 25

	report, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(25), report.Mismatches)
	assert.Equal(t, uint64(25), report.ObservedReads)
	assert.Zero(t, report.StoppedWorkers)
}

func TestHarness_StatsFailureMarksReport(t *testing.T) {
	_, d := newInProcess(t)
	c := client.New(&faultyCaller{next: d, failOp: op.Stats, fail: true})

	cfg := DefaultConfig()
	cfg.Readers = 1
	cfg.Writers = 1
	cfg.Iterations = 5

	report, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.StatsError)
	assert.False(t, report.Consistent())
}

func TestHarness_Progress(t *testing.T) {
	c, _ := newInProcess(t)
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Readers = 1
	cfg.Writers = 1
	cfg.Iterations = 10
	cfg.Progress = &out

	_, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "operations")
}

func TestMessageGenerator(t *testing.T) {
	now := time.Unix(1700000000, 0)

	g := newMessageGenerator("msg", 256, 0)
	assert.Equal(t, "msg[w03] iter=42 time=1700000000", string(g.Message(3, 42, now)))

	g = newMessageGenerator("msg", 8, 0)
	assert.Equal(t, "msg[w03]", string(g.Message(3, 42, now)))

	g = newMessageGenerator("msg", 4096, 5)
	padded := string(g.Message(1, 0, now))
	assert.True(t, strings.HasPrefix(padded, "msg[w01] iter=0 time=1700000000 "))
	assert.Len(t, strings.Fields(padded), 3+5)
}

func TestReport_Render(t *testing.T) {
	c, _ := newInProcess(t)
	cfg := DefaultConfig()
	cfg.Iterations = 20

	report, err := New(c, cfg, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	report.RenderTable(&out)
	table := out.String()
	assert.Contains(t, table, report.RunID)
	assert.Contains(t, table, "counters agree")
	assert.Contains(t, table, "reads/s")
}

func TestReport_CloudEvent(t *testing.T) {
	report := &Report{
		RunID:          "run-1",
		Config:         Config{Readers: 4, Writers: 2, Iterations: 100, Duration: 3 * time.Second},
		ObservedReads:  4,
		ObservedWrites: 2,
		Elapsed:        time.Second,
	}
	report.Service.Reads = 4
	report.Service.Writes = 2

	event, err := report.CloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "run-1", event.ID())
	assert.Equal(t, EventTypeReport, event.Type())
	assert.Equal(t, EventSource, event.Source())

	var decoded Report
	require.NoError(t, event.DataAs(&decoded))
	assert.Equal(t, uint64(4), decoded.ObservedReads)
	assert.Equal(t, 4, decoded.Config.Readers)
	assert.Equal(t, 2, decoded.Config.Writers)
	assert.Equal(t, 100, decoded.Config.Iterations)
	assert.Equal(t, 3*time.Second, decoded.Config.Duration)

	var out bytes.Buffer
	require.NoError(t, report.WriteCloudEvent(&out))
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope["id"])
	assert.Equal(t, true, envelope["consistent"])
}

func TestReport_Rates(t *testing.T) {
	r := &Report{ObservedReads: 100, ObservedWrites: 50, Elapsed: 2 * time.Second}
	assert.InDelta(t, 50.0, r.ReadsPerSecond(), 0.001)
	assert.InDelta(t, 25.0, r.WritesPerSecond(), 0.001)
	assert.Zero(t, (&Report{}).ReadsPerSecond())
}
