package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jittakal/rwbuffer/internal/buffer"
	"github.com/jittakal/rwbuffer/internal/client"
	"github.com/jittakal/rwbuffer/internal/dispatch"
	"github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/internal/observability"
	"github.com/jittakal/rwbuffer/internal/server"
	"github.com/jittakal/rwbuffer/internal/transport"
	pkgbuffer "github.com/jittakal/rwbuffer/pkg/buffer"
	"github.com/jittakal/rwbuffer/pkg/op"
)

func newRemote(t *testing.T, capacity int) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	d := dispatch.New(buffer.New(capacity), logger, observability.NewMetrics(prometheus.NewRegistry()))

	mux := http.NewServeMux()
	mux.Handle(transport.OperationPath, server.OperationHandler(d, 0, logger))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPCaller_RoundTrip(t *testing.T) {
	ts := newRemote(t, 4096)
	c := client.New(transport.NewHTTPCaller(ts.URL, 5*time.Second))
	ctx := context.Background()

	n, err := c.Write(ctx, []byte("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	dst := make([]byte, 16)
	n, err = c.Read(ctx, dst, len(dst))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(dst[:n]))

	var stats pkgbuffer.StatsSnapshot
	require.NoError(t, c.GetStats(ctx, &stats))
	assert.Equal(t, pkgbuffer.StatsSnapshot{Reads: 1, Writes: 1, Length: 5}, stats)

	require.NoError(t, c.Reset(ctx))
	require.NoError(t, c.GetStats(ctx, &stats))
	assert.Equal(t, pkgbuffer.StatsSnapshot{}, stats)
}

func TestHTTPCaller_WriteSendsOnlyLength(t *testing.T) {
	ts := newRemote(t, 4096)
	c := client.New(transport.NewHTTPCaller(ts.URL, 5*time.Second))
	ctx := context.Background()

	_, err := c.Write(ctx, []byte("hello world"), 5)
	require.NoError(t, err)

	dst := make([]byte, 32)
	n, err := c.Read(ctx, dst, len(dst))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(dst[:n]))
}

func TestHTTPCaller_LocalValidation(t *testing.T) {
	c := client.New(transport.NewHTTPCaller("http://127.0.0.1:1", time.Second))

	_, err := c.Write(context.Background(), nil, 0)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = c.Read(context.Background(), make([]byte, 2), 8)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestHTTPCaller_UnknownOperation(t *testing.T) {
	ts := newRemote(t, 4096)
	caller := transport.NewHTTPCaller(ts.URL, 5*time.Second)

	_, err := caller.Call(context.Background(), &op.Request{Op: op.Code(7)})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestHTTPCaller_BoundaryFault(t *testing.T) {
	ts := newRemote(t, 4096)
	url := ts.URL
	ts.Close()

	c := client.New(transport.NewHTTPCaller(url, time.Second))
	_, err := c.Write(context.Background(), []byte("x"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBoundaryFault)
	assert.Equal(t, errors.CodeBoundaryFault, errors.Code(err))
}

func TestHTTPCaller_Canceled(t *testing.T) {
	ts := newRemote(t, 4096)
	c := client.New(transport.NewHTTPCaller(ts.URL, 5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Write(ctx, []byte("x"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPCaller_ConcurrentClients(t *testing.T) {
	ts := newRemote(t, 4096)
	c := client.New(transport.NewHTTPCaller(ts.URL, 5*time.Second))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := c.Write(ctx, []byte("payload"), 7)
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			dst := make([]byte, 16)
			for j := 0; j < 50; j++ {
				_, err := c.Read(ctx, dst, len(dst))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	var stats pkgbuffer.StatsSnapshot
	require.NoError(t, c.GetStats(ctx, &stats))
	assert.Equal(t, uint64(200), stats.Reads)
	assert.Equal(t, uint64(200), stats.Writes)
}
