// Package server implements the HTTP servers for operations, health checks and metrics.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jittakal/rwbuffer/internal/transport"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Config holds listen addresses and paths. A zero MetricsPort disables the
// metrics server.
type Config struct {
	RPCPort         int
	HealthPort      int
	MetricsPort     int
	LivenessPath    string
	ReadinessPath   string
	MetricsPath     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRequestBytes int64
}

func (c *Config) applyDefaults() {
	if c.LivenessPath == "" {
		c.LivenessPath = "/health/live"
	}
	if c.ReadinessPath == "" {
		c.ReadinessPath = "/health/ready"
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

type namedServer struct {
	name   string
	server *http.Server
}

// Server represents the HTTP servers of the buffer service.
type Server struct {
	servers []namedServer
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewServer creates the rpc, health and metrics servers.
func NewServer(
	cfg Config,
	invoker Invoker,
	healthChecker HealthChecker,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	cfg.applyDefaults()

	// Operation server
	rpcMux := http.NewServeMux()
	rpcMux.Handle(transport.OperationPath, OperationHandler(invoker, cfg.MaxRequestBytes, logger))

	// Health server
	healthMux := http.NewServeMux()
	healthMux.HandleFunc(cfg.LivenessPath, LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc(cfg.ReadinessPath, ReadinessHandler(healthChecker, logger))

	servers := []namedServer{
		{name: "rpc", server: newHTTPServer(cfg.RPCPort, rpcMux, cfg)},
		{name: "health", server: newHTTPServer(cfg.HealthPort, healthMux, cfg)},
	}

	if cfg.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		servers = append(servers, namedServer{name: "metrics", server: newHTTPServer(cfg.MetricsPort, metricsMux, cfg)})
	}

	return &Server{
		servers: servers,
		logger:  logger,
	}
}

func newHTTPServer(port int, handler http.Handler, cfg Config) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Start binds every server and serves in the background. A bind failure
// closes the listeners opened so far and is returned.
func (s *Server) Start() error {
	listeners := make([]net.Listener, 0, len(s.servers))
	for _, ns := range s.servers {
		ln, err := net.Listen("tcp", ns.server.Addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("failed to bind %s server on %s: %w", ns.name, ns.server.Addr, err)
		}
		listeners = append(listeners, ln)
	}

	for i, ns := range s.servers {
		ln := listeners[i]
		s.wg.Add(1)
		go func(ns namedServer) {
			defer s.wg.Done()
			s.logger.Info("starting server", zap.String("server", ns.name), zap.String("addr", ln.Addr().String()))
			if err := ns.server.Serve(ln); err != nil && err != http.ErrServerClosed {
				s.logger.Error("server failed", zap.String("server", ns.name), zap.Error(err))
			}
		}(ns)
	}

	return nil
}

// Shutdown gracefully shuts down all servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, len(s.servers))
	for _, ns := range s.servers {
		go func(ns namedServer) {
			if err := ns.server.Shutdown(ctx); err != nil {
				errChan <- fmt.Errorf("%s server: %w", ns.name, err)
				return
			}
			errChan <- nil
		}(ns)
	}

	var result *multierror.Error
	for range s.servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", zap.Error(err))
			result = multierror.Append(result, err)
		}
	}

	s.wg.Wait()
	return result.ErrorOrNil()
}
