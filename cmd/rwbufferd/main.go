package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jittakal/rwbuffer/internal/buffer"
	"github.com/jittakal/rwbuffer/internal/config"
	"github.com/jittakal/rwbuffer/internal/config/dto"
	"github.com/jittakal/rwbuffer/internal/dispatch"
	"github.com/jittakal/rwbuffer/internal/observability"
	"github.com/jittakal/rwbuffer/internal/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		stop()
		log.Fatalf("application error: %v", err)
	}
}

// configPath resolves the configuration file.
// Priority: CLI flag > RWBUF_CONFIG_PATH env var > default path
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("RWBUF_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return "config/application.yaml"
}

func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("rwbufferd", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader().Load(configPath(*configFlag))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting shared buffer service",
		zap.String("version", cfg.Application.Version),
		zap.String("commit", commit),
		zap.String("build", version),
		zap.String("environment", cfg.Application.Environment),
		zap.Int("capacity", cfg.Buffer.Capacity),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions, run in reverse order
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", zap.String("component", name))
	}

	buf := buffer.New(cfg.Buffer.Capacity)
	dispatcher := dispatch.New(buf, logger, metrics)
	health := server.NewBufferHealth(buf)

	httpServer := server.NewServer(serverConfig(cfg), dispatcher, health, registry, logger)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP servers: %w", err)
	}
	addCleanup("http-server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod()+time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("application started successfully", zap.Int("rpc_port", cfg.RPC.Port))

	<-ctx.Done()
	logger.Info("initiating graceful shutdown")
	health.MarkDraining()

	var result *multierror.Error
	for i := len(cleanupFuncs) - 1; i >= 0; i-- {
		if err := cleanupFuncs[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
		return err
	}

	stats := buf.Stats()
	logger.Info("application stopped successfully",
		zap.Uint64("reads", stats.Reads),
		zap.Uint64("writes", stats.Writes),
	)
	return nil
}

func serverConfig(cfg *dto.ApplicationConfig) server.Config {
	sc := server.Config{
		RPCPort:         cfg.RPC.Port,
		HealthPort:      cfg.Observability.Health.Port,
		LivenessPath:    cfg.Observability.Health.LivenessPath,
		ReadinessPath:   cfg.Observability.Health.ReadinessPath,
		ReadTimeout:     time.Duration(cfg.RPC.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:    time.Duration(cfg.RPC.WriteTimeoutMS) * time.Millisecond,
		MaxRequestBytes: int64(cfg.RPC.MaxRequestBytes),
	}
	if cfg.Observability.Metrics.Enabled {
		sc.MetricsPort = cfg.Observability.Metrics.Port
		sc.MetricsPath = cfg.Observability.Metrics.Path
	}
	return sc
}
