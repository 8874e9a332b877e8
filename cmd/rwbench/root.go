package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jittakal/rwbuffer/internal/bench"
	"github.com/jittakal/rwbuffer/internal/buffer"
	"github.com/jittakal/rwbuffer/internal/client"
	"github.com/jittakal/rwbuffer/internal/dispatch"
	"github.com/jittakal/rwbuffer/internal/observability"
	"github.com/jittakal/rwbuffer/internal/transport"
)

const (
	exitOK         = 0
	exitAllocation = 1
	exitUsage      = 2
)

// usageError marks failures caused by bad flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type options struct {
	readers    int
	writers    int
	iterations int
	prefix     string
	seconds    int

	capacity  int
	target    string
	timeout   time.Duration
	msgSize   int
	readSize  int
	padWords  int
	progress  bool
	output    string
	logLevel  string
	logFormat string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "rwbench",
		Short: "Stress a shared buffer with concurrent readers and writers",
		Long: `rwbench runs reader and writer workers against a shared buffer, either
in process or against a running rwbufferd, and checks that the service
counters agree with what the workers observed.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{fmt.Errorf("unexpected arguments: %v", args)}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	registerFlags(cmd.Flags(), opts)
	return cmd
}

func registerFlags(flags *pflag.FlagSet, opts *options) {
	flags.IntVarP(&opts.readers, "readers", "R", bench.DefaultReaders, "number of reader workers")
	flags.IntVarP(&opts.writers, "writers", "W", bench.DefaultWriters, "number of writer workers")
	flags.IntVarP(&opts.iterations, "iterations", "I", bench.DefaultIterations, "operations per worker")
	flags.StringVarP(&opts.prefix, "prefix", "s", bench.DefaultPrefix, "message prefix written and checked by readers")
	flags.IntVarP(&opts.seconds, "seconds", "S", 0, "run for this many seconds instead of a fixed iteration count")

	flags.IntVar(&opts.capacity, "capacity", buffer.DefaultCapacity, "in-process buffer capacity in bytes")
	flags.StringVar(&opts.target, "target", "", "base URL of a running rwbufferd (in-process when empty)")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-request timeout against --target")
	flags.IntVar(&opts.msgSize, "msg-size", bench.DefaultMessageSize, "maximum writer message size in bytes")
	flags.IntVar(&opts.readSize, "read-size", bench.DefaultReadSize, "reader buffer size in bytes")
	flags.IntVar(&opts.padWords, "pad-words", 0, "lorem words appended to each message")
	flags.BoolVar(&opts.progress, "progress", false, "show a progress bar on stderr")
	flags.StringVar(&opts.output, "output", "table", "report format: table or cloudevent")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")
}

func (o *options) validate() error {
	switch o.output {
	case "table", "cloudevent":
	default:
		return &usageError{fmt.Errorf("unknown output format %q", o.output)}
	}
	if o.target == "" && o.capacity <= 0 {
		return &usageError{fmt.Errorf("capacity must be positive, got %d", o.capacity)}
	}
	return nil
}

func (o *options) benchConfig(stderr io.Writer) bench.Config {
	cfg := bench.Config{
		Readers:     o.readers,
		Writers:     o.writers,
		Iterations:  o.iterations,
		Prefix:      o.prefix,
		Duration:    time.Duration(o.seconds) * time.Second,
		MessageSize: o.msgSize,
		ReadSize:    o.readSize,
		PadWords:    o.padWords,
	}
	if o.progress {
		cfg.Progress = stderr
	}
	return cfg
}

func runBench(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  opts.logLevel,
		Format: opts.logFormat,
		Output: "stderr",
	})
	if err != nil {
		return &usageError{fmt.Errorf("failed to initialize logger: %w", err)}
	}
	defer func() { _ = logger.Sync() }()

	var caller client.Caller
	if opts.target != "" {
		logger.Info("using remote buffer", zap.String("target", opts.target))
		caller = transport.NewHTTPCaller(opts.target, opts.timeout)
	} else {
		buf := buffer.New(opts.capacity)
		caller = dispatch.New(buf, logger, observability.NewMetrics(prometheus.NewRegistry()))
	}

	report, err := bench.New(client.New(caller), opts.benchConfig(stderr), logger).Run(ctx)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}

	if opts.output == "cloudevent" {
		return report.WriteCloudEvent(stdout)
	}
	report.RenderTable(stdout)
	return nil
}

// exitCode maps a command error to the process exit status. Allocation
// failures and any other run failure exit with 1.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage):
		return exitUsage
	default:
		return exitAllocation
	}
}
