package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// NewLogger creates a new structured logger based on configuration.
// The "console" and "text" formats use the development encoder, anything
// else logs JSON.
func NewLogger(config LoggingConfig) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(config.Format) {
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = ParseLevel(config.Level)

	switch strings.ToLower(config.Output) {
	case "stderr":
		cfg.OutputPaths = []string{"stderr"}
	case "stdout", "":
		cfg.OutputPaths = []string{"stdout"}
	default:
		cfg.OutputPaths = []string{config.Output}
	}

	return cfg.Build()
}

// ParseLevel parses the log level string. Unknown levels map to info.
func ParseLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(level) {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}
