package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/rwbuffer/internal/config/dto"
	"github.com/jittakal/rwbuffer/internal/transport"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RWBUF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables.
// An empty path or a missing file leaves defaults and environment in effect.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand ${VAR} references in string values
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "rwbuffer")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Buffer defaults
	l.v.SetDefault("buffer.capacity", 4096)

	// RPC defaults
	l.v.SetDefault("rpc.port", 7070)
	l.v.SetDefault("rpc.read_timeout_ms", 5000)
	l.v.SetDefault("rpc.write_timeout_ms", 10000)
	l.v.SetDefault("rpc.max_request_bytes", 1<<20)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 5)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	ports := map[string]int{
		"rpc.port":                   config.RPC.Port,
		"observability.health.port":  config.Observability.Health.Port,
		"observability.metrics.port": config.Observability.Metrics.Port,
	}
	seen := make(map[int]string, len(ports))
	for name, port := range ports {
		if name == "observability.metrics.port" && !config.Observability.Metrics.Enabled {
			continue
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
		if other, dup := seen[port]; dup {
			return fmt.Errorf("%s and %s both use port %d", other, name, port)
		}
		seen[port] = name
	}

	if need := transport.EnvelopeSize(config.Buffer.Capacity); int64(config.RPC.MaxRequestBytes) < need {
		return fmt.Errorf("rpc.max_request_bytes (%d) cannot carry a write of buffer.capacity (%d), need at least %d",
			config.RPC.MaxRequestBytes, config.Buffer.Capacity, need)
	}

	if config.Shutdown.GracePeriodSeconds < 0 {
		return errors.New("shutdown.grace_period_seconds must not be negative")
	}

	return nil
}
