package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/rwbuffer/pkg/buffer"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for readiness probes.
// Readiness probes indicate if the service accepts operations.
func ReadinessHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.IsHealthy() || !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", zap.Error(err))
	}
}

// BufferHealth reports on a shared buffer. It stays live for the life of
// the process and ready until MarkDraining is called.
type BufferHealth struct {
	buf      buffer.SharedBuffer
	draining atomic.Bool
}

// NewBufferHealth creates a health checker for buf.
func NewBufferHealth(buf buffer.SharedBuffer) *BufferHealth {
	return &BufferHealth{buf: buf}
}

// MarkDraining flips readiness off ahead of shutdown.
func (h *BufferHealth) MarkDraining() {
	h.draining.Store(true)
}

func (h *BufferHealth) Liveness() bool {
	return true
}

func (h *BufferHealth) Readiness(ctx context.Context) bool {
	return ctx.Err() == nil && !h.draining.Load()
}

func (h *BufferHealth) IsHealthy() bool {
	return !h.draining.Load()
}

// GetStatus returns capacity, length and counters as strings.
func (h *BufferHealth) GetStatus() map[string]string {
	stats := h.buf.Stats()
	status := "healthy"
	if h.draining.Load() {
		status = "draining"
	}
	return map[string]string{
		"status":   status,
		"capacity": strconv.Itoa(h.buf.Capacity()),
		"length":   strconv.Itoa(stats.Length),
		"reads":    strconv.FormatUint(stats.Reads, 10),
		"writes":   strconv.FormatUint(stats.Writes, 10),
	}
}
