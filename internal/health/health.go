// Package health provides health check endpoints for the view counter.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is anything whose backing store can be checked for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSink is notified whenever readiness changes.
type StatusSink interface {
	SetHealthStatus(healthy bool)
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	store         Pinger
	sink          StatusSink
	logger        *zap.Logger
	mu            sync.RWMutex
	ready         bool
	lastCheck     time.Time
	checkInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewHealthCheck creates a new HealthCheck instance and starts the
// background check. sink may be nil.
func NewHealthCheck(store Pinger, sink StatusSink, logger *zap.Logger) *HealthCheck {
	return newHealthCheck(store, sink, logger, 5*time.Second)
}

func newHealthCheck(store Pinger, sink StatusSink, logger *zap.Logger, interval time.Duration) *HealthCheck {
	hc := &HealthCheck{
		store:         store,
		sink:          sink,
		logger:        logger,
		ready:         false,
		checkInterval: interval,
		stop:          make(chan struct{}),
	}

	// Start background health check
	go hc.backgroundCheck()

	return hc
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK if the counter store answers.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if hc.IsReady() {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: "ready",
			Checks: map[string]string{"store": "healthy"},
		})
		return
	}

	// Perform a fresh check if not ready
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := hc.check(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: "not_ready",
			Checks: map[string]string{"store": "unhealthy"},
			Error:  err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ReadinessResponse{
		Status: "ready",
		Checks: map[string]string{"store": "healthy"},
	})
}

func (hc *HealthCheck) check(ctx context.Context) error {
	err := hc.store.Ping(ctx)

	hc.mu.Lock()
	hc.ready = err == nil
	hc.lastCheck = time.Now()
	hc.mu.Unlock()

	if hc.sink != nil {
		hc.sink.SetHealthStatus(err == nil)
	}
	return err
}

// backgroundCheck performs periodic health checks.
func (hc *HealthCheck) backgroundCheck() {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := hc.check(ctx); err != nil {
				hc.logger.Warn("health check failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Stop ends the background check.
func (hc *HealthCheck) Stop() {
	hc.stopOnce.Do(func() { close(hc.stop) })
}

// IsReady returns the current readiness status.
func (hc *HealthCheck) IsReady() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}

// SetReady sets the readiness status (for testing).
func (hc *HealthCheck) SetReady(ready bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.ready = ready
}
