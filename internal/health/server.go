// Package health provides health check and monitoring for the railmon watcher.
//
// This package implements:
//   - HTTP health check endpoint
//   - Prometheus metrics endpoint
//   - Fetch status and uptime tracking
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Status represents the application health status.
//
// This is returned by the /health endpoint for monitoring tools.
//
// Fields:
//   - Status: "healthy", "degraded" (last fetch failed) or "unhealthy"
//     (failures reached the alert threshold)
//   - Uptime: How long the application has been running
//   - LastFetchTime: When the last complaint fetch completed
//   - LastFetchStatus: Status of last fetch ("success" or error message)
//   - ConsecutiveFailures: Failed fetches since the last success
//   - TrackedAlerts: Complaints with a live Telegram alert
type Status struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	LastFetchTime       string `json:"last_fetch_time"`
	LastFetchStatus     string `json:"last_fetch_status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	TrackedAlerts       int    `json:"tracked_alerts"`
}

// Monitor tracks application health.
//
// Thread-safety:
//   - All fields are protected by RWMutex
//   - Safe for concurrent updates from multiple goroutines
type Monitor struct {
	startTime       time.Time
	lastFetchTime   time.Time
	lastFetchStatus string
	failures        int
	failThreshold   int
	tracked         int
	mu              sync.RWMutex
}

// NewMonitor creates a new health monitor. failThreshold is the number of
// consecutive failures after which the monitor reports "unhealthy".
func NewMonitor(failThreshold int) *Monitor {
	if failThreshold < 1 {
		failThreshold = 1
	}
	return &Monitor{
		startTime:       time.Now(),
		lastFetchStatus: "not started",
		failThreshold:   failThreshold,
	}
}

// RecordFetch records the outcome of a fetch cycle.
//
// Parameters:
//   - err: nil on success
//   - tracked: Number of complaints with a live alert after the cycle
func (m *Monitor) RecordFetch(err error, tracked int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFetchTime = time.Now()
	m.tracked = tracked
	if err != nil {
		m.failures++
		m.lastFetchStatus = "error: " + err.Error()
		return
	}
	m.failures = 0
	m.lastFetchStatus = "success"
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := "healthy"
	switch {
	case m.failures >= m.failThreshold:
		status = "unhealthy"
	case m.failures > 0:
		status = "degraded"
	}

	lastFetch := ""
	if !m.lastFetchTime.IsZero() {
		lastFetch = m.lastFetchTime.Format("2006-01-02 15:04:05")
	}

	return Status{
		Status:              status,
		Uptime:              time.Since(m.startTime).Truncate(time.Second).String(),
		LastFetchTime:       lastFetch,
		LastFetchStatus:     m.lastFetchStatus,
		ConsecutiveFailures: m.failures,
		TrackedAlerts:       m.tracked,
	}
}

// Router builds the health HTTP handler.
//
// Endpoints:
//   - GET /health: JSON health status, 503 when unhealthy
//   - GET /metrics: Prometheus metrics
//
// Example response:
//
//	{
//	  "status": "healthy",
//	  "uptime": "1h2m3s",
//	  "last_fetch_time": "2026-01-15 10:30:00",
//	  "last_fetch_status": "success",
//	  "consecutive_failures": 0,
//	  "tracked_alerts": 4
//	}
func Router(monitor *Monitor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := monitor.GetStatus()

		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve runs the health server on port until ctx is cancelled.
func Serve(ctx context.Context, monitor *Monitor, port string) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           Router(monitor),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infof("✓ Health check server started on :%s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnf("⚠️  Health check server shutdown: %v", err)
		}
		return nil
	}
}
