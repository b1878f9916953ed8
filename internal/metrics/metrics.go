// Package metrics holds the Prometheus collectors shared across railmon.
//
// Collectors register with the default registry; /metrics on the health
// server exposes them.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts backend calls by operation and HTTP status code.
	// Transport failures use code "error".
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmon_api_requests_total",
		Help: "Backend API requests by operation and status code",
	}, []string{"op", "code"})

	// APIDuration tracks backend call latency.
	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "railmon_api_request_duration_seconds",
		Help:    "Backend API request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	}, []string{"op"})

	// SessionRefreshes counts token refreshes by outcome (ok, resignin, error).
	SessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmon_session_refreshes_total",
		Help: "Access token refreshes by outcome",
	}, []string{"result"})

	// FetchCycles counts monitor cycles by result (ok, error).
	FetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmon_fetch_cycles_total",
		Help: "Monitor fetch cycles by result",
	}, []string{"result"})

	// AlertsNotified counts Telegram alerts by priority and result.
	AlertsNotified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmon_alerts_notified_total",
		Help: "Emergency alerts pushed to Telegram by priority and result",
	}, []string{"priority", "result"})

	// TrackedAlerts is the number of complaints currently tracked in storage.
	TrackedAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "railmon_tracked_alerts",
		Help: "Complaints with a live Telegram alert",
	})

	// TelegramCalls counts Bot API calls by method and result.
	TelegramCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "railmon_telegram_calls_total",
		Help: "Telegram Bot API calls by method and result",
	}, []string{"method", "result"})
)

// Code renders an HTTP status for the code label; 0 means the request
// never got a response.
func Code(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

// Result renders an error as the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
