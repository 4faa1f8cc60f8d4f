package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_requests_total",
			Help: "Total number of remote marketplace and ERP calls.",
		},
		[]string{"marketplace", "operation", "status"},
	)
	remoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_request_duration_seconds",
			Help:    "Histogram of remote call durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"marketplace", "operation", "status"},
	)
	passStagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pass_stages_total",
			Help: "Synchronization pass stages by result.",
		},
		[]string{"marketplace", "stage", "result"},
	)
	importOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_import_outcomes_total",
			Help: "Canonical variant upserts by outcome.",
		},
		[]string{"marketplace", "outcome"},
	)
	quarantineTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_quarantine_records_total",
			Help: "ERP records written to quarantine.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(remoteRequestsTotal)
	prometheus.MustRegister(remoteRequestDuration)
	prometheus.MustRegister(passStagesTotal)
	prometheus.MustRegister(importOutcomesTotal)
	prometheus.MustRegister(quarantineTotal)
}

// RecordRequest записывает метрики для удалённого вызова. statusCode 0 is a transport failure.
func RecordRequest(marketplace, operation string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	remoteRequestsTotal.WithLabelValues(marketplace, operation, status).Inc()
	remoteRequestDuration.WithLabelValues(marketplace, operation, status).Observe(duration.Seconds())
}

func RecordPass(marketplace, stage, result string) {
	passStagesTotal.WithLabelValues(marketplace, stage, result).Inc()
}

func RecordImport(marketplace, outcome string) {
	importOutcomesTotal.WithLabelValues(marketplace, outcome).Inc()
}

func RecordQuarantine(kind string) {
	quarantineTotal.WithLabelValues(kind).Inc()
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	if statusCode == 0 {
		return "error"
	} else if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode == http.StatusTooManyRequests {
		return "429"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
