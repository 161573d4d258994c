package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Registry holds every provisioner metric. The provisioner is a one-shot
	// process, so the registry is pushed rather than scraped.
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	stepLabels  = []string{"clinic", "kind", "status"}
	runLabels   = []string{"clinic", "result"}
	storeLabels = []string{"operation", "clinic", "status"}

	StepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_provisioner_steps_total",
			Help: "Total number of provisioning steps, labeled by kind and outcome status.",
		},
		stepLabels,
	)

	StepDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_provisioner_step_duration_seconds",
			Help:    "Histogram of provisioning step durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"kind"},
	)

	RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_provisioner_runs_total",
			Help: "Total number of clinic provisioning runs, labeled by result.",
		},
		runLabels,
	)

	RunDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_provisioner_run_duration_seconds",
			Help:    "Histogram of whole-clinic provisioning durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"clinic"},
	)

	LastRunTimestampSeconds = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clinic_provisioner_last_run_timestamp_seconds",
			Help: "Unix time of the last provisioning run of a clinic.",
		},
		[]string{"clinic"},
	)

	LastRunSuccess = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clinic_provisioner_last_run_success",
			Help: "1 if the last provisioning run of a clinic succeeded, 0 otherwise.",
		},
		[]string{"clinic"},
	)

	StoreOperationDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_provisioner_store_operation_duration_seconds",
			Help:    "Histogram of store open/close durations, including connection retries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		storeLabels,
	)

	NotificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_provisioner_notifications_total",
			Help: "Total number of run reports published, labeled by status.",
		},
		[]string{"status"},
	)
)

// Run results
const (
	ResultSuccess  = "success"
	ResultFatal    = "fatal_schema_error"
	ResultResource = "resource_error"
)

// InitMetrics toggles metric collection. Call this function during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// Enabled reports whether metrics are being collected.
func Enabled() bool {
	return metricsEnabled
}

// ObserveStep records one provisioning step.
func ObserveStep(clinic, kind, status string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	StepsTotal.WithLabelValues(sanitizeClinic(clinic), kind, status).Inc()
	StepDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRun records the result of provisioning one clinic.
func ObserveRun(clinic, result string, duration time.Duration, finishedAt time.Time) {
	if !metricsEnabled {
		return
	}
	clinic = sanitizeClinic(clinic)
	RunsTotal.WithLabelValues(clinic, result).Inc()
	RunDurationSeconds.WithLabelValues(clinic).Observe(duration.Seconds())
	LastRunTimestampSeconds.WithLabelValues(clinic).Set(float64(finishedAt.Unix()))
	if result == ResultSuccess {
		LastRunSuccess.WithLabelValues(clinic).Set(1)
	} else {
		LastRunSuccess.WithLabelValues(clinic).Set(0)
	}
}

// ObserveStoreOperation records the duration for opening or closing a clinic store.
func ObserveStoreOperation(operation, clinic string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperationDurationSeconds.WithLabelValues(operation, sanitizeClinic(clinic), status).Observe(duration.Seconds())
}

// IncNotification counts a report publish attempt.
func IncNotification(err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsTotal.WithLabelValues(status).Inc()
}

// Push sends the registry to a Prometheus Pushgateway under job.
func Push(ctx context.Context, url, job string) error {
	if !metricsEnabled || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// sanitizeClinic ensures the clinic label is valid or returns a default value.
func sanitizeClinic(clinic string) string {
	if clinic == "" {
		return "unknown"
	}
	return clinic
}
