// package metrics exposes prometheus metrics for batch runs
package metrics

import (
	"time"

	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/prometheus/client_golang/prometheus"
)

// BatchMetrics counts executed steps and converted items per batch.
//
// It implements [batch.Observer].
type BatchMetrics struct {
	registry *prometheus.Registry

	stepsTotal         *prometheus.CounterVec
	itemsMigratedTotal *prometheus.CounterVec
	stepErrorsTotal    *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
}

// NewBatchMetrics creates and registers batch metrics on registry.
func NewBatchMetrics(registry *prometheus.Registry) (*BatchMetrics, error) {
	m := &BatchMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BatchMetrics) initMetrics() {
	m.stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affmigrate_batch_steps_total",
			Help: "Total number of executed batch steps",
		},
		[]string{"batch", "status"}, // status: success, error
	)

	m.itemsMigratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affmigrate_batch_items_migrated_total",
			Help: "Total number of items converted by batch steps",
		},
		[]string{"batch"},
	)

	m.stepErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affmigrate_batch_step_errors_total",
			Help: "Total number of failed batch steps by error code",
		},
		[]string{"batch", "code"},
	)

	m.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "affmigrate_batch_step_duration_seconds",
			Help: "Time taken to execute one batch step",
			// 1ms to ~16s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"batch"},
	)
}

// Describe implements the Collector interface
func (m *BatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.stepsTotal.Describe(ch)
	m.itemsMigratedTotal.Describe(ch)
	m.stepErrorsTotal.Describe(ch)
	m.stepDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *BatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.stepsTotal.Collect(ch)
	m.itemsMigratedTotal.Collect(ch)
	m.stepErrorsTotal.Collect(ch)
	m.stepDuration.Collect(ch)
}

// ObserveStep records one executed step. Items converted before a failure still count.
func (m *BatchMetrics) ObserveStep(batchID string, converted int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.stepErrorsTotal.WithLabelValues(batchID, batch.ErrorCode(err)).Inc()
	}

	m.stepsTotal.WithLabelValues(batchID, status).Inc()
	if converted > 0 {
		m.itemsMigratedTotal.WithLabelValues(batchID).Add(float64(converted))
	}
	m.stepDuration.WithLabelValues(batchID).Observe(d.Seconds())
}
