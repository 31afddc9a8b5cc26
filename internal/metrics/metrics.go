package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	coordinatesMintedTotal *prometheus.CounterVec
	versionsAdvancedTotal  prometheus.Counter
	storeOpsTotal          *prometheus.CounterVec
	externalLookupsTotal   *prometheus.CounterVec
	sweepDeletionsTotal    prometheus.Counter
	operationDuration      *prometheus.HistogramVec

	metricsOnce sync.Once
)

// Recorder provides methods to record secret-engine metrics.
// Metrics are lazily registered on first use.
type Recorder struct{}

// NewRecorder creates a new Recorder, registering all metrics once.
func NewRecorder() *Recorder {
	InitMetrics()
	return &Recorder{}
}

// InitMetrics initializes all Prometheus metrics. Safe to call repeatedly.
func InitMetrics() {
	metricsOnce.Do(func() {
		coordinatesMintedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confseal_coordinates_minted_total",
				Help: "Total number of secret coordinates minted",
			},
			[]string{"owner_kind"},
		)

		versionsAdvancedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "confseal_versions_advanced_total",
				Help: "Total number of coordinate version advances",
			},
		)

		storeOpsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confseal_store_operations_total",
				Help: "Total secret store operations by type and status",
			},
			[]string{"operation", "status"},
		)

		externalLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confseal_external_lookups_total",
				Help: "Total external secret manager lookups by status",
			},
			[]string{"status"},
		)

		sweepDeletionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "confseal_sweep_deletions_total",
				Help: "Total ephemeral coordinates deleted by the expiry sweep",
			},
		)

		operationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confseal_operation_duration_seconds",
				Help:    "Duration of obfuscate/hydrate operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"operation"},
		)
	})
}

// RecordMint records a freshly minted coordinate. ownerKind is "workspace"
// or "sentinel".
func (r *Recorder) RecordMint(ownerKind string) {
	coordinatesMintedTotal.WithLabelValues(ownerKind).Inc()
}

// RecordVersionAdvance records a coordinate version advance.
func (r *Recorder) RecordVersionAdvance() {
	versionsAdvancedTotal.Inc()
}

// RecordStoreOp records one store operation outcome.
func (r *Recorder) RecordStoreOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeOpsTotal.WithLabelValues(operation, status).Inc()
}

// RecordExternalLookup records one external manager lookup outcome.
func (r *Recorder) RecordExternalLookup(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	externalLookupsTotal.WithLabelValues(status).Inc()
}

// RecordSweepDeletion records one successful expiry-sweep deletion.
func (r *Recorder) RecordSweepDeletion() {
	sweepDeletionsTotal.Inc()
}

// ObserveDuration records the duration of an obfuscate/hydrate operation.
func (r *Recorder) ObserveDuration(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
