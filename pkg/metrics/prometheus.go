// Package metrics provides Prometheus metrics for risk-set sampling runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus collectors describing sampling runs.
type Manager struct {
	namespace       string
	subsystem       string
	durationBuckets []float64
	countBuckets    []float64
	constLabels     map[string]string
	registry        prometheus.Registerer

	// Input shape
	recordsIndexed prometheus.Gauge
	casesTotal     prometheus.Gauge
	controlsTotal  prometheus.Gauge

	// Sampling outcome
	casesMatched       prometheus.Counter
	casesUnmatched     prometheus.Counter
	eligibleCandidates prometheus.Histogram
	selectedControls   prometheus.Histogram
	batchesCompleted   prometheus.Counter
	batchDuration      prometheus.Histogram
	indexDuration      prometheus.Histogram
	runDuration        prometheus.Histogram

	// Match quality
	matchingRate      prometheus.Gauge
	dimensionBalance  *prometheus.GaugeVec
	dimensionMedian   *prometheus.GaugeVec
	exportRows        *prometheus.CounterVec
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "riskset",
		subsystem:       "sampler",
		durationBuckets: prometheus.DefBuckets,
		countBuckets:    []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
		constLabels:     map[string]string{},
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.recordsIndexed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_indexed",
		Help:        "Number of subject records in the birth date index",
		ConstLabels: labels,
	})

	m.casesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cases",
		Help:        "Number of subjects with an event date",
		ConstLabels: labels,
	})

	m.controlsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "controls",
		Help:        "Number of subjects without an event date",
		ConstLabels: labels,
	})

	m.casesMatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cases_matched_total",
		Help:        "Cases that received at least one control",
		ConstLabels: labels,
	})

	m.casesUnmatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cases_unmatched_total",
		Help:        "Cases skipped because their risk set was empty",
		ConstLabels: labels,
	})

	m.eligibleCandidates = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "eligible_candidates",
		Help:        "Size of the risk set found for each case",
		Buckets:     m.countBuckets,
		ConstLabels: labels,
	})

	m.selectedControls = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "selected_controls",
		Help:        "Number of controls selected for each matched case",
		Buckets:     m.countBuckets,
		ConstLabels: labels,
	})

	m.batchesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batches_completed_total",
		Help:        "Case batches processed",
		ConstLabels: labels,
	})

	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batch_duration_seconds",
		Help:        "Wall time spent sampling one case batch",
		Buckets:     m.durationBuckets,
		ConstLabels: labels,
	})

	m.indexDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "index_build_duration_seconds",
		Help:        "Wall time spent building the birth date index",
		Buckets:     m.durationBuckets,
		ConstLabels: labels,
	})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of a complete sampling call",
		Buckets:     m.durationBuckets,
		ConstLabels: labels,
	})

	m.matchingRate = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "matching_rate_ratio",
		Help:        "Matched cases divided by total cases for the last evaluated run",
		ConstLabels: labels,
	})

	m.dimensionBalance = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "dimension_balance",
			Help:        "Mean over sample standard deviation of the difference series",
			ConstLabels: labels,
		},
		[]string{"dimension"},
	)

	m.dimensionMedian = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "dimension_median_diff_days",
			Help:        "Median absolute difference in days per matching dimension",
			ConstLabels: labels,
		},
		[]string{"dimension"},
	)

	m.exportRows = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "export_rows_total",
			Help:        "Rows written by export format",
			ConstLabels: labels,
		},
		[]string{"format"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_total",
			Help:        "Errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)
}

// UpdatePopulation records the size of the indexed population.
func UpdatePopulation(records, cases, controls int) {
	globalManager.recordsIndexed.Set(float64(records))
	globalManager.casesTotal.Set(float64(cases))
	globalManager.controlsTotal.Set(float64(controls))
}

// RecordIndexDuration observes the index build time in seconds.
func RecordIndexDuration(seconds float64) {
	globalManager.indexDuration.Observe(seconds)
}

// RecordCaseSampled observes one case's risk set and selection sizes.
func RecordCaseSampled(eligible, selected int) {
	globalManager.eligibleCandidates.Observe(float64(eligible))
	if selected == 0 {
		globalManager.casesUnmatched.Inc()
		return
	}
	globalManager.casesMatched.Inc()
	globalManager.selectedControls.Observe(float64(selected))
}

// RecordBatchCompleted observes one finished batch.
func RecordBatchCompleted(seconds float64) {
	globalManager.batchesCompleted.Inc()
	globalManager.batchDuration.Observe(seconds)
}

// RecordRunDuration observes the duration of a complete sampling call.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
}

// UpdateMatchingRate sets the matching rate of the last evaluated run.
func UpdateMatchingRate(rate float64) {
	globalManager.matchingRate.Set(rate)
}

// UpdateDimension sets balance and median difference for a dimension.
func UpdateDimension(dimension string, balance, median float64) {
	globalManager.dimensionBalance.WithLabelValues(dimension).Set(balance)
	globalManager.dimensionMedian.WithLabelValues(dimension).Set(median)
}

// RecordExportRows counts rows written by an exporter.
func RecordExportRows(format string, rows int) {
	globalManager.exportRows.WithLabelValues(format).Add(float64(rows))
}

// RecordErrorByComponent increments error counter by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
// Batch runs have no scrape endpoint, so this is how their metrics leave the process.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
