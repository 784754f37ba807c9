package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	uploadTargetsIssued prometheus.Counter
	ingestionPasses     *prometheus.CounterVec
	qualityFlags        *prometheus.CounterVec
	ingestionDuration   prometheus.Histogram
	blurScores          prometheus.Histogram
	lightScores         prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		uploadTargetsIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scan_upload_targets_issued_total",
				Help: "Total number of presigned upload targets issued",
			},
		),
		ingestionPasses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_ingestion_passes_total",
				Help: "Total number of completed ingestion passes by resolved status",
			},
			[]string{"status"},
		),
		qualityFlags: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_quality_flags_total",
				Help: "Total number of quality flags raised, by flag kind",
			},
			[]string{"flag"},
		),
		ingestionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_ingestion_duration_seconds",
				Help:    "Duration of full ingestion passes in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		blurScores: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_image_blur_score",
				Help:    "Variance-of-Laplacian sharpness scores of ingested images",
				Buckets: []float64{0, 10, 30, 60, 120, 250, 500, 1000, 2500, 5000},
			},
		),
		lightScores: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_image_light_score",
				Help:    "Mean-intensity illumination scores of ingested images",
				Buckets: []float64{0, 15, 30, 55, 80, 110, 150, 200, 255},
			},
		),
	}
}

// RecordUploadTargets counts issued upload targets.
func (m *Metrics) RecordUploadTargets(count int) {
	m.uploadTargetsIssued.Add(float64(count))
}

// RecordIngestionPass counts a completed pass under its resolved status.
func (m *Metrics) RecordIngestionPass(status string, seconds float64) {
	m.ingestionPasses.WithLabelValues(status).Inc()
	m.ingestionDuration.Observe(seconds)
}

// RecordFlag counts one raised quality flag by kind.
func (m *Metrics) RecordFlag(kind string) {
	m.qualityFlags.WithLabelValues(kind).Inc()
}

// RecordScores observes one image's quality scores.
func (m *Metrics) RecordScores(blur, light float64) {
	m.blurScores.Observe(blur)
	m.lightScores.Observe(light)
}
