// =============================================================================
// AIMsi to CAPSS Converter - Run Metrics
// =============================================================================
//
// Counters for rows, rejections, brand tiers and uploads, written as a
// Prometheus textfile at the end of each run for node_exporter to collect.
//
// =============================================================================

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the counters of one process. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg *prometheus.Registry

	Rows           *prometheus.CounterVec // by outcome
	Rejections     *prometheus.CounterVec // by reason
	BrandSources   *prometheus.CounterVec // by resolution tier
	Uploads        *prometheus.CounterVec // by outcome
	RunDurationSec prometheus.Gauge
	LastRunUnix    prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capps_rows_total",
		Help: "Purchases rows processed, by outcome.",
	}, []string{"outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capps_rows_rejected_total",
		Help: "Purchases rows rejected, by reason.",
	}, []string{"reason"})
	brandSources := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capps_brand_resolutions_total",
		Help: "Brand resolutions, by the tier that answered.",
	}, []string{"source"})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capps_uploads_total",
		Help: "CAPSS uploads, by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capps_run_duration_seconds",
		Help: "Wall time of the last conversion run.",
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capps_last_run_timestamp_seconds",
		Help: "Unix time the last conversion run finished.",
	})

	r.MustRegister(rows, rejections, brandSources, uploads, duration, lastRun)
	return &Registry{
		reg:            r,
		Rows:           rows,
		Rejections:     rejections,
		BrandSources:   brandSources,
		Uploads:        uploads,
		RunDurationSec: duration,
		LastRunUnix:    lastRun,
	}
}

// =============================================================================
// OBSERVATIONS
// =============================================================================

func (r *Registry) ObserveRow(outcome, reason string) {
	if r == nil {
		return
	}
	r.Rows.WithLabelValues(outcome).Inc()
	if reason != "" {
		r.Rejections.WithLabelValues(reason).Inc()
	}
}

func (r *Registry) ObserveBrand(source string) {
	if r == nil {
		return
	}
	r.BrandSources.WithLabelValues(source).Inc()
}

func (r *Registry) ObserveUpload(outcome string) {
	if r == nil {
		return
	}
	r.Uploads.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveRun(d time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.RunDurationSec.Set(d.Seconds())
	r.LastRunUnix.Set(float64(finished.Unix()))
}

// =============================================================================
// TEXTFILE EXPORT
// =============================================================================

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector. The write is atomic.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
