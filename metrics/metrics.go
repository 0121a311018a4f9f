// Package metrics exposes the booth's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture and delivery result labels.
const (
	ResultSaved        = "saved"
	ResultCaptureError = "capture_error"
	ResultWriteError   = "write_error"
	ResultDelivered    = "delivered"
	ResultFailed       = "failed"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	captures       *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	tiles          prometheus.Gauge
	captureSeconds prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_captures_total",
			Help: "Still captures by result.",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_deliveries_total",
			Help: "Deliveries of saved captures by result.",
		}, []string{"result"}),
		tiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photobooth_tiles",
			Help: "Tiles on the video wall.",
		}),
		captureSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "photobooth_capture_seconds",
			Help:    "Time from still request to completion.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	m.registry.MustRegister(m.captures, m.deliveries, m.tiles, m.captureSeconds)
	return m
}

func (m *Metrics) Capture(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(result).Inc()
	if took > 0 {
		m.captureSeconds.Observe(took.Seconds())
	}
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) Tiles(n int) {
	if m == nil {
		return
	}
	m.tiles.Set(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
