package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Frame counters
	FramesRead        atomic.Uint64
	FramesWithTargets atomic.Uint64
	Detections        atomic.Uint64

	// Error counters
	DetectErrors  atomic.Uint64
	EncodeErrors  atomic.Uint64
	JournalErrors atomic.Uint64

	// Episode counters
	Episodes          atomic.Uint64
	SubmissionsOK     atomic.Uint64
	SubmissionsFailed atomic.Uint64
	ImagesSent        atomic.Uint64

	// Current episode state
	EpisodeOpen    atomic.Uint64 // 0 = empty, 1 = open
	BufferedImages atomic.Uint64

	ViewerClients atomic.Int64

	submitLatency prometheus.Histogram
	registry      *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alertcam_submit_duration_seconds",
			Help:    "Alert submission latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		fn,
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.counter("alertcam_frames_read_total", "Total frames read from the camera", &m.FramesRead)
	m.counter("alertcam_frames_with_targets_total", "Frames containing at least one target class", &m.FramesWithTargets)
	m.counter("alertcam_detections_total", "Detections above the detector threshold", &m.Detections)

	m.counter("alertcam_detect_errors_total", "Frames skipped because detection failed", &m.DetectErrors)
	m.counter("alertcam_encode_errors_total", "Frames that could not be encoded", &m.EncodeErrors)
	m.counter("alertcam_journal_errors_total", "Episodes that could not be journaled", &m.JournalErrors)

	m.counter("alertcam_episodes_total", "Episodes closed", &m.Episodes)
	m.counter("alertcam_submissions_ok_total", "Alerts accepted by the alert endpoint", &m.SubmissionsOK)
	m.counter("alertcam_submissions_failed_total", "Alerts rejected or not delivered", &m.SubmissionsFailed)
	m.counter("alertcam_images_sent_total", "Images included in submitted alerts", &m.ImagesSent)

	m.gauge("alertcam_episode_open", "Episode open (0=empty, 1=open)",
		func() float64 { return float64(m.EpisodeOpen.Load()) })
	m.gauge("alertcam_episode_buffered_images", "Images buffered in the open episode",
		func() float64 { return float64(m.BufferedImages.Load()) })
	m.gauge("alertcam_viewer_clients", "Connected live view clients",
		func() float64 { return float64(m.ViewerClients.Load()) })

	m.registry.MustRegister(m.submitLatency)
}

// ObserveSubmit records one alert submission.
func (m *Metrics) ObserveSubmit(latency time.Duration, ok bool, images int) {
	m.submitLatency.Observe(latency.Seconds())
	if ok {
		m.SubmissionsOK.Add(1)
		m.ImagesSent.Add(uint64(images))
	} else {
		m.SubmissionsFailed.Add(1)
	}
}

// SetEpisode updates the open episode gauges.
func (m *Metrics) SetEpisode(open bool, images int) {
	if open {
		m.EpisodeOpen.Store(1)
	} else {
		m.EpisodeOpen.Store(0)
	}
	m.BufferedImages.Store(uint64(images))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
