// Package metrics exposes Prometheus instrumentation for the interpreter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Namespace prefixes every metric name.
const Namespace = "interpreter"

// Collector records pipeline and connection metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	stageDuration   *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	utterancesTotal *prometheus.CounterVec
	droppedFrames   *prometheus.CounterVec

	activePipelines prometheus.Gauge
	activeSessions  prometheus.Gauge
	connections     prometheus.Gauge

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector registers the interpreter metrics on reg.
func NewCollector(reg *prometheus.Registry, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		gatherer: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each interpretation stage per utterance",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 10},
		},
		[]string{"stage", "direction"},
	)

	c.errorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors reported to clients by error code",
		},
		[]string{"code"},
	)

	c.utterancesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "utterances_total",
			Help:      "Finalized utterances by translation direction",
		},
		[]string{"direction"},
	)

	c.droppedFrames = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dropped_frames_total",
			Help:      "Inbound audio frames discarded before recognition",
		},
		[]string{"reason"},
	)

	c.activePipelines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_pipelines",
		Help:      "Pipelines currently listening",
	})

	c.activeSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_sessions",
		Help:      "Sessions with at least one participant",
	})

	c.connections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "connections",
		Help:      "Open client connections",
	})

	return c
}

// ObserveStage records one stage duration.
func (c *Collector) ObserveStage(stage, direction string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage, direction).Observe(d.Seconds())
}

// RecordError counts an error event sent to a client.
func (c *Collector) RecordError(code string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(code).Inc()
}

// RecordUtterance counts a finalized utterance.
func (c *Collector) RecordUtterance(direction string) {
	if c == nil {
		return
	}
	c.utterancesTotal.WithLabelValues(direction).Inc()
}

// RecordDroppedFrame counts a discarded inbound frame.
func (c *Collector) RecordDroppedFrame(reason string) {
	if c == nil {
		return
	}
	c.droppedFrames.WithLabelValues(reason).Inc()
}

func (c *Collector) PipelineStarted() {
	if c == nil {
		return
	}
	c.activePipelines.Inc()
}

func (c *Collector) PipelineStopped() {
	if c == nil {
		return
	}
	c.activePipelines.Dec()
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connections.Dec()
}

// SetActiveSessions reports the registry size.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Set(float64(n))
}

// Handler serves the exposition format for the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(c.logger),
	})
}
