package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ragd/internal/domain"
)

// PrometheusMetrics implements domain.Metrics on a prometheus registry.
type PrometheusMetrics struct {
	questionDuration  *prometheus.HistogramVec
	fallbacks         *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	discoveryRuns     *prometheus.CounterVec
	activeConnections prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		questionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragd_question_duration_seconds",
				Help:    "Duration of question handling in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragd_pipeline_fallbacks_total",
				Help: "Total pipeline fallback transitions by originating state and error kind",
			},
			[]string{"state", "code"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragd_provider_call_duration_seconds",
				Help:    "Duration of provider tool calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "status"},
		),
		discoveryRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragd_discovery_attempts_total",
				Help: "Total per-provider discovery attempts",
			},
			[]string{"provider", "status"},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragd_active_connections",
				Help: "Current number of live chat connections",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveQuestion(outcome domain.QuestionOutcome, duration time.Duration) {
	p.questionDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveFallback(state string, code domain.ErrorCode) {
	p.fallbacks.WithLabelValues(state, string(code)).Inc()
}

func (p *PrometheusMetrics) ObserveProviderCall(providerID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.providerDuration.WithLabelValues(providerID, status).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveDiscovery(providerID string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.discoveryRuns.WithLabelValues(providerID, status).Inc()
}

func (p *PrometheusMetrics) SetActiveConnections(n int) {
	p.activeConnections.Set(float64(n))
}

func (p *PrometheusMetrics) AddActiveConnections(delta int) {
	p.activeConnections.Add(float64(delta))
}
