package metrics

import (
	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals    *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	rejections *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	exposure   prometheus.Gauge
	weights    *prometheus.GaugeVec
}

// New registers the pipeline collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalgate_signals_total",
			Help: "Candidate signals produced by strategy evaluators",
		}, []string{"strategy", "action"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalgate_risk_decisions_total",
			Help: "Risk gate decisions",
		}, []string{"result"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalgate_rejections_total",
			Help: "Rejections recorded in the ledger",
		}, []string{"category"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signalgate_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalgate_operation_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		exposure: f.NewGauge(prometheus.GaugeOpts{
			Name: "signalgate_portfolio_exposure_percent",
			Help: "Sum of open position exposure as a percentage of portfolio value",
		}),
		weights: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalgate_strategy_weight",
			Help: "Current adaptive weight per strategy",
		}, []string{"strategy"}),
	}
}

func (r *Recorder) RecordSignal(strategy string, action models.Action) {
	r.signals.WithLabelValues(strategy, string(action)).Inc()
}

func (r *Recorder) RecordDecision(allowed bool) {
	result := "rejected"
	if allowed {
		result = "approved"
	}
	r.decisions.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordRejection(category models.RejectionCategory) {
	r.rejections.WithLabelValues(string(category)).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetPortfolioExposure(percent float64) {
	r.exposure.Set(percent)
}

func (r *Recorder) SetStrategyWeight(strategy string, weight float64) {
	r.weights.WithLabelValues(strategy).Set(weight)
}

var _ repository.Metrics = (*Recorder)(nil)
