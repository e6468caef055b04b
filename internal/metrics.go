package internal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pass outcomes, the "result" label of pipeline_passes_total.
const (
	PassValue    = "value"
	PassNoOutput = "no_output"
	PassError    = "error"
	PassUnready  = "unready"
)

// Manual input paths, the "path" label of pipeline_input_sets_total.
const (
	InputDirect  = "direct"
	InputLimited = "limited"
)

// Metrics collects Prometheus metrics for the nodes of a runtime.
// A nil *Metrics records nothing.
//
// Metrics exposed (all namespaced with "pipeline_"):
//
//	passes_total{node,result}          recompute passes by outcome
//	coalesced_total{node}              parent changes folded into a pending rerun
//	publishes_total{node}              output assignments fanned out to subscribers
//	input_sets_total{node,path}        manual input assignments, direct or rate limited
//	inflight_computations              compute functions currently executing
//	pass_duration_seconds{node}        compute function latency
type Metrics struct {
	passes    *prometheus.CounterVec
	coalesces *prometheus.CounterVec
	publishes *prometheus.CounterVec
	inputs    *prometheus.CounterVec
	inflight  prometheus.Gauge
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the collectors with registry, prometheus.DefaultRegisterer when nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Name:      "passes_total",
			Help:      "Recompute passes by node and outcome",
		}, []string{"node", "result"}),
		coalesces: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Name:      "coalesced_total",
			Help:      "Parent changes received while computing, folded into a single rerun",
		}, []string{"node"}),
		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Name:      "publishes_total",
			Help:      "Output assignments notified to subscribers",
		}, []string{"node"}),
		inputs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Name:      "input_sets_total",
			Help:      "Values set on manual inputs by path",
		}, []string{"node", "path"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipeline",
			Name:      "inflight_computations",
			Help:      "Compute functions currently executing",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipeline",
			Name:      "pass_duration_seconds",
			Help:      "Compute function duration",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"node"}),
	}
}

func (m *Metrics) pass(node, result string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(node, result).Inc()
}

func (m *Metrics) coalesced(node string) {
	if m == nil {
		return
	}
	m.coalesces.WithLabelValues(node).Inc()
}

func (m *Metrics) published(node string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(node).Inc()
}

func (m *Metrics) input(node, path string) {
	if m == nil {
		return
	}
	m.inputs.WithLabelValues(node, path).Inc()
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) finished(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.duration.WithLabelValues(node).Observe(d.Seconds())
}
