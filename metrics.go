package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AnatoleLucet/pipeline/internal"
)

// Metrics exports Prometheus metrics for a runtime, see WithMetrics.
type Metrics = internal.Metrics

// NewMetrics registers the pipeline collectors with registry, or with
// prometheus.DefaultRegisterer when nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return internal.NewMetrics(registry)
}
