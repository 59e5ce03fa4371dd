package join

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts join activity.
type Metrics struct {
	Indexed   prometheus.Counter
	Skipped   prometheus.Counter
	Incidents prometheus.Counter
	Matched   prometheus.Counter
	PerProbe  prometheus.Histogram
}

// NewMetrics registers join metrics on reg. A nil reg uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Indexed: f.NewCounter(prometheus.CounterOpts{
			Name: "riskjoin_establishments_indexed_total",
			Help: "Establishments inserted into the spatial index.",
		}),
		Skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "riskjoin_establishments_skipped_total",
			Help: "Establishments without a location.",
		}),
		Incidents: f.NewCounter(prometheus.CounterOpts{
			Name: "riskjoin_incidents_total",
			Help: "Incidents probed against the index.",
		}),
		Matched: f.NewCounter(prometheus.CounterOpts{
			Name: "riskjoin_incidents_matched_total",
			Help: "Incidents within the radius of at least one establishment.",
		}),
		PerProbe: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskjoin_matches_per_incident",
			Help:    "Establishments found per located incident.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}
}
