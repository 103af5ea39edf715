// Package metrics holds the prometheus collectors for ingestion and refresh.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "papertweets"

// Ingest outcomes.
const (
	ResultStored    = "stored"
	ResultDiscarded = "discarded"
	ResultFailed    = "failed"
)

type Metrics struct {
	ingested        *prometheus.CounterVec
	papersFetched   prometheus.Counter
	refreshDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Tweets passed through ingestion, by outcome.",
		}, []string{"result"}),
		papersFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Papers whose metadata was fetched from arXiv.",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a full refresh over all followed accounts.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	reg.MustRegister(m.ingested, m.papersFetched, m.refreshDuration)
	return m
}

func (m *Metrics) Ingested(result string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(result).Inc()
}

func (m *Metrics) PaperFetched() {
	if m == nil {
		return
	}
	m.papersFetched.Inc()
}

func (m *Metrics) ObserveRefresh(d time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(d.Seconds())
}
