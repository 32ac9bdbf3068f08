package cache

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus counters for a Cache.
type Metrics struct {
	Lookups     *prometheus.CounterVec
	Fetches     prometheus.Counter
	FetchErrors prometheus.Counter
	Deduped     prometheus.Counter
}

// NewMetrics registers the cache counters on reg. A nil reg creates
// unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agora",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of cache lookups by outcome",
			},
			[]string{"outcome"}, // hit, stale, miss
		),
		Fetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agora",
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Total number of fetcher invocations",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agora",
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Total number of fetches that returned an error",
		}),
		Deduped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agora",
			Subsystem: "cache",
			Name:      "deduplicated_total",
			Help:      "Total number of queries that joined an in-flight fetch",
		}),
	}
}

// Stats is a point-in-time read of the counters.
type Stats struct {
	Hits        float64
	Stale       float64
	Misses      float64
	Fetches     float64
	FetchErrors float64
	Deduped     float64
}

// Stats reads the current counter values.
func (m *Metrics) Stats() Stats {
	return Stats{
		Hits:        counterValue(m.Lookups.WithLabelValues("hit")),
		Stale:       counterValue(m.Lookups.WithLabelValues("stale")),
		Misses:      counterValue(m.Lookups.WithLabelValues("miss")),
		Fetches:     counterValue(m.Fetches),
		FetchErrors: counterValue(m.FetchErrors),
		Deduped:     counterValue(m.Deduped),
	}
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}

// NewMetricsHandler serves the counters gathered from g at /metrics.
func NewMetricsHandler(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}
