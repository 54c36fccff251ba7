package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the aggregation pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests         *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	FetchAttempts    *prometheus.CounterVec
	GeoResolutions   *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors against reg, or the default registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podagg_requests_total",
		Help: "Node queries handled, labeled by outcome code.",
	}, []string{"code"}), "podagg_requests_total")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podagg_cache_lookups_total",
		Help: "Cache lookups, labeled by cache and hit/miss.",
	}, []string{"cache", "result"}), "podagg_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podagg_fetch_attempts_total",
		Help: "Upstream fetch attempts, labeled by result.",
	}, []string{"result"}), "podagg_fetch_attempts_total")
	if err != nil {
		return nil, err
	}

	geo, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podagg_geo_resolutions_total",
		Help: "Host geolocation outcomes (cached, resolved, unresolved, failed).",
	}, []string{"outcome"}), "podagg_geo_resolutions_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "podagg_pipeline_duration_seconds",
		Help:    "Time to answer a node query, labeled by cache hit.",
		Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"cache_hit"}), "podagg_pipeline_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:         gatherer,
		Requests:         requests,
		CacheLookups:     lookups,
		FetchAttempts:    attempts,
		GeoResolutions:   geo,
		PipelineDuration: duration,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(code string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(code).Inc()
}

func (m *Metrics) observeCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) observeFetch(result string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeGeo(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.GeoResolutions.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) observeDuration(cacheHit bool, d time.Duration) {
	if m == nil {
		return
	}
	label := "false"
	if cacheHit {
		label = "true"
	}
	m.PipelineDuration.WithLabelValues(label).Observe(d.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
