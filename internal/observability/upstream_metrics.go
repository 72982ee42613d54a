package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Geocode outcomes used as label values.
const (
	GeocodeFound = "found"
	GeocodeOcean = "ocean"
	GeocodeError = "error"
)

// UpstreamCollector exposes metrics for the two external collaborators:
// the ephemeris feed and the reverse geocoder.
type UpstreamCollector struct {
	gatherer prometheus.Gatherer

	FeedFetchDuration prometheus.Histogram
	FeedFetches       *prometheus.CounterVec
	GeocodeRequests   *prometheus.CounterVec
	GeocodeCache      *prometheus.CounterVec
}

// NewUpstreamCollector registers upstream metrics against the provided registerer.
func NewUpstreamCollector(reg prometheus.Registerer) (*UpstreamCollector, error) {
	reg, gatherer := registryPair(reg)

	fetchHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "iss_feed_fetch_duration_seconds",
		Help:    "Duration of ephemeris feed downloads including parsing.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "iss_feed_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iss_feed_fetches_total",
		Help: "Ephemeris feed fetch attempts, labeled by result (ok or error).",
	}, []string{"result"}), "iss_feed_fetches_total")
	if err != nil {
		return nil, err
	}

	geocodes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iss_geocode_requests_total",
		Help: "Reverse geocoding calls made to the provider, labeled by result (found, ocean, error).",
	}, []string{"result"}), "iss_geocode_requests_total")
	if err != nil {
		return nil, err
	}

	cache, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iss_geocode_cache_lookups_total",
		Help: "Reverse geocoding cache lookups, labeled by outcome (hit or miss).",
	}, []string{"outcome"}), "iss_geocode_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	return &UpstreamCollector{
		gatherer:          gatherer,
		FeedFetchDuration: fetchHistogram,
		FeedFetches:       fetches,
		GeocodeRequests:   geocodes,
		GeocodeCache:      cache,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *UpstreamCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFeedFetch records one feed download attempt.
func (c *UpstreamCollector) ObserveFeedFetch(d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.FeedFetchDuration != nil {
		c.FeedFetchDuration.Observe(d.Seconds())
	}
	if c.FeedFetches != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.FeedFetches.WithLabelValues(result).Inc()
	}
}

// ObserveGeocode records one provider call outcome.
func (c *UpstreamCollector) ObserveGeocode(result string) {
	if c == nil || c.GeocodeRequests == nil {
		return
	}
	c.GeocodeRequests.WithLabelValues(result).Inc()
}

// ObserveGeocodeCache records a cache hit or miss.
func (c *UpstreamCollector) ObserveGeocodeCache(hit bool) {
	if c == nil || c.GeocodeCache == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.GeocodeCache.WithLabelValues(outcome).Inc()
}
