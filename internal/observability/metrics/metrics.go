package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/babui-rent/babui/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babui_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "babui_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	proximityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "babui_proximity_query_duration_seconds",
		Help:    "Time spent filtering the repository for a proximity query",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
	})

	proximityResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "babui_proximity_results",
		Help:    "Number of properties returned per proximity query",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	propertiesStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "babui_properties",
		Help: "Number of properties held in the repository",
	})

	propertyMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babui_property_mutations_total",
		Help: "Repository mutations by kind and result",
	}, []string{"kind", "result"})

	geocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babui_geocode_requests_total",
		Help: "Geocoder lookups by operation and result (hit, resolved, fallback, error)",
	}, []string{"op", "result"})

	clusterBuckets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "babui_cluster_buckets",
		Help:    "Number of marker buckets produced per clustering call",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})

	enrichment = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "babui_address_enrichment_total",
		Help: "Address enrichment attempts by result",
	}, []string{"result"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "babui_circuit_breaker_state",
		Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open)",
	}, []string{"dependency"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveProximityQuery records one radius query
func ObserveProximityQuery(duration time.Duration, results int) {
	proximityDuration.Observe(duration.Seconds())
	proximityResults.Observe(float64(results))
}

// ObserveClusters records the bucket count of one clustering call
func ObserveClusters(buckets int) {
	clusterBuckets.Observe(float64(buckets))
}

// ObserveMutation counts a repository mutation attempt
func ObserveMutation(kind domain.ChangeKind, result string) {
	propertyMutations.WithLabelValues(string(kind), result).Inc()
}

// ObserveGeocode counts a geocoder lookup
func ObserveGeocode(op, result string) {
	geocodeRequests.WithLabelValues(op, result).Inc()
}

// SetProperties sets the stored-properties gauge
func SetProperties(count int) {
	propertiesStored.Set(float64(max(count, 0)))
}

// ObserveEnrichment counts one address enrichment attempt
func ObserveEnrichment(result string) {
	enrichment.WithLabelValues(result).Inc()
}

// SetBreakerState publishes a breaker state for dependency
func SetBreakerState(dependency string, state int) {
	breakerState.WithLabelValues(dependency).Set(float64(state))
}

// RepositoryListener keeps the properties gauge and the committed-mutation
// counter in step with repository change events.
func RepositoryListener(count func() int) domain.ChangeListener {
	return func(ev domain.ChangeEvent) {
		ObserveMutation(ev.Kind, "ok")
		SetProperties(count())
	}
}
