// Package metrics holds the Prometheus collectors for cache and fetch behaviour.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	listingRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeofme",
		Name:      "listing_requests_total",
		Help:      "Backup listing requests by where the answer came from (cache, remote, stale).",
	}, []string{"source"})

	fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeofme",
		Name:      "fetch_failures_total",
		Help:      "Remote failures by kind (listing, snapshot, cache_corrupt).",
	}, []string{"kind"})

	snapshotCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeofme",
		Name:      "snapshot_cache_total",
		Help:      "Snapshot body lookups by result (hit, miss).",
	}, []string{"result"})

	reportIntervals = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timeofme",
		Name:      "report_intervals",
		Help:      "Intervals left in a report after range filtering.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})
)

func init() {
	prometheus.MustRegister(listingRequests, fetchFailures, snapshotCache, reportIntervals)
}

// ObserveListing counts a listing answer from source.
func ObserveListing(source string) {
	listingRequests.WithLabelValues(source).Inc()
}

// ObserveFailure counts a remote or cache failure.
func ObserveFailure(kind string) {
	fetchFailures.WithLabelValues(kind).Inc()
}

// ObserveSnapshotCache counts a snapshot cache hit or miss.
func ObserveSnapshotCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	snapshotCache.WithLabelValues(result).Inc()
}

// ObserveReport records how many intervals a report covered.
func ObserveReport(intervals int) {
	reportIntervals.Observe(float64(intervals))
}
