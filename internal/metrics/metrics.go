package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Using promauto to automatically register metrics with the default registry
var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gistapi_searches_total",
			Help: "Total number of searches, by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gistapi_upstream_requests_total",
			Help: "Total number of requests sent to the gist API, by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	GistsScannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gistapi_gists_scanned_total",
			Help: "Total number of gists fetched and scanned",
		},
	)

	GistsMatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gistapi_gists_matched_total",
			Help: "Total number of scanned gists containing the pattern",
		},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gistapi_cache_hits_total",
			Help: "Total number of gist contents served from the cache",
		},
	)
)
