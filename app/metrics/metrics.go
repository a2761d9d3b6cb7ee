// Package metrics provides Prometheus metrics for kingsfeeds.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts pipeline runs by variant and outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kingsfeeds",
			Name:      "feed_fetch_total",
			Help:      "Total number of feed pipeline runs",
		},
		[]string{"variant", "outcome"},
	)

	// FetchDuration measures upstream fetch plus normalization time.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kingsfeeds",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed pipeline runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	// FeedItems reports the item count of the last successful run.
	FeedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kingsfeeds",
			Name:      "feed_items",
			Help:      "Number of posts returned by the last successful run",
		},
		[]string{"variant"},
	)

	// RefreshTotal counts refresher runs by trigger and result.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kingsfeeds",
			Name:      "refresh_total",
			Help:      "Total number of background and manual refreshes",
		},
		[]string{"trigger", "result"},
	)

	// LastSuccess is the unix time of the last successful refresh.
	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kingsfeeds",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh",
		},
	)
)

// RecordFetch records one pipeline run. outcome is "ok" or an error kind.
func RecordFetch(variant, outcome string, duration float64) {
	FetchTotal.WithLabelValues(variant, outcome).Inc()
	FetchDuration.WithLabelValues(variant).Observe(duration)
}

// RecordItems records the size of a successful result.
func RecordItems(variant string, count int) {
	FeedItems.WithLabelValues(variant).Set(float64(count))
}

// RecordRefresh records one refresher run.
func RecordRefresh(trigger, result string, unixTime int64) {
	RefreshTotal.WithLabelValues(trigger, result).Inc()
	if result == "ok" {
		LastSuccess.Set(float64(unixTime))
	}
}
