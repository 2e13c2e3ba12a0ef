// Package metrics provides Prometheus metrics for the feed aggregator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusIdle        = "idle"
	StatusOK          = "ok"
	StatusFetchFailed = "fetch_failed"
	StatusInvalidFeed = "invalid_feed"
	StatusError       = "error"
)

var (
	// CyclesTotal counts scrape cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gator",
			Name:      "cycles_total",
			Help:      "Total number of scrape cycles",
		},
		[]string{"status"},
	)

	// ItemsSeenTotal counts items that survived feed validation.
	ItemsSeenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gator",
			Name:      "items_seen_total",
			Help:      "Total number of feed items considered for persistence",
		},
	)

	// PostsSavedTotal counts newly created posts.
	PostsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gator",
			Name:      "posts_saved_total",
			Help:      "Total number of new posts saved",
		},
	)

	// ItemFailuresTotal counts items whose persistence failed.
	ItemFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gator",
			Name:      "item_failures_total",
			Help:      "Total number of items that failed to persist",
		},
	)

	// FetchDuration measures feed fetch and parse duration.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gator",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// RecordFetch records one fetch attempt.
func RecordFetch(status string, duration float64) {
	FetchDuration.WithLabelValues(status).Observe(duration)
}

// RecordCycle records the outcome of a scrape cycle.
func RecordCycle(status string, seen, saved, failed int) {
	CyclesTotal.WithLabelValues(status).Inc()
	ItemsSeenTotal.Add(float64(seen))
	PostsSavedTotal.Add(float64(saved))
	ItemFailuresTotal.Add(float64(failed))
}
