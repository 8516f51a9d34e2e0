package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fetcherMetrics sync.Once

	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagerace",
			Subsystem: "fetcher",
			Name:      "fetches_total",
			Help:      "Number of page fetches, partitioned by outcome",
		},
		[]string{"outcome"})
	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagerace",
			Subsystem: "fetcher",
			Name:      "fetch_duration_seconds",
			Help:      "Wall-clock time of a single page fetch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		})
	fetchedCharactersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagerace",
			Subsystem: "fetcher",
			Name:      "fetched_characters_total",
			Help:      "Number of characters returned by successful fetches",
		})
)

type instrumentedFetcher struct {
	next Fetcher
}

// Instrumented creates a decorator for Fetcher that exposes Prometheus
// metrics on the outcome and duration of every fetch.
func Instrumented(next Fetcher) Fetcher {
	fetcherMetrics.Do(func() {
		prometheus.MustRegister(fetchesTotal)
		prometheus.MustRegister(fetchDurationSeconds)
		prometheus.MustRegister(fetchedCharactersTotal)
	})
	return &instrumentedFetcher{next: next}
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	content, err := f.next.Fetch(ctx, url)
	fetchDurationSeconds.Observe(time.Since(start).Seconds())
	fetchesTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		fetchedCharactersTotal.Add(float64(utf8.RuneCountInString(content)))
	}
	return content, err
}

func outcome(err error) string {
	var networkErr *NetworkError
	var statusErr *StatusError
	var tooLarge *BodyTooLargeError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &statusErr):
		return "status_error"
	case errors.As(err, &tooLarge):
		return "body_too_large"
	case errors.As(err, &networkErr):
		return "network_error"
	default:
		return "error"
	}
}
