package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by event and outcome (delivered, failed, dropped).",
		},
		[]string{"event", "outcome"},
	)

	ratingUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_updates_total",
			Help:      "Skill rating update attempts by outcome (updated, conflict, error).",
		},
		[]string{"outcome"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter, by route.",
		},
		[]string{"route"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	register(webhookDeliveries, ratingUpdates, rateLimited, httpDuration)
}

// ObserveWebhook counts a webhook delivery outcome.
func ObserveWebhook(event, outcome string) {
	webhookDeliveries.WithLabelValues(event, outcome).Inc()
}

// ObserveRatingUpdate counts a rating update attempt.
func ObserveRatingUpdate(outcome string) {
	ratingUpdates.WithLabelValues(outcome).Inc()
}

// ObserveRateLimited counts a rejected request.
func ObserveRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

// ObserveHTTPRequest records the latency of a served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
