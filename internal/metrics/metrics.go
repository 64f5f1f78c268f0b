// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsPublished counts bus publishes by channel and result ("ok", "error").
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchchat_events_published_total",
		Help: "Notification events published, by channel and result.",
	}, []string{"channel", "result"})

	// EventsDelivered counts subscriber dispatches by channel and result ("ok", "malformed", "unknown").
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchchat_events_delivered_total",
		Help: "Notification events dispatched to connection holders.",
	}, []string{"channel", "result"})

	// CleanupRuns counts maintenance runs by job and result ("acquired", "skipped", "error").
	CleanupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchchat_cleanup_runs_total",
		Help: "Maintenance job runs, by job and lock result.",
	}, []string{"job", "result"})

	// CleanupItems counts processed items by job and result ("processed", "error").
	CleanupItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchchat_cleanup_items_total",
		Help: "Items processed by maintenance jobs.",
	}, []string{"job", "result"})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
