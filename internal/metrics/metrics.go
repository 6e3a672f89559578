// Package metrics defines the Prometheus metric bundles each clique
// service registers on top of the shared HTTP metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query holds all Prometheus metrics for the query API service.
type Query struct {
	PointsQueries  *prometheus.CounterVec
	UserLookups    *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	StoredMessages *prometheus.GaugeVec
	StoredUsers    *prometheus.GaugeVec
}

// Collector holds all Prometheus metrics for the Discord collector.
type Collector struct {
	MessagesSeen      *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	PublishDuration   *prometheus.HistogramVec
	GatewayReconnects *prometheus.CounterVec
}
