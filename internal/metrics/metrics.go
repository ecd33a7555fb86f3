// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package metrics provides Prometheus instrumentation for the location
// pipeline: geocode cache efficiency, provider failures, road-snap outcomes
// and movement status transitions.
//
// Unlike a promauto/global-registry setup, every Pipeline constructs its own
// Metrics instance against its own Registerer, so independent pipelines and
// tests never share counter state. All vectors expose Reset for test
// isolation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all pipeline metric series, registered on a single Registerer.
type Metrics struct {
	registry prometheus.Registerer

	// Geocode resolver metrics
	GeocodeCacheHits      prometheus.Counter
	GeocodeCacheMisses    prometheus.Counter
	GeocodeProviderErrors *prometheus.CounterVec // reason: rate_limited, server_error, transport, malformed, breaker_open
	GeocodeRequests       *prometheus.CounterVec // provider: live, fallback
	GeocodeInflight       prometheus.Gauge

	// Road snapper metrics
	SnapCacheHits  prometheus.Counter
	SnapCacheMisses prometheus.Counter
	SnapRequests   *prometheus.CounterVec // outcome: snapped, throttled, no_token, degraded, too_few_points
	SnapCacheSize  prometheus.Gauge

	// Movement classifier metrics
	MovementTransitions *prometheus.CounterVec // status: stationary, walking, vehicle
}

// New creates a Metrics instance and registers all series on reg.
// Pass prometheus.NewRegistry() for an isolated instance, or the default
// registerer to expose the series on the host application's /metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{registry: reg}

	m.GeocodeCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocode_cache_hits_total",
		Help: "Total number of geocode cache hits",
	})
	m.GeocodeCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocode_cache_misses_total",
		Help: "Total number of geocode cache misses",
	})
	m.GeocodeProviderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_provider_errors_total",
		Help: "Total number of reverse-geocode provider failures",
	}, []string{"reason"})
	m.GeocodeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_requests_total",
		Help: "Total number of geocode resolutions by result provider",
	}, []string{"provider"})
	m.GeocodeInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geocode_inflight_requests",
		Help: "Current number of in-flight upstream geocode requests",
	})

	m.SnapCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadsnap_cache_hits_total",
		Help: "Total number of road-snap cache hits",
	})
	m.SnapCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadsnap_cache_misses_total",
		Help: "Total number of road-snap cache misses",
	})
	m.SnapRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadsnap_requests_total",
		Help: "Total number of road-snap calls by outcome",
	}, []string{"outcome"})
	m.SnapCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roadsnap_cache_entries",
		Help: "Current number of cached road-snap results",
	})

	m.MovementTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "movement_status_transitions_total",
		Help: "Total number of confirmed movement status transitions",
	}, []string{"status"})

	reg.MustRegister(
		m.GeocodeCacheHits,
		m.GeocodeCacheMisses,
		m.GeocodeProviderErrors,
		m.GeocodeRequests,
		m.GeocodeInflight,
		m.SnapCacheHits,
		m.SnapCacheMisses,
		m.SnapRequests,
		m.SnapCacheSize,
		m.MovementTransitions,
	)

	return m
}

// NewIsolated creates a Metrics instance on a fresh private registry.
// This is the constructor tests and secondary pipelines should use.
func NewIsolated() *Metrics {
	return New(prometheus.NewRegistry())
}

// Reset clears all vector series. Plain counters and gauges cannot be reset
// in place; callers needing a full reset should construct a fresh instance
// via NewIsolated. Reset is still useful between test cases that only assert
// on vector series.
func (m *Metrics) Reset() {
	m.GeocodeProviderErrors.Reset()
	m.GeocodeRequests.Reset()
	m.SnapRequests.Reset()
	m.MovementTransitions.Reset()
}
