// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package geocode resolves coordinates to human-readable addresses. Lookups
// for nearby coordinates collapse onto one cache key, concurrent lookups for
// the same key collapse onto one upstream request, and upstream failures
// open a growing backoff window during which every request degrades to a
// fixed fallback string instead of touching the provider.
package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/argemirosilva/amparaweb-sub002/internal/cache"
	"github.com/argemirosilva/amparaweb-sub002/internal/logging"
	"github.com/argemirosilva/amparaweb-sub002/internal/metrics"
)

// FallbackAddress is returned whenever a live address cannot be produced.
// It is never cached, so the next request past the backoff window retries.
const FallbackAddress = "Endereço indisponível"

// Provenance values reported in Result.Provider.
const (
	ProviderLive     = "live"
	ProviderFallback = "fallback"
)

// Default tuning, matching the reference behavior.
const (
	DefaultTTL            = 10 * time.Minute
	DefaultMinInterval    = time.Second
	DefaultBackoffInitial = 30 * time.Second
	DefaultBackoffMax     = 5 * time.Minute
	DefaultFetchTimeout   = 6 * time.Second
)

// Result is the outcome of a resolve. Cached is true when the address came
// from the cache or from attaching to a request initiated by another caller.
type Result struct {
	DisplayAddress string
	Cached         bool
	Provider       string
}

// Key quantizes a coordinate to 4 decimal places (roughly an 11m cell), so
// nearby fixes share one cache entry and one in-flight request.
func Key(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// Options tunes a Resolver. Zero values take the defaults above.
type Options struct {
	TTL            time.Duration
	MinInterval    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	FetchTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = DefaultBackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
}

// cachedAddress is the cache value. Only live results are stored, so the
// provenance on a hit is always live.
type cachedAddress struct {
	display string
}

// call is one in-flight upstream request. The initiator fills result and
// closes done; attached waiters read result afterwards.
type call struct {
	done   chan struct{}
	result Result
}

// Resolver coalesces, caches, spaces, and degrades reverse-geocode lookups.
// Safe for concurrent use.
type Resolver struct {
	provider Provider
	metrics  *metrics.Metrics
	log      zerolog.Logger

	limiter *rate.Limiter
	opts    Options

	mu           sync.Mutex
	cache        *cache.TTL[cachedAddress]
	inflight     map[string]*call
	retry        *backoff.ExponentialBackOff
	backoffUntil time.Time
}

// NewResolver creates a Resolver around the given provider.
func NewResolver(provider Provider, m *metrics.Metrics, opts Options) *Resolver {
	opts.applyDefaults()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = opts.BackoffInitial
	retry.MaxInterval = opts.BackoffMax
	retry.MaxElapsedTime = 0
	retry.RandomizationFactor = 0
	retry.Reset()

	return &Resolver{
		provider: provider,
		metrics:  m,
		log:      logging.With().Str("component", "geocode").Logger(),
		limiter:  rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		opts:     opts,
		cache:    cache.NewTTL[cachedAddress](opts.TTL),
		inflight: make(map[string]*call),
		retry:    retry,
	}
}

// Cache exposes the underlying TTL cache so a janitor can sweep expired
// entries periodically.
func (r *Resolver) Cache() *cache.TTL[cachedAddress] { return r.cache }

// Resolve returns the display address for a coordinate. It never returns an
// error: every failure path degrades to FallbackAddress. A caller whose
// context is canceled while attached to another caller's request detaches
// with the fallback; the shared request itself keeps running for the rest.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) Result {
	key := Key(lat, lon)

	r.mu.Lock()
	if entry, ok := r.cache.Get(key); ok {
		r.mu.Unlock()
		r.metrics.GeocodeCacheHits.Inc()
		return Result{DisplayAddress: entry.display, Cached: true, Provider: ProviderLive}
	}
	r.metrics.GeocodeCacheMisses.Inc()

	if c, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-c.done:
			res := c.result
			res.Cached = true
			return res
		case <-ctx.Done():
			return Result{DisplayAddress: FallbackAddress, Cached: false, Provider: ProviderFallback}
		}
	}

	c := &call{done: make(chan struct{})}
	r.inflight[key] = c
	r.mu.Unlock()

	r.metrics.GeocodeInflight.Inc()
	res := r.fetch(ctx, key, lat, lon)

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
	r.metrics.GeocodeInflight.Dec()

	c.result = res
	close(c.done)

	return res
}

// fetch performs the upstream request for a key. It runs on the initiating
// caller's goroutine but detaches from its cancellation, since attached
// waiters depend on the same request; the fetch timeout bounds it instead.
func (r *Resolver) fetch(ctx context.Context, key string, lat, lon float64) Result {
	fallback := Result{DisplayAddress: FallbackAddress, Cached: false, Provider: ProviderFallback}

	r.mu.Lock()
	inBackoff := time.Now().Before(r.backoffUntil)
	r.mu.Unlock()
	if inBackoff {
		r.metrics.GeocodeRequests.WithLabelValues(ProviderFallback).Inc()
		return fallback
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FetchTimeout)
	defer cancel()

	if err := r.limiter.Wait(fetchCtx); err != nil {
		r.metrics.GeocodeRequests.WithLabelValues(ProviderFallback).Inc()
		return fallback
	}

	addr, err := r.provider.Reverse(fetchCtx, lat, lon)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		reason := errorReason(err)
		r.metrics.GeocodeProviderErrors.WithLabelValues(reason).Inc()
		r.metrics.GeocodeRequests.WithLabelValues(ProviderFallback).Inc()
		if shouldBackoff(err) {
			wait := r.retry.NextBackOff()
			r.backoffUntil = time.Now().Add(wait)
			r.log.Warn().Err(err).Str("reason", reason).Dur("backoff", wait).Msg("Reverse geocode failed, backing off")
		} else {
			r.log.Warn().Err(err).Str("reason", reason).Msg("Reverse geocode failed")
		}
		return fallback
	}

	r.retry.Reset()
	r.backoffUntil = time.Time{}

	display := FormatDisplay(addr)
	if display == "" {
		r.metrics.GeocodeProviderErrors.WithLabelValues(ReasonMalformed).Inc()
		r.metrics.GeocodeRequests.WithLabelValues(ProviderFallback).Inc()
		return fallback
	}

	r.cache.Set(key, cachedAddress{display: display})
	r.metrics.GeocodeRequests.WithLabelValues(ProviderLive).Inc()
	r.log.Debug().Str("key", key).Str("address", display).Msg("Reverse geocode resolved")

	return Result{DisplayAddress: display, Cached: false, Provider: ProviderLive}
}
