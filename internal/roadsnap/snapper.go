// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package roadsnap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/argemirosilva/amparaweb-sub002/internal/cache"
	"github.com/argemirosilva/amparaweb-sub002/internal/logging"
	"github.com/argemirosilva/amparaweb-sub002/internal/metrics"
)

// Default tuning, matching the reference behavior.
const (
	DefaultCacheCapacity = 500
	DefaultMinInterval   = 300 * time.Millisecond
)

// Snap outcomes, used as the metric label.
const (
	outcomeSnapped      = "snapped"
	outcomeThrottled    = "throttled"
	outcomeNoToken      = "no_token"
	outcomeDegraded     = "degraded"
	outcomeTooFewPoints = "too_few_points"
)

// Options tunes a Snapper. Zero values take the defaults above.
type Options struct {
	CacheCapacity int
	MinInterval   time.Duration
}

// Snapper throttles, caches, and degrades map-matching requests. The
// throttle never waits: a request arriving inside the minimum interval
// degrades to the raw fix immediately. Safe for concurrent use.
type Snapper struct {
	matcher Matcher
	tokens  TokenSource
	metrics *metrics.Metrics
	log     zerolog.Logger
	limiter *rate.Limiter
	cache   *cache.FIFO[Point]
}

// NewSnapper creates a Snapper around the given matcher and token source.
func NewSnapper(matcher Matcher, tokens TokenSource, m *metrics.Metrics, opts Options) *Snapper {
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = DefaultCacheCapacity
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	return &Snapper{
		matcher: matcher,
		tokens:  tokens,
		metrics: m,
		log:     logging.With().Str("component", "roadsnap").Logger(),
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		cache:   cache.NewFIFO[Point](opts.CacheCapacity),
	}
}

// Snap aligns the trail's most recent fix to the road network. The trail is
// ordered most recent first. A cached position for the current cell is
// returned unconditionally, bypassing the throttle; everything else that
// prevents a live match degrades to the raw fix.
func (s *Snapper) Snap(ctx context.Context, trail []Point) Result {
	if len(trail) == 0 {
		s.metrics.SnapRequests.WithLabelValues(outcomeTooFewPoints).Inc()
		return Result{}
	}
	current := trail[0]
	raw := Result{Point: current, Snapped: false}

	key := Key(current)
	if snapped, ok := s.cache.Get(key); ok {
		s.metrics.SnapCacheHits.Inc()
		return Result{Point: snapped, Snapped: true}
	}
	s.metrics.SnapCacheMisses.Inc()

	if len(trail) < 2 {
		s.metrics.SnapRequests.WithLabelValues(outcomeTooFewPoints).Inc()
		return raw
	}

	if !s.limiter.Allow() {
		s.metrics.SnapRequests.WithLabelValues(outcomeThrottled).Inc()
		return raw
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.metrics.SnapRequests.WithLabelValues(outcomeNoToken).Inc()
		s.log.Warn().Err(err).Msg("Road snap skipped, no access token")
		return raw
	}

	// The matcher wants the trail oldest first.
	chronological := make([]Point, len(trail))
	for i, p := range trail {
		chronological[len(trail)-1-i] = p
	}

	snapped, ok, err := s.matcher.Match(ctx, token, chronological)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.tokens.Invalidate()
			s.metrics.SnapRequests.WithLabelValues(outcomeNoToken).Inc()
			s.log.Warn().Msg("Road snap token rejected, invalidated")
		} else {
			s.metrics.SnapRequests.WithLabelValues(outcomeDegraded).Inc()
			s.log.Warn().Err(err).Msg("Road snap failed")
		}
		return raw
	}
	if !ok {
		s.metrics.SnapRequests.WithLabelValues(outcomeDegraded).Inc()
		return raw
	}

	s.cache.Set(key, snapped)
	s.metrics.SnapCacheSize.Set(float64(s.cache.Len()))
	s.metrics.SnapRequests.WithLabelValues(outcomeSnapped).Inc()

	return Result{Point: snapped, Snapped: true}
}
