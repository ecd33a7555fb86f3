// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package pipeline ties the location stages together: each incoming GPS fix
// is classified for movement, reverse-geocoded to a display address, and
// snapped to the road network, producing one enriched observation per fix.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/argemirosilva/amparaweb-sub002/internal/config"
	"github.com/argemirosilva/amparaweb-sub002/internal/geocode"
	"github.com/argemirosilva/amparaweb-sub002/internal/logging"
	"github.com/argemirosilva/amparaweb-sub002/internal/metrics"
	"github.com/argemirosilva/amparaweb-sub002/internal/movement"
	"github.com/argemirosilva/amparaweb-sub002/internal/roadsnap"
)

// DefaultTrailLength is how many recent fixes are kept per subject for road
// snapping.
const DefaultTrailLength = 5

// Fix is one raw GPS sample from a monitored device. Speed and Accuracy are
// nil when the device did not report them.
type Fix struct {
	Lat       float64
	Lon       float64
	Speed     *float64 // meters per second
	Accuracy  *float64 // meters
	Timestamp time.Time
}

// Observation is the enriched output for one fix: movement state, display
// address, and the position to plot.
type Observation struct {
	SubjectID string
	Movement  movement.Reading
	Address   geocode.Result
	Position  roadsnap.Result
	Timestamp time.Time
}

// AddressResolver resolves a coordinate to a display address.
type AddressResolver interface {
	Resolve(ctx context.Context, lat, lon float64) geocode.Result
}

// RoadSnapper aligns a most-recent-first trail to the road network.
type RoadSnapper interface {
	Snap(ctx context.Context, trail []roadsnap.Point) roadsnap.Result
}

// subjectState is the per-subject mutable state: the hysteresis classifier
// and the short trail of recent fixes, most recent first.
type subjectState struct {
	classifier *movement.Classifier
	trail      []roadsnap.Point
}

// Pipeline processes fixes for any number of subjects concurrently. Snapper
// may be nil, in which case positions pass through unsnapped.
type Pipeline struct {
	resolver AddressResolver
	snapper  RoadSnapper
	metrics  *metrics.Metrics
	log      zerolog.Logger
	trailLen int

	mu       sync.Mutex
	subjects map[string]*subjectState
}

// New creates a Pipeline. A trailLen below 2 takes DefaultTrailLength.
func New(resolver AddressResolver, snapper RoadSnapper, m *metrics.Metrics, trailLen int) *Pipeline {
	if trailLen < 2 {
		trailLen = DefaultTrailLength
	}
	return &Pipeline{
		resolver: resolver,
		snapper:  snapper,
		metrics:  m,
		log:      logging.With().Str("component", "pipeline").Logger(),
		trailLen: trailLen,
		subjects: make(map[string]*subjectState),
	}
}

// FromConfig wires a Pipeline from configuration, building the live geocode
// and map-matching clients. The returned janitor sweeps the geocode cache
// and should be added to a supervisor.
func FromConfig(cfg *config.Config, m *metrics.Metrics) (*Pipeline, *Janitor) {
	provider := geocode.NewNominatimClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, cfg.Geocode.Timeout)
	resolver := geocode.NewResolver(provider, m, geocode.Options{
		TTL:            cfg.Geocode.CacheTTL,
		MinInterval:    cfg.Geocode.MinInterval,
		BackoffInitial: cfg.Geocode.BackoffInitial,
		BackoffMax:     cfg.Geocode.BackoffMax,
		FetchTimeout:   cfg.Geocode.Timeout,
	})

	var snapper RoadSnapper
	if cfg.RoadSnap.Enabled {
		var tokens roadsnap.TokenSource
		switch {
		case cfg.RoadSnap.Token != "":
			tokens = roadsnap.StaticToken(cfg.RoadSnap.Token)
		case cfg.RoadSnap.TokenURL != "":
			tokens = roadsnap.NewHTTPTokenSource(cfg.RoadSnap.TokenURL, cfg.RoadSnap.TokenTTL, cfg.RoadSnap.Timeout)
		}
		if tokens != nil {
			matcher := roadsnap.NewOSRMMatcher(cfg.RoadSnap.BaseURL, cfg.RoadSnap.Timeout)
			snapper = roadsnap.NewSnapper(matcher, tokens, m, roadsnap.Options{
				CacheCapacity: cfg.RoadSnap.CacheCapacity,
				MinInterval:   cfg.RoadSnap.MinInterval,
			})
		}
	}

	p := New(resolver, snapper, m, cfg.Pipeline.TrailLength)
	janitor := NewJanitor(resolver.Cache(), cfg.Pipeline.SweepInterval)
	return p, janitor
}

// Process enriches one fix. It is safe to call concurrently for different
// subjects; fixes for a single subject are expected in order.
func (p *Pipeline) Process(ctx context.Context, subjectID string, fix Fix) Observation {
	point := roadsnap.Point{Lat: fix.Lat, Lon: fix.Lon}

	p.mu.Lock()
	st, ok := p.subjects[subjectID]
	if !ok {
		st = &subjectState{classifier: movement.NewClassifier()}
		p.subjects[subjectID] = st
	}

	before := st.classifier.Status()
	reading := st.classifier.Update(fix.Speed, fix.Accuracy)
	if reading.Status != before {
		p.metrics.MovementTransitions.WithLabelValues(reading.Status.String()).Inc()
		p.log.Info().
			Str("subject", subjectID).
			Str("from", before.String()).
			Str("to", reading.Status.String()).
			Float64("speed_kmh", reading.SpeedKmh).
			Msg("Movement status changed")
	}

	st.trail = append([]roadsnap.Point{point}, st.trail...)
	if len(st.trail) > p.trailLen {
		st.trail = st.trail[:p.trailLen]
	}
	trail := make([]roadsnap.Point, len(st.trail))
	copy(trail, st.trail)
	p.mu.Unlock()

	// Network stages run outside the lock so slow upstreams never serialize
	// unrelated subjects.
	address := p.resolver.Resolve(ctx, fix.Lat, fix.Lon)

	position := roadsnap.Result{Point: point, Snapped: false}
	if p.snapper != nil {
		position = p.snapper.Snap(ctx, trail)
	}

	return Observation{
		SubjectID: subjectID,
		Movement:  reading,
		Address:   address,
		Position:  position,
		Timestamp: fix.Timestamp,
	}
}

// Forget drops all state for a subject, for when monitoring ends.
func (p *Pipeline) Forget(subjectID string) {
	p.mu.Lock()
	delete(p.subjects, subjectID)
	p.mu.Unlock()
}

// SubjectCount reports how many subjects currently hold state.
func (p *Pipeline) SubjectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects)
}
