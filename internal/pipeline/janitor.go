// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/argemirosilva/amparaweb-sub002/internal/logging"
)

// Sweeper removes expired entries and reports how many were dropped. The
// geocode TTL cache implements it.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically sweeps a cache so expired entries do not accumulate
// between lookups. It implements suture.Service and runs until its context
// is canceled.
type Janitor struct {
	target   Sweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewJanitor creates a janitor sweeping target every interval.
func NewJanitor(target Sweeper, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		target:   target,
		interval: interval,
		log:      logging.With().Str("component", "janitor").Logger(),
	}
}

// Serve runs the sweep loop until ctx is canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := j.target.Sweep(); removed > 0 {
				j.log.Debug().Int("removed", removed).Msg("Swept expired cache entries")
			}
		}
	}
}

func (j *Janitor) String() string { return "cache-janitor" }
