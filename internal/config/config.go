// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package config loads the pipeline's configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the location pipeline.
type Config struct {
	Geocode  GeocodeConfig  `koanf:"geocode"`
	RoadSnap RoadSnapConfig `koanf:"roadsnap"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// GeocodeConfig tunes the reverse-geocode resolver.
type GeocodeConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	UserAgent      string        `koanf:"user_agent" validate:"required"`
	CacheTTL       time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	MinInterval    time.Duration `koanf:"min_interval" validate:"gt=0"`
	BackoffInitial time.Duration `koanf:"backoff_initial" validate:"gt=0"`
	BackoffMax     time.Duration `koanf:"backoff_max" validate:"gt=0"`
	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
}

// RoadSnapConfig tunes the road snapper. Token and TokenURL are mutually
// exclusive: a static token wins when both are set. With neither set,
// snapping is effectively disabled and every fix passes through raw.
type RoadSnapConfig struct {
	Enabled       bool          `koanf:"enabled"`
	BaseURL       string        `koanf:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Token         string        `koanf:"token"`
	TokenURL      string        `koanf:"token_url" validate:"omitempty,url"`
	TokenTTL      time.Duration `koanf:"token_ttl" validate:"gte=0"`
	CacheCapacity int           `koanf:"cache_capacity" validate:"gt=0"`
	MinInterval   time.Duration `koanf:"min_interval" validate:"gt=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

// PipelineConfig tunes the per-subject processing loop.
type PipelineConfig struct {
	TrailLength   int           `koanf:"trail_length" validate:"gte=2,lte=100"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration after all layers are applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Geocode.BackoffMax < c.Geocode.BackoffInitial {
		return fmt.Errorf("geocode.backoff_max (%s) must be at least geocode.backoff_initial (%s)",
			c.Geocode.BackoffMax, c.Geocode.BackoffInitial)
	}
	return nil
}
